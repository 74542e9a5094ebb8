package recordstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harun/jiya/internal/observability"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore serves customer records from a SQLite database. It suits
// books too large to hold in memory or shared with other tooling.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "recordstore").Logger(),
	}

	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS customers (
			customer_id   TEXT PRIMARY KEY,
			customer_name TEXT NOT NULL,
			total_due     REAL NOT NULL,
			due_date      TEXT NOT NULL,
			dpd           INTEGER NOT NULL DEFAULT 0
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create records schema: %w", err)
	}
	return nil
}

// Lookup returns the record for customerID.
func (s *SQLiteStore) Lookup(ctx context.Context, customerID string) (CustomerRecord, bool, error) {
	var record CustomerRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT customer_id, customer_name, total_due, due_date, dpd
		FROM customers WHERE customer_id = ?`, customerID,
	).Scan(&record.CustomerID, &record.CustomerName, &record.TotalDue, &record.DueDate, &record.DPD)

	if err == sql.ErrNoRows {
		observability.RecordCustomerLookup(false)
		return CustomerRecord{}, false, nil
	}
	if err != nil {
		return CustomerRecord{}, false, fmt.Errorf("failed to query customer: %w", err)
	}

	observability.RecordCustomerLookup(true)
	return record, true, nil
}

// Count reports the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return count, nil
}

// Seed inserts or replaces records, for imports and tests.
func (s *SQLiteStore) Seed(ctx context.Context, records []CustomerRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}

	for _, record := range records {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO customers (customer_id, customer_name, total_due, due_date, dpd)
			VALUES (?, ?, ?, ?, ?)`,
			record.CustomerID, record.CustomerName, record.TotalDue, record.DueDate, record.DPD,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed customer %s: %w", record.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	s.logger.Info().Int("records", len(records)).Msg("Records seeded")
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
