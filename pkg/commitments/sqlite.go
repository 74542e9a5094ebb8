package commitments

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteRecorder persists commitments to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the database at path.
func NewSQLiteRecorder(path string, logger zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open commitments database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS commitments (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id     TEXT NOT NULL,
			commitment_date TEXT NOT NULL,
			session_id      TEXT,
			noted_at        TIMESTAMP NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create commitments schema: %w", err)
	}

	return &SQLiteRecorder{
		db:     db,
		logger: logger.With().Str("component", "commitments").Logger(),
	}, nil
}

// Record inserts one commitment row.
func (r *SQLiteRecorder) Record(ctx context.Context, c Commitment) error {
	if c.NotedAt.IsZero() {
		c.NotedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO commitments (customer_id, commitment_date, session_id, noted_at)
		VALUES (?, ?, ?, ?)`,
		c.CustomerID, c.CommitmentDate, c.SessionID, c.NotedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert commitment: %w", err)
	}

	r.logger.Info().
		Str("customer_id", c.CustomerID).
		Str("commitment_date", c.CommitmentDate).
		Msg("Commitment recorded")

	return nil
}

// List returns all commitments ordered by insertion.
func (r *SQLiteRecorder) List(ctx context.Context) ([]Commitment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT customer_id, commitment_date, session_id, noted_at
		FROM commitments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query commitments: %w", err)
	}
	defer rows.Close()

	var commitments []Commitment
	for rows.Next() {
		var c Commitment
		var sessionID sql.NullString
		if err := rows.Scan(&c.CustomerID, &c.CommitmentDate, &sessionID, &c.NotedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commitment: %w", err)
		}
		c.SessionID = sessionID.String
		commitments = append(commitments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commitments: %w", err)
	}

	return commitments, nil
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
