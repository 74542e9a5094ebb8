package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/harun/jiya/internal/observability"
	"github.com/rs/zerolog"
)

// bookEntry is the on-disk shape of one loan book record. The book file is
// a JSON object keyed by customer id, so the id lives on the key rather
// than in the entry.
type bookEntry struct {
	CustomerName string  `json:"customer_name"`
	TotalDue     float64 `json:"total_due"`
	DueDate      string  `json:"due_date"`
	DPD          int     `json:"dpd"`
}

// BookStore serves customer records from a JSON loan book file. The book is
// loaded fully into memory; an optional watcher reloads it when the file
// changes on disk.
type BookStore struct {
	path    string
	logger  zerolog.Logger
	watcher *FileWatcher

	mu      sync.RWMutex
	records map[string]CustomerRecord
}

// NewBookStore loads the loan book at path. A missing file starts an empty
// book so every lookup misses until records arrive.
func NewBookStore(path string, watchReload bool, logger zerolog.Logger) (*BookStore, error) {
	bs := &BookStore{
		path:    path,
		logger:  logger.With().Str("component", "recordstore").Logger(),
		records: map[string]CustomerRecord{},
	}

	if err := bs.Reload(); err != nil {
		return nil, err
	}

	if watchReload {
		watcher, err := NewFileWatcher(bs.logger, path, func() {
			if err := bs.Reload(); err != nil {
				bs.logger.Error().Err(err).Msg("Loan book reload failed, keeping previous records")
			}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to watch loan book: %w", err)
		}
		bs.watcher = watcher
	}

	return bs, nil
}

// Reload re-reads the book file and swaps the in-memory records.
func (bs *BookStore) Reload() error {
	if _, err := os.Stat(bs.path); os.IsNotExist(err) {
		bs.logger.Warn().Str("path", bs.path).Msg("Loan book does not exist, starting empty")
		bs.mu.Lock()
		bs.records = map[string]CustomerRecord{}
		bs.mu.Unlock()
		return nil
	}

	data, err := os.ReadFile(bs.path)
	if err != nil {
		return fmt.Errorf("failed to read loan book: %w", err)
	}

	var entries map[string]bookEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse loan book: %w", err)
	}

	records := make(map[string]CustomerRecord, len(entries))
	for id, entry := range entries {
		records[id] = CustomerRecord{
			CustomerID:   id,
			CustomerName: entry.CustomerName,
			TotalDue:     entry.TotalDue,
			DueDate:      entry.DueDate,
			DPD:          entry.DPD,
		}
	}

	bs.mu.Lock()
	bs.records = records
	bs.mu.Unlock()

	bs.logger.Info().
		Str("path", bs.path).
		Int("records", len(records)).
		Msg("Loan book loaded")

	return nil
}

// Lookup returns the record for customerID.
func (bs *BookStore) Lookup(ctx context.Context, customerID string) (CustomerRecord, bool, error) {
	bs.mu.RLock()
	record, found := bs.records[customerID]
	bs.mu.RUnlock()

	observability.RecordCustomerLookup(found)
	return record, found, nil
}

// Count reports the number of loaded records.
func (bs *BookStore) Count(ctx context.Context) (int, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return len(bs.records), nil
}

// Close stops the reload watcher.
func (bs *BookStore) Close() error {
	if bs.watcher != nil {
		return bs.watcher.Stop()
	}
	return nil
}
