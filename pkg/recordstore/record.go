package recordstore

import (
	"context"
	"fmt"

	"github.com/harun/jiya/internal/config"
	"github.com/rs/zerolog"
)

// CustomerRecord is one entry of the loan book.
type CustomerRecord struct {
	CustomerID   string  `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	TotalDue     float64 `json:"total_due"`
	DueDate      string  `json:"due_date"`
	DPD          int     `json:"dpd"`
}

// Store provides read access to customer loan records. A missing record is
// not an error: callers receive found=false and surface it in-band.
type Store interface {
	// Lookup returns the record for customerID, or found=false when the
	// book has no such customer.
	Lookup(ctx context.Context, customerID string) (CustomerRecord, bool, error)

	// Count reports how many records the store currently holds.
	Count(ctx context.Context) (int, error)

	// Close releases store resources.
	Close() error
}

// New builds a record store from configuration.
func New(cfg config.RecordsConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case "book":
		return NewBookStore(cfg.Path, cfg.WatchReload, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown records backend: %s", cfg.Backend)
	}
}
