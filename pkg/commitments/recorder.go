package commitments

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/jiya/internal/config"
	"github.com/rs/zerolog"
)

// Commitment is a payment promise captured during a call.
type Commitment struct {
	CustomerID     string    `json:"customer_id"`
	CommitmentDate string    `json:"commitment_date"`
	SessionID      string    `json:"session_id,omitempty"`
	NotedAt        time.Time `json:"noted_at"`
}

// Recorder persists payment commitments. Recording is best effort: the call
// flow acknowledges the customer regardless, so failures are logged by the
// caller rather than surfaced to the conversation.
type Recorder interface {
	// Record persists one commitment.
	Record(ctx context.Context, c Commitment) error

	// List returns recorded commitments, newest last.
	List(ctx context.Context) ([]Commitment, error)

	// Close releases recorder resources.
	Close() error
}

// New builds a commitment recorder from configuration.
func New(cfg config.CommitmentsConfig, logger zerolog.Logger) (Recorder, error) {
	switch cfg.Backend {
	case "log":
		return NewLogRecorder(cfg.Path, logger)
	case "sqlite":
		return NewSQLiteRecorder(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown commitments backend: %s", cfg.Backend)
	}
}
