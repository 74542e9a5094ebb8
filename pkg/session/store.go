package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harun/jiya/internal/config"
	"github.com/harun/jiya/pkg/conversation"
	"github.com/rs/zerolog"
)

// Store maps session ids to conversations. Lookup is deliberately
// permissive: an unknown id yields a fresh empty conversation rather than
// an error, since no other system of record exists to contradict it.
type Store interface {
	// GetOrCreate resolves sessionID to its conversation. An empty id
	// generates a new one; an unknown id starts a fresh conversation.
	GetOrCreate(ctx context.Context, sessionID string) (*conversation.Conversation, error)

	// Save persists the conversation under its session id.
	Save(ctx context.Context, conv *conversation.Conversation) error

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// List returns all stored session ids.
	List(ctx context.Context) ([]string, error)

	// SweepIdle removes sessions idle for longer than olderThan and
	// reports how many were removed.
	SweepIdle(ctx context.Context, olderThan time.Duration) (int, error)

	// Close releases store resources.
	Close() error
}

// GenerateSessionID returns a fresh opaque session id.
func GenerateSessionID() string {
	return uuid.NewString()
}

// NewStore builds a session store from configuration.
func NewStore(cfg config.SessionConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(logger), nil
	case "file":
		return NewFileStore(cfg.Dir, logger)
	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Backend)
	}
}
