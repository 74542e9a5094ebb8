package session

import (
	"context"
	"sync"
	"time"

	"github.com/harun/jiya/internal/observability"
	"github.com/harun/jiya/pkg/conversation"
	"github.com/rs/zerolog"
)

// MemoryStore keeps conversations in a process-local map. It is the
// default backend; sessions do not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	convs  map[string]*conversation.Conversation
	logger zerolog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger zerolog.Logger) *MemoryStore {
	observability.EnsureRegistered()

	return &MemoryStore{
		convs:  make(map[string]*conversation.Conversation),
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// GetOrCreate resolves sessionID, generating an id when none is supplied.
// The returned conversation is a copy; it joins the store on Save.
func (ms *MemoryStore) GetOrCreate(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	if sessionID == "" {
		sessionID = GenerateSessionID()
	}

	ms.mu.RLock()
	conv, exists := ms.convs[sessionID]
	ms.mu.RUnlock()

	if !exists {
		return conversation.New(sessionID), nil
	}
	return conv.Clone(), nil
}

// Save stores a copy of the conversation.
func (ms *MemoryStore) Save(ctx context.Context, conv *conversation.Conversation) error {
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	ms.mu.Lock()
	ms.convs[conv.SessionID] = conv.Clone()
	count := len(ms.convs)
	ms.mu.Unlock()

	observability.SetActiveSessions(count)
	return nil
}

// Delete removes a session.
func (ms *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	ms.mu.Lock()
	delete(ms.convs, sessionID)
	count := len(ms.convs)
	ms.mu.Unlock()

	observability.SetActiveSessions(count)
	return nil
}

// List returns all stored session ids.
func (ms *MemoryStore) List(ctx context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ids := make([]string, 0, len(ms.convs))
	for id := range ms.convs {
		ids = append(ids, id)
	}
	return ids, nil
}

// SweepIdle removes sessions whose last update is older than olderThan.
func (ms *MemoryStore) SweepIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	ms.mu.Lock()
	removed := 0
	for id, conv := range ms.convs {
		if conv.UpdatedAt.Before(cutoff) {
			delete(ms.convs, id)
			removed++
		}
	}
	count := len(ms.convs)
	ms.mu.Unlock()

	observability.SetActiveSessions(count)

	if removed > 0 {
		ms.logger.Info().Int("removed", removed).Msg("Idle sessions swept")
	}
	return removed, nil
}

// Close clears the store.
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	ms.convs = make(map[string]*conversation.Conversation)
	ms.mu.Unlock()
	return nil
}
