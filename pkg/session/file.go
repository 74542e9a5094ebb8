package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harun/jiya/internal/observability"
	"github.com/harun/jiya/pkg/conversation"
	"github.com/rs/zerolog"
)

// FileStore persists each conversation as one JSON document under a
// sessions directory. Saves are atomic (temp file + rename) so a crash
// never leaves a half-written session behind.
type FileStore struct {
	dir        string
	logger     zerolog.Logger
	writeLocks map[string]*sync.Mutex
	locksMu    sync.RWMutex
}

// NewFileStore creates the sessions directory if needed.
func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	observability.EnsureRegistered()

	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".jiya", "sessions")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	fs := &FileStore{
		dir:        dir,
		logger:     logger.With().Str("component", "session").Logger(),
		writeLocks: make(map[string]*sync.Mutex),
	}

	fs.logger.Info().Str("dir", dir).Msg("Session store initialized")
	fs.updateActiveSessionsMetric()

	return fs, nil
}

// validateSessionID guards against ids that would escape the sessions
// directory when used as file names.
func (fs *FileStore) validateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if strings.Contains(sessionID, "..") {
		return fmt.Errorf("session id cannot contain '..'")
	}
	if strings.ContainsAny(sessionID, "/\\") {
		return fmt.Errorf("session id cannot contain path separators")
	}
	if strings.Contains(sessionID, "\x00") {
		return fmt.Errorf("session id cannot contain null bytes")
	}
	return nil
}

// sessionPath returns the file path for a session
func (fs *FileStore) sessionPath(sessionID string) string {
	return filepath.Join(fs.dir, sessionID+".json")
}

func (fs *FileStore) updateActiveSessionsMetric() {
	sessions, err := fs.List(context.Background())
	if err != nil {
		return
	}
	observability.SetActiveSessions(len(sessions))
}

// getWriteLock gets or creates a write lock for a session
func (fs *FileStore) getWriteLock(sessionID string) *sync.Mutex {
	fs.locksMu.Lock()
	defer fs.locksMu.Unlock()

	if lock, exists := fs.writeLocks[sessionID]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	fs.writeLocks[sessionID] = lock
	return lock
}

// releaseWriteLock releases a write lock for a session
func (fs *FileStore) releaseWriteLock(sessionID string) {
	fs.locksMu.Lock()
	defer fs.locksMu.Unlock()
	delete(fs.writeLocks, sessionID)
}

// GetOrCreate resolves sessionID, generating an id when none is supplied.
// A missing file yields a fresh conversation for that id.
func (fs *FileStore) GetOrCreate(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	if sessionID == "" {
		sessionID = GenerateSessionID()
	}

	if err := fs.validateSessionID(sessionID); err != nil {
		return nil, err
	}

	path := fs.sessionPath(sessionID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fs.logger.Debug().Str("session_id", sessionID).Msg("Session does not exist, starting fresh")
		return conversation.New(sessionID), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var conv conversation.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}

	fs.logger.Debug().
		Str("session_id", sessionID).
		Int("turns", len(conv.Turns)).
		Msg("Session loaded")

	return &conv, nil
}

// Save writes the conversation atomically.
func (fs *FileStore) Save(ctx context.Context, conv *conversation.Conversation) error {
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	if err := fs.validateSessionID(conv.SessionID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	lock := fs.getWriteLock(conv.SessionID)
	lock.Lock()
	defer lock.Unlock()

	path := fs.sessionPath(conv.SessionID)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary session file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	fs.updateActiveSessionsMetric()

	fs.logger.Debug().
		Str("session_id", conv.SessionID).
		Int("turns", len(conv.Turns)).
		Str("phase", conv.Phase.String()).
		Msg("Session saved")

	return nil
}

// Delete removes a session file.
func (fs *FileStore) Delete(ctx context.Context, sessionID string) error {
	if err := fs.validateSessionID(sessionID); err != nil {
		return err
	}

	// Wait for any in-progress writes
	lock := fs.getWriteLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fs.sessionPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}

	fs.releaseWriteLock(sessionID)
	fs.updateActiveSessionsMetric()

	fs.logger.Info().Str("session_id", sessionID).Msg("Session deleted")
	return nil
}

// List returns all stored session ids.
func (fs *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		sessions = append(sessions, strings.TrimSuffix(name, ".json"))
	}

	return sessions, nil
}

// SweepIdle removes session files not modified within olderThan.
func (fs *FileStore) SweepIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	sessions, err := fs.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	for _, sessionID := range sessions {
		info, err := os.Stat(fs.sessionPath(sessionID))
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := fs.Delete(ctx, sessionID); err != nil {
				fs.logger.Warn().Str("session_id", sessionID).Err(err).Msg("Failed to sweep session")
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		fs.logger.Info().Int("removed", removed).Msg("Idle sessions swept")
	}
	return removed, nil
}

// Close clears the write locks.
func (fs *FileStore) Close() error {
	fs.locksMu.Lock()
	fs.writeLocks = make(map[string]*sync.Mutex)
	fs.locksMu.Unlock()
	return nil
}
