package session

import "sync"

// Locker serializes work per session id. Two requests against the same
// session must not interleave agent rounds on the same conversation, while
// requests for different sessions proceed in parallel. Entries are
// reference counted so the map does not grow with every session ever seen.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{
		entries: make(map[string]*lockEntry),
	}
}

// Lock acquires the per-session lock and returns its release function.
func (l *Locker) Lock(sessionID string) (unlock func()) {
	l.mu.Lock()
	entry, exists := l.entries[sessionID]
	if !exists {
		entry = &lockEntry{}
		l.entries[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, sessionID)
		}
		l.mu.Unlock()
	}
}
