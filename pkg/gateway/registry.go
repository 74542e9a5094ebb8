package gateway

import (
	"sync"
)

// ObserverRegistry manages connected transcript observers.
type ObserverRegistry struct {
	mu        sync.RWMutex
	observers map[string]*Observer
}

// NewObserverRegistry creates an empty registry.
func NewObserverRegistry() *ObserverRegistry {
	return &ObserverRegistry{
		observers: make(map[string]*Observer),
	}
}

// Add registers an observer.
func (r *ObserverRegistry) Add(observer *Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers[observer.ID] = observer
}

// Remove drops an observer from the registry.
func (r *ObserverRegistry) Remove(observerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.observers, observerID)
}

// GetAll returns all connected observers.
func (r *ObserverRegistry) GetAll() []*Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	observers := make([]*Observer, 0, len(r.observers))
	for _, observer := range r.observers {
		observers = append(observers, observer)
	}
	return observers
}

// Count returns the number of connected observers.
func (r *ObserverRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.observers)
}

// Infos returns descriptive information for all connected observers.
func (r *ObserverRegistry) Infos() []ObserverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ObserverInfo, 0, len(r.observers))
	for _, observer := range r.observers {
		infos = append(infos, ObserverInfo{
			ID:          observer.ID,
			ConnectedAt: observer.ConnectedAt,
			IPAddress:   observer.IPAddress,
		})
	}
	return infos
}
