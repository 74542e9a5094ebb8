package gateway

import (
	"sync"
	"time"
)

// callerWindow tracks one caller's recent requests.
type callerWindow struct {
	requests   []time.Time
	concurrent int
	lastSeen   time.Time
}

// RequestLimiter applies sliding-window rate limiting per caller key.
// The chat endpoint keys on the remote host.
type RequestLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	maxConcurrent     int
	callers           map[string]*callerWindow
}

// NewRequestLimiter creates a limiter with the given per-caller limits.
func NewRequestLimiter(requestsPerMinute, maxConcurrent int) *RequestLimiter {
	return &RequestLimiter{
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		callers:           make(map[string]*callerWindow),
	}
}

// Begin admits or rejects a request for the caller key. Every admitted
// request must be paired with End.
func (l *RequestLimiter) Begin(key string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.pruneIdle(now)

	caller, exists := l.callers[key]
	if !exists {
		caller = &callerWindow{}
		l.callers[key] = caller
	}
	caller.lastSeen = now

	if caller.concurrent >= l.maxConcurrent {
		return false, "too many concurrent requests"
	}

	// Drop requests that fell out of the one-minute window.
	cutoff := now.Add(-time.Minute)
	validRequests := caller.requests[:0]
	for _, reqTime := range caller.requests {
		if reqTime.After(cutoff) {
			validRequests = append(validRequests, reqTime)
		}
	}
	caller.requests = validRequests

	if len(caller.requests) >= l.requestsPerMinute {
		return false, "rate limit exceeded"
	}

	caller.requests = append(caller.requests, now)
	caller.concurrent++
	return true, ""
}

// End records the completion of an admitted request.
func (l *RequestLimiter) End(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	caller, exists := l.callers[key]
	if !exists {
		return
	}
	if caller.concurrent > 0 {
		caller.concurrent--
	}
}

// Stats returns the window count and concurrent count for a caller key.
func (l *RequestLimiter) Stats(key string) (requestCount, concurrentCount int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	caller, exists := l.callers[key]
	if !exists {
		return 0, 0
	}

	cutoff := time.Now().Add(-time.Minute)
	count := 0
	for _, reqTime := range caller.requests {
		if reqTime.After(cutoff) {
			count++
		}
	}
	return count, caller.concurrent
}

// pruneIdle drops callers silent for longer than the window so the map
// stays bounded. Callers with requests in flight are kept.
func (l *RequestLimiter) pruneIdle(now time.Time) {
	cutoff := now.Add(-2 * time.Minute)
	for key, caller := range l.callers {
		if caller.concurrent == 0 && caller.lastSeen.Before(cutoff) {
			delete(l.callers, key)
		}
	}
}
