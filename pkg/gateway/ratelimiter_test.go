package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestLimiter_Begin(t *testing.T) {
	t.Run("should allow requests under limit", func(t *testing.T) {
		limiter := NewRequestLimiter(10, 5)

		for i := 0; i < 5; i++ {
			allowed, reason := limiter.Begin("10.0.0.1")
			assert.True(t, allowed)
			assert.Empty(t, reason)
		}
	})

	t.Run("should reject when concurrent limit exceeded", func(t *testing.T) {
		limiter := NewRequestLimiter(100, 3)

		// Fill up concurrent slots
		for i := 0; i < 3; i++ {
			allowed, _ := limiter.Begin("10.0.0.1")
			assert.True(t, allowed)
		}

		allowed, reason := limiter.Begin("10.0.0.1")
		assert.False(t, allowed)
		assert.Equal(t, "too many concurrent requests", reason)
	})

	t.Run("should reject when rate limit exceeded", func(t *testing.T) {
		limiter := NewRequestLimiter(5, 10)

		for i := 0; i < 5; i++ {
			allowed, _ := limiter.Begin("10.0.0.1")
			assert.True(t, allowed)
			limiter.End("10.0.0.1") // End immediately to avoid concurrent limit
		}

		allowed, reason := limiter.Begin("10.0.0.1")
		assert.False(t, allowed)
		assert.Equal(t, "rate limit exceeded", reason)
	})

	t.Run("should limit callers independently", func(t *testing.T) {
		limiter := NewRequestLimiter(2, 10)

		for i := 0; i < 2; i++ {
			allowed, _ := limiter.Begin("10.0.0.1")
			assert.True(t, allowed)
			limiter.End("10.0.0.1")
		}

		allowed, _ := limiter.Begin("10.0.0.1")
		assert.False(t, allowed)

		// A different caller still has headroom.
		allowed, reason := limiter.Begin("10.0.0.2")
		assert.True(t, allowed)
		assert.Empty(t, reason)
	})
}

func TestRequestLimiter_End(t *testing.T) {
	t.Run("should track concurrent requests", func(t *testing.T) {
		limiter := NewRequestLimiter(100, 10)

		limiter.Begin("10.0.0.1")
		limiter.Begin("10.0.0.1")

		_, concurrent := limiter.Stats("10.0.0.1")
		assert.Equal(t, 2, concurrent)

		limiter.End("10.0.0.1")
		_, concurrent = limiter.Stats("10.0.0.1")
		assert.Equal(t, 1, concurrent)

		limiter.End("10.0.0.1")
		_, concurrent = limiter.Stats("10.0.0.1")
		assert.Equal(t, 0, concurrent)
	})

	t.Run("should not go negative on concurrent count", func(t *testing.T) {
		limiter := NewRequestLimiter(100, 10)

		limiter.End("10.0.0.1")
		limiter.End("10.0.0.1")

		_, concurrent := limiter.Stats("10.0.0.1")
		assert.Equal(t, 0, concurrent)
	})
}

func TestRequestLimiter_Stats(t *testing.T) {
	t.Run("should return accurate stats", func(t *testing.T) {
		limiter := NewRequestLimiter(100, 10)

		limiter.Begin("10.0.0.1")
		limiter.Begin("10.0.0.1")
		limiter.Begin("10.0.0.1")

		requests, concurrent := limiter.Stats("10.0.0.1")
		assert.Equal(t, 3, requests)
		assert.Equal(t, 3, concurrent)

		limiter.End("10.0.0.1")

		requests, concurrent = limiter.Stats("10.0.0.1")
		assert.Equal(t, 3, requests)
		assert.Equal(t, 2, concurrent)
	})

	t.Run("should report zero for unknown callers", func(t *testing.T) {
		limiter := NewRequestLimiter(100, 10)

		requests, concurrent := limiter.Stats("10.9.9.9")
		assert.Equal(t, 0, requests)
		assert.Equal(t, 0, concurrent)
	})
}
