package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// SessionIDKey is the context key for the call session ID
	SessionIDKey ContextKey = "session_id"
	// CustomerIDKey is the context key for the customer under discussion
	CustomerIDKey ContextKey = "customer_id"
)

// TraceContext holds tracing information for one call request
type TraceContext struct {
	TraceID    string
	SessionID  string
	CustomerID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithCustomerID adds a customer ID to the context
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, CustomerIDKey, customerID)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetSessionID retrieves the session ID from the context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// GetCustomerID retrieves the customer ID from the context
func GetCustomerID(ctx context.Context) string {
	if customerID, ok := ctx.Value(CustomerIDKey).(string); ok {
		return customerID
	}
	return ""
}

// FromContext extracts all tracing information from a context
func FromContext(ctx context.Context) TraceContext {
	return TraceContext{
		TraceID:    GetTraceID(ctx),
		SessionID:  GetSessionID(ctx),
		CustomerID: GetCustomerID(ctx),
	}
}

// NewContext creates a context carrying the given tracing information
func NewContext(ctx context.Context, tc TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.SessionID != "" {
		ctx = WithSessionID(ctx, tc.SessionID)
	}
	if tc.CustomerID != "" {
		ctx = WithCustomerID(ctx, tc.CustomerID)
	}
	return ctx
}

// NewRequestContext returns a context seeded with a fresh trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// LoggerFromContext creates a logger enriched with tracing fields from the context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		baseLogger = baseLogger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.SessionID != "" {
		baseLogger = baseLogger.With().Str("session_id", tc.SessionID).Logger()
	}
	if tc.CustomerID != "" {
		baseLogger = baseLogger.With().Str("customer_id", tc.CustomerID).Logger()
	}

	return baseLogger
}
