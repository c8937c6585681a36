// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithActor(ctx, actor)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, enterpriseActor)
package requestcontext

import (
	"context"
	"time"

	"ecocert/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorKey       struct{}
	clientIPKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyActor       = actorKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Auth context (actor)
// -----------------------------------------------------------------------------

// Actor retrieves the authenticated actor from the context.
// Returns the zero value (nil account ID, empty role) if not set.
func Actor(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(ContextKeyActor).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{}
}

// WithActor injects an authenticated actor into the context.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects a client IP into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientIP(ctx context.Context, clientIP string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, clientIP)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
//   - CLI commands
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
