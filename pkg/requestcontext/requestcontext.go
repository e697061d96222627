// Package requestcontext carries request-scoped values (request id, clock,
// authenticated subject, client metadata) through context.Context.
package requestcontext

import (
	"context"
	"time"
)

type (
	contextKeyRequestID   struct{}
	contextKeyRequestTime struct{}
	contextKeySubject     struct{}
	contextKeyTokenID     struct{}
	contextKeyClientIP    struct{}
	contextKeyUserAgent   struct{}
	contextKeyDevice      struct{}
)

// WithRequestID stores the request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID returns the request correlation id or "" when unset.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyRequestID{}).(string)
	return v
}

// WithTime pins the request-scoped "now".
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime{}, t)
}

// Now returns the request-scoped time, falling back to time.Now() outside
// of HTTP requests (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithSubject stores the authenticated principal (email) and the token id
// it was proven with.
func WithSubject(ctx context.Context, subject, tokenID string) context.Context {
	ctx = context.WithValue(ctx, contextKeySubject{}, subject)
	return context.WithValue(ctx, contextKeyTokenID{}, tokenID)
}

// Subject returns the authenticated principal or "" for anonymous requests.
func Subject(ctx context.Context) string {
	v, _ := ctx.Value(contextKeySubject{}).(string)
	return v
}

// TokenID returns the jti of the bearer token that authenticated the request.
func TokenID(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyTokenID{}).(string)
	return v
}

// WithClientMetadata stores the client IP and raw User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, clientIP)
	return context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyClientIP{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyUserAgent{}).(string)
	return v
}

// WithDevice stores a human readable device name ("Chrome on macOS").
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, contextKeyDevice{}, device)
}

func Device(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyDevice{}).(string)
	return v
}
