// Package tracer is a small tracing abstraction so coordinators and resolvers
// emit spans without importing OpenTelemetry directly.
//
// Implementations:
//   - NoopTracer: tests and tracing disabled
//   - OTelTracer: OpenTelemetry adapter
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span; a non-nil err marks it failed.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanIssuanceUpload,
//	    tracer.String(tracer.AttrHolder, holder),
//	)
//	defer func() { span.End(err) }()
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Uint64(key string, value uint64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Text attaches an identifier (credential id, address, content address) in
// its canonical text form.
func Text(key string, value fmt.Stringer) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashEmail returns a short SHA-256 digest of a normalized email so traces can
// be correlated per principal without carrying the address itself.
func HashEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:8])
}

// Span names.
const (
	SpanIssuanceIssue    = "issuance.issue"
	SpanIssuanceRegister = "issuance.register_holder"
	SpanIssuanceResume   = "issuance.resume"
	SpanIssuanceUpload   = "issuance.upload"
	SpanIssuanceSubmit   = "issuance.submit"
	SpanIssuanceConfirm  = "issuance.confirm"
	SpanVerify           = "verification.verify"
	SpanVerifyContent    = "verification.content"
)

// Attribute keys.
const (
	AttrHolder         = "holder"
	AttrPrincipalHash  = "principal_hash"
	AttrCredentialID   = "credential_id"
	AttrContentAddress = "content_address"
	AttrTxHash         = "tx_hash"
	AttrBlockNumber    = "block_number"
	AttrOutcome        = "outcome"
	AttrValid          = "valid"
	AttrContentMissing = "content_unavailable"
	AttrBreakerOpen    = "breaker_open"
)
