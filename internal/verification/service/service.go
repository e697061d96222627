// Package service resolves credential ids into verification results by
// combining ledger validity, the ledger record and the stored payload. The
// ledger answer is authoritative; content is best effort.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"credledger/internal/contentstore"
	"credledger/internal/ledger"
	"credledger/internal/platform/tracer"
	"credledger/internal/verification/metrics"
	"credledger/pkg/platform/circuit"
)

// Ledger is the read side of the ledger client.
type Ledger interface {
	VerifyCredential(ctx context.Context, id ledger.CredentialID) (bool, string, error)
	GetCredential(ctx context.Context, id ledger.CredentialID) (ledger.CredentialRecord, error)
	GetHolderCredentials(ctx context.Context, holder ledger.Address) ([]ledger.CredentialID, error)
	GetHolder(ctx context.Context, holder ledger.Address) (ledger.Holder, error)
}

// ContentStore resolves content addresses.
type ContentStore interface {
	Get(ctx context.Context, addr contentstore.Address) (json.RawMessage, error)
}

const defaultConcurrency = 4

// Service is the verification resolver.
type Service struct {
	ledger      Ledger
	store       ContentStore
	breaker     *circuit.Breaker
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithBreaker guards content fetches. Without one every fetch is attempted.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

// WithConcurrency bounds the verifications run in parallel for one holder.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(l Ledger, store ContentStore, opts ...Option) *Service {
	svc := &Service{
		ledger:      l,
		store:       store,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.NewNoop()
	}
	return svc
}
