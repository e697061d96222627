// Package service coordinates issuance across the content store and the
// ledger: payloads are stored first, then linked by a ledger transaction,
// then confirmed. Writes are never retried; a confirmation that does not
// arrive in time yields a pending receipt rather than a failure.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"credledger/internal/contentstore"
	"credledger/internal/issuance/metrics"
	"credledger/internal/ledger"
	"credledger/internal/platform/tracer"
)

// ContentStore uploads payloads.
type ContentStore interface {
	Put(ctx context.Context, payload json.RawMessage) (contentstore.Address, error)
}

// Ledger is the write side of the ledger client.
type Ledger interface {
	RegisterHolder(ctx context.Context, req ledger.RegisterHolderRequest) (ledger.TxHandle, error)
	IssueCredential(ctx context.Context, req ledger.IssueRequest) (ledger.TxHandle, error)
	Confirm(ctx context.Context, h ledger.TxHandle) (ledger.Confirmation, error)
}

// Service is the issuance coordinator.
type Service struct {
	store   ContentStore
	ledger  Ledger
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
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

func New(store ContentStore, l Ledger, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		ledger: l,
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
