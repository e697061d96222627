// Package cache is a read-through cache in front of any contentstore.Store.
// Content at an address never changes, so entries are never invalidated;
// the TTL only bounds memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"credledger/internal/contentstore"
)

// ErrMiss is returned by a Backend when the key is absent.
var ErrMiss = errors.New("cache: miss")

// Backend is a byte-oriented key/value cache with expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const keyPrefix = "credledger:content:"

// Store decorates an inner store. Cache failures are logged and bypassed:
// the cache never turns a healthy store into a failing one.
type Store struct {
	inner   contentstore.Store
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
	fill    singleflight.Group
	hits    prometheus.Counter
	misses  prometheus.Counter
	errors  prometheus.Counter
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMetrics registers hit/miss/error counters on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Store) {
		f := promauto.With(reg)
		s.hits = f.NewCounter(prometheus.CounterOpts{
			Name: "credledger_content_cache_hits_total",
			Help: "Content reads served from cache",
		})
		s.misses = f.NewCounter(prometheus.CounterOpts{
			Name: "credledger_content_cache_misses_total",
			Help: "Content reads that fell through to the store",
		})
		s.errors = f.NewCounter(prometheus.CounterOpts{
			Name: "credledger_content_cache_errors_total",
			Help: "Cache backend failures bypassed",
		})
	}
}

func New(inner contentstore.Store, backend Backend, opts ...Option) *Store {
	s := &Store{
		inner:   inner,
		backend: backend,
		ttl:     time.Hour,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put writes through: the payload is cached under the address the inner store returned.
func (s *Store) Put(ctx context.Context, payload json.RawMessage) (contentstore.Address, error) {
	addr, err := s.inner.Put(ctx, payload)
	if err != nil {
		return "", err
	}
	if canonical, cerr := contentstore.Canonicalize(payload); cerr == nil {
		s.set(ctx, addr, canonical)
	}
	return addr, nil
}

// Get serves from the cache when it can. Concurrent misses for one address
// share a single fill from the inner store. The fill is detached from the
// caller's cancellation; each caller stops waiting when its own ctx ends.
func (s *Store) Get(ctx context.Context, addr contentstore.Address) (json.RawMessage, error) {
	if cached, ok := s.lookup(ctx, addr); ok {
		inc(s.hits)
		return cached, nil
	}
	inc(s.misses)

	ch := s.fill.DoChan(addr.String(), func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		// An earlier fill may have landed between the lookup and this flight.
		if cached, ok := s.lookup(fctx, addr); ok {
			return cached, nil
		}
		fetched, err := s.inner.Get(fctx, addr)
		if err != nil {
			return nil, err
		}
		s.set(fctx, addr, fetched)
		return fetched, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

func (s *Store) lookup(ctx context.Context, addr contentstore.Address) (json.RawMessage, bool) {
	cached, err := s.backend.Get(ctx, keyPrefix+addr.String())
	switch {
	case err == nil:
		return cached, true
	case errors.Is(err, ErrMiss):
	default:
		inc(s.errors)
		s.logger.WarnContext(ctx, "content cache read failed", "content_address", addr.String(), "error", err)
	}
	return nil, false
}

func (s *Store) set(ctx context.Context, addr contentstore.Address, payload []byte) {
	if err := s.backend.Set(ctx, keyPrefix+addr.String(), payload, s.ttl); err != nil {
		inc(s.errors)
		s.logger.WarnContext(ctx, "content cache write failed", "content_address", addr.String(), "error", err)
	}
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

var _ contentstore.Store = (*Store)(nil)
