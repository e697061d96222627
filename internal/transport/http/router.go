// Package httptransport composes the HTTP surface: shared middleware, the
// public and bearer-protected route groups, health and metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authmw "credledger/pkg/platform/middleware/auth"
	"credledger/pkg/platform/middleware/metadata"
	"credledger/pkg/platform/middleware/request"
	"credledger/pkg/platform/middleware/requesttime"
)

// Routes is a feature handler exposing unauthenticated routes.
type Routes interface {
	Register(r chi.Router)
}

// AuthenticatedRoutes is a feature handler whose routes need a bearer token.
type AuthenticatedRoutes interface {
	RegisterAuthenticated(r chi.Router)
}

// Config carries everything the router needs from the composition root.
type Config struct {
	Logger         *slog.Logger
	Verifier       authmw.TokenVerifier
	Metrics        *request.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	TrustedProxies []netip.Prefix

	// Public routes are mounted without authentication.
	Public []Routes
	// Protected routes are mounted behind RequireAuth.
	Protected []Routes
	// Mixed handlers contribute to both groups.
	Mixed []interface {
		Routes
		AuthenticatedRoutes
	}
}

// NewRouter wires all endpoints with the shared middleware stack.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewMiddleware(&metadata.Config{TrustedProxies: cfg.TrustedProxies}).Handler)
	r.Use(request.Recovery(logger))
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(cfg.Metrics))
	if cfg.RequestTimeout > 0 {
		r.Use(request.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxBodyBytes > 0 {
		r.Use(request.BodyLimit(cfg.MaxBodyBytes))
	}
	r.Use(request.ContentTypeJSON)

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range cfg.Public {
		h.Register(r)
	}
	for _, h := range cfg.Mixed {
		h.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.Verifier, logger))
		for _, h := range cfg.Protected {
			h.Register(r)
		}
		for _, h := range cfg.Mixed {
			h.RegisterAuthenticated(r)
		}
	})

	return r
}
