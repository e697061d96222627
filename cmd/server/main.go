package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"credledger/internal/auth"
	authhandler "credledger/internal/auth/handler"
	"credledger/internal/contentstore"
	"credledger/internal/contentstore/cache"
	memorystore "credledger/internal/contentstore/memory"
	"credledger/internal/contentstore/pinning"
	issuancehandler "credledger/internal/issuance/handler"
	issuancemetrics "credledger/internal/issuance/metrics"
	issuance "credledger/internal/issuance/service"
	"credledger/internal/ledger"
	memoryledger "credledger/internal/ledger/memory"
	"credledger/internal/ledger/rpc"
	"credledger/internal/platform/config"
	"credledger/internal/platform/health"
	"credledger/internal/platform/logger"
	"credledger/internal/platform/redis"
	"credledger/internal/platform/tracer"
	httptransport "credledger/internal/transport/http"
	verificationhandler "credledger/internal/verification/handler"
	verificationmetrics "credledger/internal/verification/metrics"
	verification "credledger/internal/verification/service"
	"credledger/pkg/platform/circuit"
	"credledger/pkg/platform/middleware/request"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("initializing credledger",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"ledger_mode", cfg.Ledger.Mode,
		"content_mode", cfg.Content.Mode,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	trc, shutdownTracing, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	healthHandler := health.New(cfg.Server.Environment)

	issuer, err := ledger.ParseAddress(cfg.Ledger.IssuerAddress)
	if err != nil {
		return fmt.Errorf("ledger issuer address: %w", err)
	}
	ledgerClient, err := buildLedger(ctx, cfg.Ledger, issuer, log)
	if err != nil {
		return err
	}
	if p, ok := ledgerClient.(interface{ Ping(context.Context) error }); ok {
		healthHandler.RegisterCheck("ledger", p.Ping)
	}

	store, closeStore, err := buildContentStore(ctx, cfg, reg, healthHandler, log)
	if err != nil {
		return err
	}
	defer closeStore()

	authenticator := auth.New(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	issuanceService := issuance.New(store, ledgerClient,
		issuance.WithLogger(log),
		issuance.WithMetrics(issuancemetrics.New(reg)),
		issuance.WithTracer(trc),
	)

	breaker := circuit.New("content-store",
		circuit.WithFailureThreshold(cfg.Content.BreakerFailures),
		circuit.WithSuccessThreshold(cfg.Content.BreakerSuccesses),
		circuit.WithCooldown(cfg.Content.BreakerCooldown),
	)
	verificationService := verification.New(ledgerClient, store,
		verification.WithLogger(log),
		verification.WithMetrics(verificationmetrics.New(reg)),
		verification.WithTracer(trc),
		verification.WithBreaker(breaker),
	)

	proxies, err := parsePrefixes(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Verifier:       auth.NewBearerVerifier(authenticator),
		Metrics:        request.NewMetrics(reg),
		Gatherer:       reg,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		TrustedProxies: proxies,
		Public: []httptransport.Routes{
			healthHandler,
			authhandler.New(authenticator, log),
		},
		Protected: []httptransport.Routes{
			issuancehandler.New(issuanceService, log),
		},
		Mixed: []interface {
			httptransport.Routes
			httptransport.AuthenticatedRoutes
		}{
			verificationhandler.New(verificationService, log),
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func setupTracing(ctx context.Context, cfg config.Tracing) (tracer.Tracer, func(context.Context) error, error) {
	if !cfg.Enabled {
		return tracer.NewNoop(), func(context.Context) error { return nil }, nil
	}
	shutdown, err := tracer.Setup(ctx, cfg.Exporter)
	if err != nil {
		return nil, nil, err
	}
	return tracer.NewOTel(), shutdown, nil
}

// buildLedger returns the configured ledger client. The memory ledger starts
// empty, so the issuer is authorized before the server accepts traffic.
func buildLedger(ctx context.Context, cfg config.Ledger, issuer ledger.Address, log *slog.Logger) (ledger.Client, error) {
	switch cfg.Mode {
	case config.ModeRPC:
		return rpc.New(rpc.Config{
			URL:            cfg.RPCURL,
			Account:        issuer,
			ConfirmTimeout: cfg.ConfirmTimeout,
			PollInterval:   cfg.PollInterval,
			Logger:         log,
		}), nil

	default:
		l := memoryledger.New(issuer,
			memoryledger.WithBlockInterval(cfg.BlockInterval),
			memoryledger.WithConfirmTimeout(cfg.ConfirmTimeout),
			memoryledger.WithLogger(log),
		)
		h, err := l.AuthorizeIssuer(ctx, issuer)
		if err != nil {
			return nil, fmt.Errorf("authorize issuer: %w", err)
		}
		if _, err := l.Confirm(ctx, h); err != nil {
			return nil, fmt.Errorf("confirm issuer authorization: %w", err)
		}
		log.InfoContext(ctx, "issuer authorized on memory ledger", "issuer", issuer.String())
		return l, nil
	}
}

// buildContentStore returns the configured store, wrapped in the Redis
// read-through cache when a Redis URL is configured.
func buildContentStore(ctx context.Context, cfg config.Config, reg prometheus.Registerer, hh *health.Handler, log *slog.Logger) (contentstore.Store, func(), error) {
	var store contentstore.Store
	switch cfg.Content.Mode {
	case config.ModePinning:
		store = pinning.New(pinning.Config{
			APIURL:     cfg.Content.PinningAPIURL,
			GatewayURL: cfg.Content.GatewayURL,
			APIKey:     cfg.Content.APIKey,
			APISecret:  cfg.Content.APISecret,
			Timeout:    cfg.Content.RequestTimeout,
			Logger:     log,
		})
	default:
		store = memorystore.New()
	}

	client, err := redis.New(ctx, redis.Options{URL: cfg.Cache.RedisURL}, reg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return store, func() {}, nil
	}

	hh.RegisterCheck("redis", client.Health)
	go client.RecordPoolStats(ctx, 15*time.Second)
	log.Info("content cache enabled", "ttl", cfg.Cache.TTL)

	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	return cache.New(store, cache.NewRedisBackend(client.Client),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithLogger(log),
		cache.WithMetrics(reg),
	), closeClient, nil
}

func parsePrefixes(raw []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}
