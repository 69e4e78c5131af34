package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mondb-dev/x402-wp/internal/content"
	"github.com/mondb-dev/x402-wp/internal/facilitator"
	"github.com/mondb-dev/x402-wp/internal/facilitator/mock"
	"github.com/mondb-dev/x402-wp/internal/kv"
	"github.com/mondb-dev/x402-wp/internal/notice"
	"github.com/mondb-dev/x402-wp/internal/paymentlog"
	"github.com/mondb-dev/x402-wp/internal/paymentlog/repo/pg"
	"github.com/mondb-dev/x402-wp/internal/paymentlog/repo/sqlite"
	"github.com/mondb-dev/x402-wp/internal/paywall"
	"github.com/mondb-dev/x402-wp/internal/resource"
	"github.com/mondb-dev/x402-wp/internal/session"
	"github.com/mondb-dev/x402-wp/internal/tokens"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

var (
	commit    string
	buildDate string
)

func main() {
	ctx := context.Background()

	configPath := flag.String("config", "", "location of config file. If non is specified config will be loaded from the environment")
	flag.Parse()

	var (
		cfg Config
		err error
	)
	if *configPath != "" {
		err = cfg.Load(*configPath)
	} else {
		err = cfg.LoadFromEnv()
	}
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("build info", zap.String("commit", commit), zap.String("date", buildDate))

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	// KV store for sessions and notices
	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore.Close()

	sessions, err := session.New(store, cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("session.New: %w", err)
	}

	// Payment log setup
	repo, err := newPaymentRepo(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	payments, err := paymentlog.New(repo)
	if err != nil {
		return fmt.Errorf("paymentlog.New: %w", err)
	}

	fac, err := newFacilitator(cfg)
	if err != nil {
		return err
	}

	registry := tokens.Default(cfg.ExtraTokens...)
	catalog, err := resource.NewCatalog(cfg.Resources, registry, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("resource.NewCatalog: %w", err)
	}
	for _, res := range catalog.List() {
		if _, err := catalog.PaywallConfig(res.ID); err != nil {
			logger.Warn("resource payment terms invalid", zap.String("resource", res.ID), zap.Error(err))
		}
	}

	svc, err := paywall.New(paywall.Config{
		TimeoutSeconds: cfg.RequirementsTimeout,
	}, catalog, timedFacilitator{next: fac}, payments, sessions, logger.Named("paywall"))
	if err != nil {
		return fmt.Errorf("paywall.New: %w", err)
	}

	// Content setup
	var s3 content.Fetcher
	if cfg.S3Region != "" {
		s3c, err := content.NewS3(ctx, cfg.S3Region)
		if err != nil {
			return fmt.Errorf("content.NewS3: %w", err)
		}
		s3 = s3c
	}

	h := handlers{
		config:   cfg,
		logger:   logger,
		paywall:  svc,
		catalog:  catalog,
		content:  content.NewRouter(content.NewFilesystem(cfg.ContentDir), s3),
		notices:  notice.New(store, notice.DefaultTTL),
		payments: payments,
		tokens:   registry,
	}

	port := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("api listening", zap.String("addr", port))

	return http.ListenAndServe(port, newRouter(&h))
}

func newRouter(h *handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", x402.HeaderPayment, x402.HeaderPaymentSession, "X-Admin-Key"},
		ExposedHeaders:   []string{x402.HeaderPaymentResponse, x402.HeaderPaymentSession},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metricsMiddleware)

	r.Get("/r/{id}", h.handleResource)
	r.Get("/r/{id}/requirements", h.handleRequirements)
	r.Get("/api/r/{id}", h.handleResource)
	r.Get("/api/payments/{id}", h.handleListPayments)
	r.Get("/api/tokens", h.handleGetTokens)
	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newStore(ctx context.Context, cfg Config) (kv.Store, io.Closer, error) {
	switch cfg.KVBackend {
	case "memory":
		return kv.NewMemory(), nopCloser{}, nil
	case "redis":
		r, err := kv.NewRedis(ctx, kv.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("kv.NewRedis: %w", err)
		}
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown kv_backend %q. must be 'memory' or 'redis'", cfg.KVBackend)
	}
}

type paymentRepo interface {
	CreateEntry(ctx context.Context, e paymentlog.Entry) (*paymentlog.Entry, error)
	GetEntry(ctx context.Context, id int64) (*paymentlog.Entry, error)
	ListEntries(ctx context.Context, resourceID string, limit int) ([]paymentlog.Entry, error)
	HasPaid(ctx context.Context, resourceID, address string) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status paymentlog.Status) error
	Close() error
}

func newPaymentRepo(cfg Config) (paymentRepo, error) {
	switch cfg.LogBackend {
	case "sqlite":
		repo, err := sqlite.New(cfg.LogDSN)
		if err != nil {
			return nil, fmt.Errorf("sqlite.New: %w", err)
		}
		return repo, nil
	case "postgres":
		repo, err := pg.New(cfg.LogDSN)
		if err != nil {
			return nil, fmt.Errorf("pg.New: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown log_backend %q. must be 'sqlite' or 'postgres'", cfg.LogBackend)
	}
}

type verifier interface {
	VerifyAndSettle(ctx context.Context, req x402.PaymentRequirements, p *x402.PaymentPayload) (*x402.SettlementResult, error)
}

func newFacilitator(cfg Config) (verifier, error) {
	switch cfg.FacilitatorProvider {
	case "http":
		c, err := facilitator.New(cfg.FacilitatorURL, cfg.FacilitatorAPIKey, cfg.FacilitatorTimeout)
		if err != nil {
			return nil, fmt.Errorf("facilitator.New: %w", err)
		}
		return c, nil
	case "mock":
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown facilitator_provider %q. must be 'http' or 'mock'", cfg.FacilitatorProvider)
	}
}
