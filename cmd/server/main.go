package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/gamersmart/internal"
	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/events"
	"github.com/dukerupert/gamersmart/internal/gateway"
	"github.com/dukerupert/gamersmart/internal/handler"
	"github.com/dukerupert/gamersmart/internal/handler/api"
	"github.com/dukerupert/gamersmart/internal/handler/webhook"
	"github.com/dukerupert/gamersmart/internal/memory"
	"github.com/dukerupert/gamersmart/internal/middleware"
	"github.com/dukerupert/gamersmart/internal/postgres"
	"github.com/dukerupert/gamersmart/internal/repository"
	"github.com/dukerupert/gamersmart/internal/router"
	"github.com/dukerupert/gamersmart/internal/routes"
	"github.com/dukerupert/gamersmart/internal/service"
	"github.com/dukerupert/gamersmart/internal/telemetry"
	"github.com/dukerupert/gamersmart/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Error tracking
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	if cfg.Metrics.Enabled {
		telemetry.InitBusinessMetrics(cfg.Metrics.Namespace)
	}

	// Repository backend
	var (
		repo repository.Store
		ping handler.Pinger
	)
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		repo = memory.NewStore()
	default:
		pool, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo = postgres.NewStore(pool)
		ping = pool.Ping
	}

	// Payment gateway
	logger.Info("Initializing payment gateway...", "provider", cfg.Gateway.Provider)
	provider, err := newGateway(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize payment gateway: %w", err)
	}
	logger.Info("Payment gateway initialized", "provider", provider.Name())

	// Domain events
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.NATSURL != "" {
		logger.Info("Connecting to NATS...")
		nats, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher = nats
		logger.Info("NATS connection established")
	}
	defer publisher.Close()

	// Services
	cartService := service.NewCartService(repo, logger)
	orderService := service.NewOrderService(repo, publisher, logger)
	paymentService := service.NewPaymentService(repo, provider, publisher, service.PaymentConfig{
		Currency:    cfg.Payment.Currency,
		RedirectURL: cfg.Payment.RedirectURL,
	}, logger)

	// Middleware
	checkoutLimiter := middleware.NewRateLimiter(middleware.StrictRateLimiterConfig())
	defer checkoutLimiter.Stop()
	defaultLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultLimiter.Stop()

	chain := []router.Middleware{
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		telemetry.SentryMiddleware(),
		middleware.Authenticate(repo),
		telemetry.SentryContextMiddleware(sentryUser),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
		router.CORS(cfg.AllowedOrigins),
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metrics := middleware.NewMetrics(cfg.Metrics.Namespace, nil)
		chain = append(chain, metrics.Middleware)
		metricsHandler = metrics.Handler()
	}

	chain = append(chain,
		defaultLimiter.Middleware,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.GatewayTimeout),
	)

	r := router.New(chain...)

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		CartHandler:     api.NewCartHandler(cartService),
		OrderHandler:    api.NewOrderHandler(orderService),
		PaymentHandler:  api.NewPaymentHandler(paymentService),
		CheckoutLimiter: checkoutLimiter,
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		GatewayHandler: webhook.NewGatewayHandler(paymentService).HandleWebhook,
	})
	routes.RegisterSystemRoutes(r, routes.SystemDeps{
		Health:  handler.Health(ping),
		Metrics: metricsHandler,
	})

	// Stale payment sweeper
	if cfg.Payment.SweepInterval > 0 {
		sweeper := worker.NewWorker(paymentService, worker.Config{
			PollInterval: cfg.Payment.SweepInterval,
			ExpireAfter:  cfg.Payment.ExpiryAfter,
		}, logger)
		go func() {
			defer telemetry.RecoverWithSentry()
			if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Payment sweeper stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")

	return nil
}

// openDatabase runs migrations over database/sql and returns the pgx pool
// used by the repository.
func openDatabase(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	applied, err := internal.RunMigrations(ctx, sqlDB, logger)
	if err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Schema up to date", "applied", applied)

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

func newGateway(cfg *internal.Config) (gateway.Provider, error) {
	switch cfg.Gateway.Provider {
	case "stripe":
		return gateway.NewStripeProvider(gateway.StripeConfig{
			APIKey:        cfg.Gateway.Stripe.SecretKey,
			WebhookSecret: cfg.Gateway.Stripe.WebhookSecret,
		})
	case "mock":
		return gateway.NewMockProvider(cfg.Gateway.Flutterwave.WebhookHash), nil
	default:
		return gateway.NewFlutterwaveProvider(gateway.FlutterwaveConfig{
			BaseURL:     cfg.Gateway.Flutterwave.BaseURL,
			SecretKey:   cfg.Gateway.Flutterwave.SecretKey,
			WebhookHash: cfg.Gateway.Flutterwave.WebhookHash,
			Timeout:     cfg.Gateway.Timeout,
			Title:       "Gamersmart",
		})
	}
}

func sentryUser(ctx context.Context) *telemetry.UserInfo {
	user := domain.UserFromContext(ctx)
	if user == nil {
		return nil
	}
	return &telemetry.UserInfo{ID: user.ID.String(), Email: user.Email}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
