package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dukerupert/goodboy/internal"
	"github.com/dukerupert/goodboy/internal/auth"
	"github.com/dukerupert/goodboy/internal/billing"
	"github.com/dukerupert/goodboy/internal/bootstrap"
	"github.com/dukerupert/goodboy/internal/cache"
	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/email"
	"github.com/dukerupert/goodboy/internal/handler"
	"github.com/dukerupert/goodboy/internal/handler/api"
	"github.com/dukerupert/goodboy/internal/handler/webhook"
	"github.com/dukerupert/goodboy/internal/jobs"
	"github.com/dukerupert/goodboy/internal/middleware"
	"github.com/dukerupert/goodboy/internal/router"
	"github.com/dukerupert/goodboy/internal/routes"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/dukerupert/goodboy/internal/telemetry"
	"github.com/dukerupert/goodboy/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
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

	// Prices leave the API as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

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
		return err
	}
	defer flushSentry()

	// Metrics registry shared by HTTP and business metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	businessMetrics := telemetry.NewBusinessMetrics(registry)
	httpMetrics := middleware.NewMetrics("goodboy", registry)

	// Persistence
	logger.Info().Str("driver", cfg.Store.Driver).Msg("Connecting to store...")
	store, closeStore, err := internal.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("store initialization failed: %w", err)
	}
	defer closeStore()

	// Redis is optional: it backs the catalog cache and the event ledger
	var catalogCache cache.Catalog
	var ledger domain.EventLedger = store
	if cfg.Redis.URL != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer closeRedis(rdb, logger)
		catalogCache = cache.NewRedisCatalog(rdb, cfg.Redis.CatalogTTL)
		ledger = cache.NewEventLedger(rdb, 0)
		logger.Info().Dur("catalog_ttl", cfg.Redis.CatalogTTL).Msg("Redis cache enabled")
	}

	// Billing provider
	provider, err := newBillingProvider(cfg, logger)
	if err != nil {
		return err
	}

	// Email and background jobs
	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}
	jobWorker := worker.NewWorker(mailer, businessMetrics, worker.Config{BaseURL: cfg.BaseURL}, logger)

	g, gctx := errgroup.WithContext(ctx)

	var queue jobs.Enqueuer
	if cfg.NATS.URL != "" {
		nc, err := jobs.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		queue = jobs.NewNATSPublisher(nc, cfg.NATS.Subject)
		g.Go(func() error {
			return jobWorker.Start(gctx, nc, cfg.NATS.Subject, cfg.NATS.Queue)
		})
		logger.Info().Str("subject", cfg.NATS.Subject).Msg("NATS job queue enabled")
	} else {
		inline := jobs.NewInlineDispatcher(jobWorker.Handle, 0, logger)
		defer inline.Wait()
		queue = inline
	}

	// Services
	catalogService := service.NewCatalogService(store, catalogCache, businessMetrics)
	checkoutService := service.NewCheckoutService(catalogService, provider, businessMetrics, service.CheckoutConfig{
		Currency: cfg.Currency,
		BaseURL:  cfg.BaseURL,
	})
	orderService := service.NewOrderService(store, catalogService, ledger, provider, queue, businessMetrics, service.OrderServiceConfig{
		DirectOrdering: !cfg.WebhookMode(),
	})
	trackerService := service.NewTrackerService(store)
	userService := service.NewUserService(
		store,
		auth.NewHasher(auth.DefaultCost),
		auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		businessMetrics,
	)

	if err := bootstrap.EnsureMasterAdmin(ctx, userService, &bootstrap.AdminConfig{
		Email:     cfg.Admin.Email,
		Password:  cfg.Admin.Password,
		FirstName: cfg.Admin.FirstName,
		LastName:  cfg.Admin.LastName,
	}, logger); err != nil {
		return err
	}

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0
	}

	clientIP, err := middleware.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	defaultLimits := middleware.DefaultRateLimiterConfig()
	defaultLimits.KeyFunc = clientIP.ClientIP
	defaultRateLimiter := middleware.NewRateLimiter(defaultLimits)
	defer defaultRateLimiter.Stop()

	authLimits := middleware.StrictRateLimiterConfig()
	authLimits.KeyFunc = clientIP.ClientIP
	authRateLimiter := middleware.NewRateLimiter(authLimits)
	defer authRateLimiter.Stop()

	r := router.New(
		middleware.RequestID,
		middleware.RequestLogger(logger),
		router.Recovery,
		telemetry.SentryMiddleware,
		httpMetrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		router.CORS(cfg.CORSOrigins),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		defaultRateLimiter.Middleware,
	)

	// ==========================================================================
	// Register routes
	// ==========================================================================

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Health: func(w http.ResponseWriter, _ *http.Request) {
			handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "order_mode": cfg.OrderMode})
		},
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	var webhookDeps routes.WebhookDeps
	if cfg.WebhookMode() {
		webhookDeps.StripeHandler = webhook.NewStripeHandler(provider, orderService, businessMetrics)
	}
	routes.RegisterWebhookRoutes(r, webhookDeps)

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		ProductHandler:  api.NewProductHandler(catalogService),
		CheckoutHandler: api.NewCheckoutHandler(checkoutService),
		OrderHandler:    api.NewOrderHandler(orderService, trackerService),
		AuthHandler:     api.NewAuthHandler(userService),
		Auth:            userService,
		AuthLimiter:     authRateLimiter.Middleware,
		DirectOrdering:  !cfg.WebhookMode(),
	})

	r.Static(cfg.PublicDir)

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.Go(func() error {
		logger.Info().
			Str("address", srv.Addr).
			Str("order_mode", cfg.OrderMode).
			Str("store", cfg.Store.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newBillingProvider returns the Stripe provider, or the in-memory mock in
// development when no real key is configured.
func newBillingProvider(cfg *internal.Config, logger zerolog.Logger) (billing.Provider, error) {
	placeholder := cfg.Stripe.SecretKey == "" || strings.HasSuffix(cfg.Stripe.SecretKey, "_here")
	if placeholder && cfg.Env == "dev" {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, using mock billing provider")
		return billing.NewMockProvider(cfg.Stripe.WebhookSecret), nil
	}

	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Currency,
	}
	provider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info().Bool("test_mode", stripeConfig.IsTestMode()).Msg("Stripe billing provider initialized")
	return provider, nil
}

// newMailer sends through SMTP when a relay is configured and logs emails
// otherwise.
func newMailer(cfg *internal.Config, logger zerolog.Logger) (*email.Service, error) {
	var sender email.Sender
	if cfg.Email.Host != "" {
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
	} else {
		sender = email.NewLogSender(logger)
	}

	svc, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email service: %w", err)
	}
	return svc, nil
}

func closeRedis(rdb *redis.Client, logger zerolog.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close redis client")
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
