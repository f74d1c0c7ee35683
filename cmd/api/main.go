package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/promptforge-ai/promptforge/internal/api"
	"github.com/promptforge-ai/promptforge/internal/audit"
	"github.com/promptforge-ai/promptforge/internal/auth"
	"github.com/promptforge-ai/promptforge/internal/billing"
	"github.com/promptforge-ai/promptforge/internal/config"
	"github.com/promptforge-ai/promptforge/internal/database"
	"github.com/promptforge-ai/promptforge/internal/events"
	"github.com/promptforge-ai/promptforge/internal/gate"
	"github.com/promptforge-ai/promptforge/internal/generation"
	"github.com/promptforge-ai/promptforge/internal/middleware"
	iredis "github.com/promptforge-ai/promptforge/internal/redis"
	"github.com/promptforge-ai/promptforge/internal/server"
	"github.com/promptforge-ai/promptforge/internal/usage"
	"github.com/promptforge-ai/promptforge/internal/vendors/groq"
	"github.com/promptforge-ai/promptforge/internal/vendors/huggingface"
	"github.com/promptforge-ai/promptforge/internal/vendors/segmind"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("validating config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional)
	var eventsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		eventsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		publisher = events.NewPublisher(eventsClient.JetStream())
	} else {
		slog.Warn("NATS_URL is empty — event publishing disabled")
	}

	validate := validator.New()

	// Auth (tokens are minted by the external identity service)
	verifier := auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)

	// Access gate
	usageRepo := usage.NewRepository(pool)
	billingRepo := billing.NewRepository(pool)
	billingSvc := billing.NewService(billingRepo, redisClient, cfg.Gate)
	gateSvc := gate.NewService(usageRepo, billingSvc, cfg.Gate)
	gateHandler := gate.NewHandler(gateSvc)

	// Vendors
	groqClient := groq.NewClient(groq.Options{
		BaseURL: cfg.Vendors.Groq.BaseURL,
		APIKey:  cfg.Vendors.Groq.APIKey,
		Model:   cfg.Vendors.Groq.Model,
		Timeout: cfg.Vendors.Timeout,
	})
	hfClient := huggingface.NewClient(huggingface.Options{
		BaseURL: cfg.Vendors.HuggingFace.BaseURL,
		APIKey:  cfg.Vendors.HuggingFace.APIKey,
		Model:   cfg.Vendors.HuggingFace.Model,
		Timeout: cfg.Vendors.Timeout,
	})
	segmindClient := segmind.NewClient(segmind.Options{
		BaseURL: cfg.Vendors.Segmind.BaseURL,
		APIKey:  cfg.Vendors.Segmind.APIKey,
		Timeout: cfg.Vendors.Timeout,
	})

	// Generation pipeline
	genHandler := generation.NewHandler(gateSvc, publisher,
		generation.NewCodeGenerator(groqClient, validate),
		generation.NewImageGenerator(hfClient, validate),
		generation.NewVideoGenerator(segmindClient, validate),
	)

	// Audit trail
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)
	if eventsClient != nil {
		consumer := audit.NewConsumer(auditRepo, events.NewConsumerManager(eventsClient.JetStream()))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	handlers := api.HandlerSet{
		GenerateCode:  genHandler.Code,
		GenerateImage: genHandler.Image,
		GenerateVideo: genHandler.Video,

		Usage:     gateHandler.Usage,
		ListAudit: auditHandler.List,

		AuthMiddleware: auth.Middleware(verifier),
	}

	// Billing (optional: disabled without Paddle credentials)
	routerCfg := api.RouterConfig{CORSAllowedOrigins: cfg.CORS.AllowedOrigins}
	if cfg.Billing.PaddleAPIKey != "" && cfg.Billing.PaddleWebhookSecret != "" {
		provider, err := billing.NewPaddleProvider(cfg.Billing)
		if err != nil {
			slog.Error("creating paddle provider", "error", err)
			os.Exit(1)
		}
		billingHandler := billing.NewHandler(billingSvc, provider, publisher)
		handlers.BillingCheckout = billingHandler.Checkout
		handlers.BillingSubscription = billingHandler.Subscription
		handlers.BillingWebhook = billingHandler.Webhook

		limiter := middleware.NewRateLimiter(redisClient, cfg.Billing.WebhookRatePerMin, 60)
		routerCfg.WebhookRateLimiter = limiter.Middleware
	}

	router := api.NewRouter(pool, eventsClient, routerCfg, handlers)

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
