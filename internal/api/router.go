package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptforge-ai/promptforge/internal/database"
	"github.com/promptforge-ai/promptforge/internal/events"
	mw "github.com/promptforge-ai/promptforge/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Generation handlers
	GenerateCode  http.HandlerFunc
	GenerateImage http.HandlerFunc
	GenerateVideo http.HandlerFunc

	// Quota view
	Usage http.HandlerFunc

	// Audit trail
	ListAudit http.HandlerFunc

	// Billing; nil when Paddle credentials are absent
	BillingCheckout     http.HandlerFunc
	BillingSubscription http.HandlerFunc
	BillingWebhook      http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	WebhookRateLimiter func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, eventsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if eventsClient != nil && !eventsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if eventsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Billing webhook (public, signature-verified, rate-limited)
	if h.BillingWebhook != nil {
		r.Group(func(r chi.Router) {
			if cfg.WebhookRateLimiter != nil {
				r.Use(cfg.WebhookRateLimiter)
			}
			r.Post("/webhooks/billing", h.BillingWebhook)
		})
	}

	// API v1 (protected)
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/generate", func(r chi.Router) {
				r.Post("/code", h.GenerateCode)
				r.Post("/image", h.GenerateImage)
				r.Post("/video", h.GenerateVideo)
			})

			r.Get("/usage", h.Usage)
			r.Get("/audit", h.ListAudit)

			if h.BillingCheckout != nil {
				r.Route("/billing", func(r chi.Router) {
					r.Post("/checkout", h.BillingCheckout)
					r.Get("/subscription", h.BillingSubscription)
				})
			}
		})
	})

	return r
}
