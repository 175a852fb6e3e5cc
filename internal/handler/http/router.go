package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/checkout-wizard/pkg/health"
	"github.com/utafrali/checkout-wizard/pkg/middleware"

	"github.com/utafrali/checkout-wizard/internal/service"
)

// RouterConfig holds the router's middleware knobs.
type RouterConfig struct {
	ServiceName    string
	Environment    string
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
}

// NewRouter creates a chi router with all wizard service routes registered.
func NewRouter(
	wizardService *service.WizardService,
	mockHandler *MockAPIHandler,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware. Order matters: tracing and request logging run
	// before the request-scoped logger so it can pick up their context.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.AllowedOrigins
	corsCfg.Environment = cfg.Environment

	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics())
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	}

	// Health and metrics endpoints.
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	wizardHandler := NewWizardHandler(wizardService, logger)

	// Step-URL synchronization with the route guard.
	r.Get("/checkout", wizardHandler.CheckoutPage)

	// Wizard API endpoints.
	r.Route("/api/v1/wizard", func(r chi.Router) {
		r.Post("/", wizardHandler.CreateSession)
		r.Get("/{id}", wizardHandler.GetSession)
		r.Post("/{id}/account", wizardHandler.SubmitAccount)
		r.Post("/{id}/shipping", wizardHandler.SubmitShipping)
		r.Post("/{id}/complete", wizardHandler.CompleteOrder)
		r.Post("/{id}/back", wizardHandler.Back)
		r.Post("/{id}/quantity", wizardHandler.ChangeQuantity)
		r.Post("/{id}/discount", wizardHandler.ApplyDiscount)
		r.Post("/{id}/reset", wizardHandler.Reset)
	})

	// Mock checkout backend endpoints.
	r.Route("/api/checkout", func(r chi.Router) {
		r.Post("/account", mockHandler.Account)
		r.Post("/shipping", mockHandler.Shipping)
		r.Post("/payment", mockHandler.Payment)
		r.Post("/complete", mockHandler.Complete)
		r.Get("/summary", mockHandler.Summary)
	})

	return r
}
