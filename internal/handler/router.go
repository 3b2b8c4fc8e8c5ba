package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/shelfkit/shelfkit/internal/middleware"
)

// RouterConfig collects the handlers and middleware settings for NewRouter.
type RouterConfig struct {
	Logger   *slog.Logger
	Health   *HealthHandler
	Metrics  *MetricsHandler
	Webhook  *WebhookHandler
	Products *ProductHandler
	Checkout *CheckoutHandler
	Accounts *AccountHandler

	Auth              middleware.AuthConfig
	CheckoutRateLimit middleware.RateLimitConfig
	CORSOrigins       []string
	IsDevelopment     bool
	MaxBodyBytes      int64
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	// The receiver enforces its own body limit so oversize payloads get the
	// same response as any other rejected event.
	r.Post("/webhooks/payments", cfg.Webhook.Receive)

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))

		r.Post("/accounts", cfg.Accounts.Register)
		r.Get("/discover", cfg.Products.Discover)

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.Auth))
			r.Get("/p/{slug}", cfg.Products.Detail)
			r.With(middleware.RateLimitIP(cfg.CheckoutRateLimit)).Post("/p/{slug}/checkout", cfg.Checkout.Create)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.Auth))

			r.Get("/accounts/me", cfg.Accounts.Me)
			r.Get("/accounts/me/payouts", cfg.Accounts.PayoutStatus)
			r.Post("/accounts/me/payouts/link", cfg.Accounts.PayoutLink)

			r.Get("/products", cfg.Products.ListOwned)
			r.Post("/products", cfg.Products.Create)
			r.Patch("/p/{slug}", cfg.Products.Update)
			r.Delete("/p/{slug}", cfg.Products.Delete)

			r.Get("/library", cfg.Products.Library)
		})
	})

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}
