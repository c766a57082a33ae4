package router

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taha00000/book-for-me/internal/channel"
	"github.com/taha00000/book-for-me/internal/http/handlers"
	httpmiddleware "github.com/taha00000/book-for-me/internal/http/middleware"
	"github.com/taha00000/book-for-me/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Webhook        *channel.WebhookHandler
	AdminInventory *handlers.AdminInventoryHandler
	AdminToken     string
	MetricsHandler http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Webhook != nil {
		r.Get("/webhook", cfg.Webhook.Verify)
		r.Post("/webhook", cfg.Webhook.Receive)
	}

	if cfg.AdminInventory != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(requireAdminToken(cfg.AdminToken))
			admin.Get("/vendors", cfg.AdminInventory.ListVendors)
			admin.Get("/vendors/{vendorID}/slots", cfg.AdminInventory.ListSlots)
		})
	}

	return r
}

// requireAdminToken guards operator endpoints with a shared token. An empty
// configured token disables the endpoints entirely.
func requireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Admin-Token")
			if token == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
