package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	rpMiddleware "github.com/ruralpay/ledger/internal/middleware"
)

// Handlers bundles every handler the router wires; callers assemble it in
// cmd/server after constructing the underlying services.
type Handlers struct {
	Payouts *PayoutHandler
	Events  *EventHandler
	Admin   *AdminHandler
	Receipt *ReceiptHandler
}

// NewRouter builds the chi router for the ledger API.
func NewRouter(h Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/payouts", func(r chi.Router) {
			r.Post("/", h.Payouts.Create)
			r.Get("/", h.Payouts.List)
			r.Get("/{id}", h.Payouts.Get)
			r.Get("/{id}/events", h.Payouts.History)
			r.Get("/{id}/receipt", h.Receipt.Get)
		})

		r.Get("/events", h.Events.List)

		r.Route("/admin", func(r chi.Router) {
			r.Use(rpMiddleware.AuthMiddleware)
			r.Post("/bootstrap", h.Admin.Bootstrap)
		})
	})

	return r
}
