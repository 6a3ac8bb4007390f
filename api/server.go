/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, logged with store failures
  2. Logger:     One zap entry per request (requestlog.go)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /health/*                  Liveness and readiness, never authenticated
  /api/years/*               Year catalog and raw partition
  /api/scenarios/*           Demo data
  /api/users/{userID}/*      Per-user records and reports (JWTAuth + RequireUser)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Bearer token middleware
  - requestlog.go: Request log formatter
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options configures NewRouter.
type Options struct {
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
	// JWTSecret signs bearer tokens. Empty disables authentication.
	JWTSecret string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&zapRequestLogger{logger: h.Logger.Named("http")}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Health routes, no auth
	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	auth := JWTAuth(opts.JWTSecret)

	r.Route("/api", func(r chi.Router) {
		// Year catalog
		r.Route("/years", func(r chi.Router) {
			r.Get("/", h.ListYears)
			r.With(auth).Post("/", h.CreateYear)
			r.Get("/current", h.CurrentYear)
			r.Get("/{year}/quarters", h.GetQuarters)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		// Per-user routes
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(auth)
			r.Use(RequireUser)

			r.Route("/years/{year}", func(r chi.Router) {
				r.Get("/quarters", h.GetReport)
				r.Get("/obligation", h.GetObligation)
				r.Put("/obligation", h.SetObligation)
				r.Get("/sessions", h.ListSessions)
				r.Post("/sessions", h.CreateSession)
				r.Get("/payments", h.ListPayments)
				r.Post("/payments", h.RecordPayment)
			})

			r.Put("/sessions/{sessionID}", h.UpdateSession)
			r.Delete("/sessions/{sessionID}", h.DeleteSession)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", r.URL.Path)
	})

	return r
}
