/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:        Request logging
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestID:     Unique ID per request for tracing
  4. CORS:          Cross-origin requests for the frontend
  5. RequireViewer: Bearer session + profile, on the gated group only

ROUTE GROUPS:
  /api/auth/*                 Sign up, sign in, sign out
  /api/session                View state of the bearer token
  /api/business-days          Preview (public)
  /api/compensation/quote     Preview (public)
  gated:
    /api/dashboard
    /api/compensation/defaults
    /api/vacation-requests/*
    /api/compensation-requests/*
  /api/scenarios/*            Demo scenarios (-dev only)

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go: RequireViewer
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.SignUp)
			r.Post("/signin", h.SignIn)
			r.Post("/signout", h.SignOut)
		})
		r.Get("/session", h.GetSession)

		r.Get("/business-days", h.PreviewBusinessDays)
		r.Get("/compensation/quote", h.QuoteCompensation)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireViewer)

			r.Get("/dashboard", h.GetDashboard)
			r.Get("/compensation/defaults", h.GetCompensationDefaults)

			r.Route("/vacation-requests", func(r chi.Router) {
				r.Post("/", h.SubmitVacationRequest)
				r.Post("/{id}/cancel", h.CancelVacationRequest)
			})
			r.Route("/compensation-requests", func(r chi.Router) {
				r.Post("/", h.SubmitCompensationRequest)
				r.Post("/{id}/cancel", h.CancelCompensationRequest)
			})
		})

		if h.DevMode {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
