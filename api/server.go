/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for internal frontends

SECURITY NOTE:
  No authentication middleware. The engine is deployed behind the
  HR gateway which owns authentication; roles arrive as request fields.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.CreateMember)
			r.Get("/{id}", h.GetMember)
			r.Get("/{id}/applications", h.ListMemberApplications)
			r.Get("/{id}/balances", h.ListMemberBalances)
			r.Get("/{id}/eligibility", h.MemberEligibility)
			r.Post("/{id}/encashment", h.CheckEncashment)
		})

		r.Route("/applications", func(r chi.Router) {
			r.Post("/", h.SubmitApplication)
			r.Post("/validate", h.ValidateApplication)
			r.Get("/{id}", h.GetApplication)
			r.Get("/{id}/approvals", h.ListApprovals)
			r.Post("/{id}/actions", h.ChainAction)
			r.Post("/{id}/return", h.RecordReturn)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/jobs/accrual", h.RunAccrual)
			r.Post("/jobs/lapse", h.RunLapse)
			r.Post("/jobs/overstay", h.RunOverstay)
			r.Get("/audit", h.QueryAudit)
		})
	})

	return r
}
