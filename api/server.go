/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for admin frontends

ROUTE GROUPS:
  /api/employees/*         Employee and affiliation management
  /api/contracts/*         Contracts, wage changes, variable earnings
  /api/novelties           Attendance events
  /api/runs/*              Calculation runs, lifecycle, reports
  /api/params/*            Year-keyed legal parameters
  /healthz                 Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/contracts", h.ListEmployeeContracts)
			r.Get("/{id}/novelties", h.ListEmployeeNovelties)
			r.Post("/{id}/family", h.CreateFamilyMember)
			r.Get("/{id}/family", h.ListFamilyMembers)
			r.Get("/{id}/affiliation-changes", h.ListAffiliationChanges)
		})

		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", h.CreateContract)
			r.Get("/{id}", h.GetContract)
			r.Post("/{id}/wage-changes", h.ChangeWage)
			r.Get("/{id}/wage-changes", h.ListWageChanges)
			r.Get("/{id}/variable-earnings", h.ListVariableEarnings)
		})

		// Novelty, variable-earning and overtime intake
		r.Post("/novelties", h.CreateNovelty)
		r.Post("/variable-earnings", h.RecordVariableEarning)
		r.Post("/overtime", h.RecordOvertime)

		// Run routes
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.CalculateRun)
			r.Get("/{id}", h.GetRun)
			r.Post("/{id}/validate", h.ValidateRun)
			r.Post("/{id}/confirm", h.ConfirmRun)
			r.Post("/{id}/reset", h.ResetRun)
			r.Post("/{id}/cancel", h.CancelRun)
			r.Post("/{id}/adjustments", h.CreateAdjustment)
			r.Get("/{id}/adjustments", h.ListAdjustments)
			r.Route("/{id}/reports", func(r chi.Router) {
				r.Get("/pila", h.PILAReport)
				r.Get("/payslips", h.PayslipsReport)
				r.Get("/bank", h.BankReport)
				r.Get("/summary", h.SummaryReport)
			})
		})

		// Legal parameter routes
		r.Route("/params", func(r chi.Router) {
			r.Post("/", h.LoadParams)
			r.Get("/{year}", h.GetParams)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
