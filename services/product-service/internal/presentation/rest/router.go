package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bibbank/bib/pkg/auth"
)

// RouterConfig carries the handlers and settings the HTTP surface is built from.
type RouterConfig struct {
	Health         *HealthHandler
	Accounts       *AccountHandler
	Metrics        http.Handler
	JWT            *auth.JWTService
	Logger         *slog.Logger
	AllowedOrigins []string
}

// NewRouter builds the HTTP surface: probes and metrics unauthenticated, the
// /v1 API behind bearer tokens.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", cfg.Health.Liveness)
	r.Get("/readyz", cfg.Health.Readiness)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Use(requireRoles(cfg.JWT, auth.RoleAdmin, auth.RoleOperator, auth.RoleAuditor))
			r.Get("/", cfg.Accounts.GetAccount)
			r.Get("/schedules", cfg.Accounts.ListSchedules)
			r.Get("/batches", cfg.Accounts.ListBatches)
		})
		r.Route("/calendars/{id}", func(r chi.Router) {
			r.With(requireRoles(cfg.JWT, auth.RoleAdmin, auth.RoleOperator, auth.RoleAuditor)).Get("/", cfg.Accounts.GetCalendar)
			r.With(requireRoles(cfg.JWT, auth.RoleAdmin)).Put("/", cfg.Accounts.PutCalendar)
		})
	})

	return r
}
