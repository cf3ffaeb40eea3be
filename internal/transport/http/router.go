package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"licman/internal/middleware"
	"licman/internal/services"
)

// RouterDeps carries everything the router assembly needs.
type RouterDeps struct {
	LicenseService services.LicenseService
	HealthService  services.HealthService
	Gate           *middleware.LicenseGate
	// MetricsHandler serves /metrics; nil disables the endpoint.
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// NewRouter assembles the HTTP surface. The license API, health, and
// metrics endpoints are always reachable; everything else sits behind
// the license gate.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	if deps.Gate != nil {
		r.Use(deps.Gate.Handler)
	}

	healthHandler := NewHealthHandler(deps.HealthService, deps.Logger)
	r.Get("/healthz", healthHandler.Check)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	licenseHandler := NewLicenseHandler(deps.LicenseService, deps.Logger)
	r.Route("/api", func(api chi.Router) {
		api.Mount("/license", licenseHandler.Routes())
	})

	return r
}
