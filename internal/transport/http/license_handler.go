package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apperrors "licman/internal/errors"
	"licman/internal/infrastructure"
	"licman/internal/services"
)

// LicenseHandler handles license-related HTTP requests.
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates a license handler.
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// ActivationRequest is the POST /activate payload. Exactly one of the
// two fields must be set.
type ActivationRequest struct {
	LicenseKey string `json:"license_key,omitempty"`
	Artifact   string `json:"artifact,omitempty"`
}

// Bind implements render.Binder.
func (a *ActivationRequest) Bind(r *http.Request) error {
	if a.LicenseKey == "" && a.Artifact == "" {
		return errors.New("either license_key or artifact is required")
	}
	if a.LicenseKey != "" && a.Artifact != "" {
		return errors.New("license_key and artifact are mutually exclusive")
	}
	return nil
}

// Routes returns the chi router for /api/license.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/status", h.GetStatus)
	r.Get("/renewal", h.GetRenewalStatus)
	r.Post("/activate", h.Activate)
	r.Post("/pull", h.Pull)
	r.Delete("/", h.Uninstall)

	return r
}

// GetStatus handles GET /api/license/status.
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.GetStatus(ctx)
	if err != nil {
		h.renderError(w, r, "get_status", err)
		return
	}
	render.JSON(w, r, resp)
}

// GetRenewalStatus handles GET /api/license/renewal.
func (h *LicenseHandler) GetRenewalStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.RenewalStatus(ctx)
	if err != nil {
		h.renderError(w, r, "get_renewal_status", err)
		return
	}
	render.JSON(w, r, resp)
}

// Activate handles POST /api/license/activate.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ActivationRequest
	if err := render.Bind(r, &req); err != nil {
		problem := apperrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/invalid-request",
			"Invalid Request",
			err.Error(),
			r.URL.Path,
		)
		render.Render(w, r, problem)
		return
	}

	var (
		resp *services.LicenseStatusResponse
		err  error
	)
	if req.Artifact != "" {
		resp, err = h.service.ActivateArtifact(ctx, req.Artifact)
	} else {
		resp, err = h.service.Activate(ctx, req.LicenseKey)
	}
	if err != nil {
		h.renderError(w, r, "activate", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// Pull handles POST /api/license/pull.
func (h *LicenseHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.Pull(ctx)
	if err != nil {
		h.renderError(w, r, "pull", err)
		return
	}
	render.JSON(w, r, resp)
}

// Uninstall handles DELETE /api/license.
func (h *LicenseHandler) Uninstall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Uninstall(ctx); err != nil {
		h.renderError(w, r, "uninstall", err)
		return
	}
	render.NoContent(w, r)
}

func (h *LicenseHandler) renderError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	ctx := r.Context()
	traceID := infrastructure.GetTraceID(ctx)

	h.logger.ErrorContext(ctx, "license operation failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()))

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		render.Render(w, r, apperrors.ProblemFromAppError(appErr, traceID))
		return
	}

	problem := apperrors.NewProblemDetails(
		http.StatusInternalServerError,
		"/errors/internal",
		"Internal Error",
		"An unexpected error occurred.",
		r.URL.Path,
	)
	render.Render(w, r, problem)
}
