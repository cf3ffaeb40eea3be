package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/render"

	apperrors "licman/internal/errors"
	"licman/internal/infrastructure"
)

// Validator is the slice of the license engine the gate needs.
type Validator interface {
	Validate(ctx context.Context) (bool, []string, error)
}

// LicenseGate rejects requests to protected routes while no valid
// license is installed. Validation results are cached briefly so the
// gate does not re-verify the signature on every request.
type LicenseGate struct {
	validator       Validator
	logger          *slog.Logger
	excludePaths    map[string]struct{}
	excludePrefixes []string

	// mu serializes revalidation so a burst of requests after cache
	// expiry triggers one check, not one per request.
	mu    sync.Mutex
	cache gateCache
}

type gateCache struct {
	valid     bool
	reasons   []string
	checkedAt time.Time
	ttl       time.Duration
}

// defaultGateTTL bounds how stale a cached validation result may be.
const defaultGateTTL = 5 * time.Minute

// NewLicenseGate creates the gate. The license API itself, health, and
// metrics endpoints stay reachable so an unlicensed instance can still
// be activated and observed.
func NewLicenseGate(validator Validator, logger *slog.Logger) *LicenseGate {
	return &LicenseGate{
		validator: validator,
		logger:    logger.With(slog.String("component", "license_gate")),
		cache:     gateCache{ttl: defaultGateTTL},
		excludePaths: map[string]struct{}{
			"/healthz": {},
			"/metrics": {},
		},
		excludePrefixes: []string{
			"/api/license",
		},
	}
}

// SetTTL overrides the validation cache TTL.
func (g *LicenseGate) SetTTL(ttl time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.ttl = ttl
}

// Handler returns the middleware handler function.
func (g *LicenseGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.isExcluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		valid, reasons := g.check(ctx)
		if valid {
			next.ServeHTTP(w, r)
			return
		}

		traceID := infrastructure.GetTraceID(ctx)
		g.logger.WarnContext(ctx, "request blocked by license gate",
			slog.String("path", r.URL.Path),
			slog.Any("reasons", reasons))

		var problem *apperrors.ProblemDetails
		if len(reasons) == 1 && strings.Contains(reasons[0], "no license installed") {
			problem = apperrors.NewLicenseNotInstalledProblem(traceID)
		} else {
			problem = apperrors.NewLicenseInvalidProblem(reasons, traceID)
		}
		render.Render(w, r, problem)
	})
}

func (g *LicenseGate) isExcluded(path string) bool {
	if _, ok := g.excludePaths[path]; ok {
		return true
	}
	for _, prefix := range g.excludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (g *LicenseGate) check(ctx context.Context) (bool, []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.cache.checkedAt.IsZero() && time.Since(g.cache.checkedAt) < g.cache.ttl {
		return g.cache.valid, g.cache.reasons
	}

	valid, reasons, err := g.validator.Validate(ctx)
	if err != nil {
		// Storage trouble fails closed but is not cached, so the next
		// request retries instead of locking everyone out for the TTL.
		g.logger.ErrorContext(ctx, "license validation failed",
			slog.String("error", err.Error()))
		return false, []string{"license validation unavailable"}
	}

	g.cache.valid = valid
	g.cache.reasons = reasons
	g.cache.checkedAt = time.Now()
	return valid, reasons
}

// Invalidate drops the cached validation result, forcing the next
// request through a fresh check. Called after activation changes.
func (g *LicenseGate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.checkedAt = time.Time{}
}
