package license

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"licman/internal/cache"
	"licman/internal/config"
	"licman/internal/store"
)

// OCSPChecker performs soft-revocation probes against the per-license
// OCSP URL. It runs on its own cadence, with its own cached response
// code and grace counter, independent of the main pull protocol.
//
// The checker is advisory: it answers "is this license still considered
// good" with a plain bool. Connection errors count as a revoked answer;
// unlike the pull protocol there is no retry bookkeeping for them.
type OCSPChecker struct {
	httpClient *http.Client
	kv         store.KV
	cache      cache.Cache

	instance   string
	cacheTTL   time.Duration
	graceLimit int

	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewOCSPChecker creates a soft-revocation checker.
func NewOCSPChecker(cfg config.LicenseConfig, kv store.KV, c cache.Cache, logger *slog.Logger, metrics *Metrics) *OCSPChecker {
	return &OCSPChecker{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		kv:         kv,
		cache:      c,
		instance:   cfg.Instance,
		cacheTTL:   cfg.ResponseCacheTTL,
		graceLimit: cfg.OCSPGraceLimit,
		logger:     logger.With(slog.String("component", "ocsp_checker")),
		metrics:    metrics,
		now:        time.Now,
	}
}

// Check reports whether the license is still considered valid. True
// covers both a positive server answer and the bounded grace window
// around server-side trouble; false means treat as revoked.
func (o *OCSPChecker) Check(ctx context.Context, l *License) bool {
	if l.OCSP == "" {
		return true
	}

	code, ok := o.cachedCode()
	if !ok {
		// A real probe starts a fresh grace window; only cached
		// repeats of a failing answer accumulate toward the limit.
		o.clearGrace()

		url := substituteTemplate(l.OCSP, map[string]string{
			"uuid":     l.UUID,
			"instance": o.instance,
		})

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			o.logger.ErrorContext(ctx, "invalid ocsp url", slog.String("error", err.Error()))
			o.metrics.recordOCSP(ctx, "bad_url")
			return false
		}

		resp, err := o.httpClient.Do(req)
		if err != nil {
			o.logger.WarnContext(ctx, "ocsp check failed to connect",
				slog.String("uuid", l.UUID),
				slog.String("error", err.Error()))
			o.metrics.recordOCSP(ctx, "network_error")
			return false
		}
		resp.Body.Close()

		code = resp.StatusCode
		o.cache.Write(cacheOCSPResponse, strconv.Itoa(code), o.now().Add(o.cacheTTL))
	}

	return o.interpret(ctx, l, code)
}

func (o *OCSPChecker) interpret(ctx context.Context, l *License, code int) bool {
	switch {
	case code >= 200 && code < 300:
		o.clearGrace()
		o.metrics.recordOCSP(ctx, "ok")
		return true

	case code >= 500:
		grace := o.readGrace() + 1
		o.writeGrace(grace)
		if grace >= o.graceLimit {
			o.logger.ErrorContext(ctx, "ocsp grace limit reached, treating license as revoked",
				slog.String("uuid", l.UUID),
				slog.Int("http_code", code),
				slog.Int("grace_count", grace))
			o.metrics.recordOCSP(ctx, "grace_exceeded")
			return false
		}
		o.logger.WarnContext(ctx, "ocsp server error, passing within grace window",
			slog.String("uuid", l.UUID),
			slog.Int("http_code", code),
			slog.Int("grace_count", grace),
			slog.Int("grace_limit", o.graceLimit))
		o.metrics.recordOCSP(ctx, "soft_pass")
		return true

	default:
		o.logger.WarnContext(ctx, "ocsp server reports license revoked",
			slog.String("uuid", l.UUID),
			slog.Int("http_code", code))
		o.metrics.recordOCSP(ctx, "revoked")
		return false
	}
}

func (o *OCSPChecker) cachedCode() (int, bool) {
	raw, ok := o.cache.Get(cacheOCSPResponse)
	if !ok {
		return 0, false
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return code, true
}

func (o *OCSPChecker) readGrace() int {
	raw, err := o.kv.Get(kvOCSPGrace)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func (o *OCSPChecker) writeGrace(n int) {
	if err := o.kv.Set(kvOCSPGrace, strconv.Itoa(n)); err != nil {
		o.logger.Error("failed to persist ocsp grace counter", slog.String("error", err.Error()))
	}
}

func (o *OCSPChecker) clearGrace() {
	if err := o.kv.Delete(kvOCSPGrace); err != nil {
		o.logger.Error("failed to clear ocsp grace counter", slog.String("error", err.Error()))
	}
}
