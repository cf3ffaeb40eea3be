package license

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	apperrors "licman/internal/errors"
	"licman/internal/infrastructure"
)

// Scheduler drives the periodic revalidation loop: each tick pulls the
// license from the server and runs the soft-revocation probe. Jitter is
// applied per tick so a fleet of instances does not hammer the license
// server in lockstep.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	jitter   time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a revalidation loop with the given base interval.
// A tenth of the interval is used as jitter.
func NewScheduler(manager *Manager, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		manager:  manager,
		interval: interval,
		jitter:   interval / 10,
		logger:   logger.With(slog.String("component", "license_scheduler")),
	}
}

// Run blocks until ctx is cancelled, revalidating on each tick. The
// first revalidation happens after one full interval, not at startup;
// callers that want an immediate check run Pull themselves first.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "license scheduler started",
		slog.Duration("interval", s.interval))

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("license scheduler stopped")
			return
		case <-timer.C:
			s.revalidate(ctx)
			timer.Reset(s.nextDelay())
		}
	}
}

func (s *Scheduler) nextDelay() time.Duration {
	if s.jitter <= 0 {
		return s.interval
	}
	return s.interval + time.Duration(rand.Int63n(int64(s.jitter)))
}

func (s *Scheduler) revalidate(ctx context.Context) {
	// Each tick gets its own trace ID so its log lines correlate the
	// way request-scoped ones do.
	ctx = infrastructure.EnsureTraceID(ctx)

	l, err := s.manager.Pull(ctx, "")
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNoLicenseServer):
			// Standalone deployment, nothing to pull.
		case errors.Is(err, apperrors.ErrNotInstalled):
			s.logger.InfoContext(ctx, "no license installed, skipping revalidation")
		default:
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.Type == apperrors.ErrTypeNetwork {
				s.logger.WarnContext(ctx, "license server unreachable, will retry next tick",
					slog.String("error", err.Error()))
			} else {
				s.logger.ErrorContext(ctx, "license pull failed",
					slog.String("error", err.Error()))
			}
		}
		return
	}

	valid, reasons, err := s.manager.Validate(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "license validation failed",
			slog.String("error", err.Error()))
		return
	}
	if !valid {
		s.logger.WarnContext(ctx, "pulled license is not valid for this instance",
			slog.String("uuid", l.UUID),
			slog.Any("reasons", reasons))
		return
	}

	if !s.manager.CheckOCSP(ctx) {
		s.logger.WarnContext(ctx, "ocsp check reports license revoked",
			slog.String("uuid", l.UUID))
		return
	}

	s.logger.DebugContext(ctx, "license revalidated", slog.String("uuid", l.UUID))
}
