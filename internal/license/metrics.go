package license

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments published by the engine.
// A nil *Metrics is valid and records nothing, so tests and minimal
// deployments can skip meter setup.
type Metrics struct {
	PullsTotal       metric.Int64Counter
	PullDuration     metric.Float64Histogram
	ValidationsTotal metric.Int64Counter
	OCSPChecksTotal  metric.Int64Counter
	GraceEscalations metric.Int64Counter
}

// NewMetrics registers the engine instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	pulls, err := meter.Int64Counter("licman_pulls_total",
		metric.WithDescription("License server pulls by outcome"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("licman_pull_duration_seconds",
		metric.WithDescription("License pull duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	validations, err := meter.Int64Counter("licman_validations_total",
		metric.WithDescription("License validity checks by result"))
	if err != nil {
		return nil, err
	}

	ocsp, err := meter.Int64Counter("licman_ocsp_checks_total",
		metric.WithDescription("OCSP soft-revocation checks by outcome"))
	if err != nil {
		return nil, err
	}

	escalations, err := meter.Int64Counter("licman_grace_escalations_total",
		metric.WithDescription("Licenses uninstalled after the grace period was exceeded"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		PullsTotal:       pulls,
		PullDuration:     duration,
		ValidationsTotal: validations,
		OCSPChecksTotal:  ocsp,
		GraceEscalations: escalations,
	}, nil
}

func (m *Metrics) recordPull(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.PullsTotal.Add(ctx, 1, attrs)
	m.PullDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) recordValidation(ctx context.Context, valid bool) {
	if m == nil {
		return
	}
	m.ValidationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", valid)))
}

func (m *Metrics) recordOCSP(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.OCSPChecksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) recordGraceEscalation(ctx context.Context) {
	if m == nil {
		return
	}
	m.GraceEscalations.Add(ctx, 1)
}
