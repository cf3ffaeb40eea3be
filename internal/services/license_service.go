package services

import (
	"context"
	"log/slog"
	"time"

	apperrors "licman/internal/errors"
	"licman/internal/infrastructure"
	"licman/internal/license"
)

// License lifecycle states surfaced to API consumers.
const (
	StatusActive       = "active"
	StatusInvalid      = "invalid"
	StatusNotActivated = "not_activated"
)

// LicenseService provides business logic for license operations.
type LicenseService interface {
	// GetStatus reports the current license state with per-condition
	// failure reasons.
	GetStatus(ctx context.Context) (*LicenseStatusResponse, error)

	// Activate pulls and installs a license for the given key.
	Activate(ctx context.Context, key string) (*LicenseStatusResponse, error)

	// ActivateArtifact installs a license from its portable export
	// string, for air-gapped deployments with no license server.
	ActivateArtifact(ctx context.Context, artifact string) (*LicenseStatusResponse, error)

	// Pull revalidates against the license server using the stored key.
	Pull(ctx context.Context) (*LicenseStatusResponse, error)

	// Uninstall removes the installed license.
	Uninstall(ctx context.Context) error

	// RenewalStatus reports how close the license is to expiry.
	RenewalStatus(ctx context.Context) (*RenewalStatusResponse, error)
}

// LicenseStatusResponse is the standardized license status payload.
type LicenseStatusResponse struct {
	LicenseStatus string       `json:"license_status"`
	Message       string       `json:"message"`
	Reasons       []string     `json:"reasons,omitempty"`
	License       *LicenseInfo `json:"license,omitempty"`
	TraceID       string       `json:"trace_id"`
	Timestamp     time.Time    `json:"timestamp"`
}

// LicenseInfo is the subset of license fields exposed over the API.
// The signature and opaque data payload deliberately stay internal.
type LicenseInfo struct {
	UUID       string   `json:"uuid"`
	Name       string   `json:"name,omitempty"`
	Issuer     string   `json:"issuer,omitempty"`
	Whitelabel string   `json:"whitelabel,omitempty"`
	Domains    []string `json:"domains,omitempty"`
	IssuedAt   int64    `json:"issued_at,omitempty"`
	ExpiresAt  int64    `json:"expires_at,omitempty"`
	Version    int      `json:"version"`
}

// RenewalStatusResponse reports expiry posture for renewal prompts.
type RenewalStatusResponse struct {
	Installed bool      `json:"installed"`
	CanExpire bool      `json:"can_expire"`
	ExpiresAt int64     `json:"expires_at,omitempty"`
	DaysLeft  int       `json:"days_left,omitempty"`
	Urgency   string    `json:"urgency"`
	Message   string    `json:"message"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
}

type licenseService struct {
	manager *license.Manager
	logger  *slog.Logger
}

// NewLicenseService creates the license service over the engine facade.
func NewLicenseService(manager *license.Manager, logger *slog.Logger) LicenseService {
	return &licenseService{
		manager: manager,
		logger:  logger.With(slog.String("component", "license_service")),
	}
}

func (s *licenseService) GetStatus(ctx context.Context) (*LicenseStatusResponse, error) {
	valid, reasons, err := s.manager.Validate(ctx)
	if err != nil {
		return nil, err
	}

	resp := &LicenseStatusResponse{
		Reasons:   reasons,
		TraceID:   infrastructure.GetTraceID(ctx),
		Timestamp: time.Now().UTC(),
	}

	l, loadErr := s.manager.Current(ctx)
	switch {
	case loadErr != nil:
		resp.LicenseStatus = StatusNotActivated
		resp.Message = "No license is installed."
		resp.Reasons = nil
	case valid:
		resp.LicenseStatus = StatusActive
		resp.Message = "License is active."
		resp.License = licenseInfo(l)
	default:
		resp.LicenseStatus = StatusInvalid
		resp.Message = "License is installed but not valid for this instance."
		resp.License = licenseInfo(l)
	}

	return resp, nil
}

func (s *licenseService) Activate(ctx context.Context, key string) (*LicenseStatusResponse, error) {
	s.logger.InfoContext(ctx, "license activation requested",
		slog.String("license_key", license.MaskKey(key)))

	if _, err := s.manager.Pull(ctx, key); err != nil {
		return nil, err
	}
	return s.GetStatus(ctx)
}

func (s *licenseService) ActivateArtifact(ctx context.Context, artifact string) (*LicenseStatusResponse, error) {
	l, err := license.Import(artifact)
	if err != nil {
		return nil, err
	}

	installed, err := s.manager.Store().Install(ctx, l, s.checkContext(ctx))
	if err != nil {
		return nil, err
	}
	if !installed {
		return nil, apperrors.NewRejectedError("license is not valid for this instance", nil).
			WithContext("reasons", l.ValidationErrors(s.checkContext(ctx)))
	}
	return s.GetStatus(ctx)
}

func (s *licenseService) Pull(ctx context.Context) (*LicenseStatusResponse, error) {
	if _, err := s.manager.Pull(ctx, ""); err != nil {
		return nil, err
	}
	return s.GetStatus(ctx)
}

func (s *licenseService) Uninstall(ctx context.Context) error {
	return s.manager.Uninstall(ctx)
}

func (s *licenseService) RenewalStatus(ctx context.Context) (*RenewalStatusResponse, error) {
	status, err := s.manager.RenewalStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &RenewalStatusResponse{
		Installed: status.Installed,
		CanExpire: status.CanExpire,
		ExpiresAt: status.ExpiresAt,
		DaysLeft:  status.DaysLeft,
		Urgency:   string(status.Urgency),
		Message:   renewalMessage(status),
		TraceID:   infrastructure.GetTraceID(ctx),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *licenseService) checkContext(ctx context.Context) license.CheckContext {
	_ = ctx
	return license.CheckContext{
		Now:       time.Now(),
		Host:      s.manager.Host(),
		Instance:  s.manager.Instance(),
		PublicKey: s.manager.Keys().PublicKey(),
	}
}

func licenseInfo(l *license.License) *LicenseInfo {
	return &LicenseInfo{
		UUID:       l.UUID,
		Name:       l.Name,
		Issuer:     l.Issuer,
		Whitelabel: l.Whitelabel,
		Domains:    l.Domains,
		IssuedAt:   l.IssuedAt,
		ExpiresAt:  l.ExpiresAt,
		Version:    l.Version,
	}
}

func renewalMessage(status license.RenewalStatus) string {
	switch status.Urgency {
	case license.RenewalExpired:
		return "License has expired. Renew to restore access."
	case license.RenewalUrgent:
		return "License expires within a week. Renew now."
	case license.RenewalUpcoming:
		return "License expires within a month. Plan your renewal."
	default:
		if !status.Installed {
			return "No license installed."
		}
		if !status.CanExpire {
			return "License never expires."
		}
		return "License does not need renewal yet."
	}
}
