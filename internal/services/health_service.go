package services

import (
	"context"
	"time"

	"licman/internal/license"
)

// HealthService reports process liveness plus a coarse license summary
// so orchestrators can distinguish "down" from "up but unlicensed".
type HealthService interface {
	Check(ctx context.Context) *HealthResponse
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version,omitempty"`
	LicenseStatus string    `json:"license_status"`
	Uptime        string    `json:"uptime"`
	Timestamp     time.Time `json:"timestamp"`
}

type healthService struct {
	manager *license.Manager
	version string
	started time.Time
}

// NewHealthService creates a health service.
func NewHealthService(manager *license.Manager, version string) HealthService {
	return &healthService{
		manager: manager,
		version: version,
		started: time.Now(),
	}
}

func (s *healthService) Check(ctx context.Context) *HealthResponse {
	licenseStatus := StatusNotActivated
	if valid, _, err := s.manager.Validate(ctx); err == nil {
		if valid {
			licenseStatus = StatusActive
		} else if s.manager.Store().IsInstalled() {
			licenseStatus = StatusInvalid
		}
	}

	return &HealthResponse{
		Status:        "ok",
		Version:       s.version,
		LicenseStatus: licenseStatus,
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		Timestamp:     time.Now().UTC(),
	}
}
