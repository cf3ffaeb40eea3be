package license

import (
	"context"
	"time"

	apperrors "licman/internal/errors"
)

// RenewalUrgency buckets how soon the installed license needs renewal.
type RenewalUrgency string

const (
	RenewalNone     RenewalUrgency = "none"
	RenewalUpcoming RenewalUrgency = "upcoming"
	RenewalUrgent   RenewalUrgency = "urgent"
	RenewalExpired  RenewalUrgency = "expired"
)

const (
	renewalUpcomingWindow = 30 * 24 * time.Hour
	renewalUrgentWindow   = 7 * 24 * time.Hour
)

// RenewalStatus describes the expiry posture of the installed license.
type RenewalStatus struct {
	Installed bool           `json:"installed"`
	CanExpire bool           `json:"can_expire"`
	ExpiresAt int64          `json:"expires_at,omitempty"`
	DaysLeft  int            `json:"days_left,omitempty"`
	Urgency   RenewalUrgency `json:"urgency"`
}

// RenewalStatus reports how close the installed license is to expiry.
// Perpetual licenses always report RenewalNone.
func (m *Manager) RenewalStatus(ctx context.Context) (RenewalStatus, error) {
	l, err := m.store.Load()
	if err != nil {
		if apperrors.IsNotInstalled(err) {
			return RenewalStatus{Urgency: RenewalNone}, nil
		}
		return RenewalStatus{}, err
	}

	status := RenewalStatus{
		Installed: true,
		CanExpire: l.CanExpire(),
		Urgency:   RenewalNone,
	}
	if !l.CanExpire() {
		return status, nil
	}

	now := m.now()
	status.ExpiresAt = l.ExpiresAt
	remaining := time.Unix(l.ExpiresAt, 0).Sub(now)

	switch {
	case remaining <= 0:
		status.Urgency = RenewalExpired
	case remaining <= renewalUrgentWindow:
		status.Urgency = RenewalUrgent
	case remaining <= renewalUpcomingWindow:
		status.Urgency = RenewalUpcoming
	}
	if remaining > 0 {
		status.DaysLeft = int(remaining / (24 * time.Hour))
	}
	return status, nil
}
