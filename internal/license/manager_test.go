package license

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licman/internal/cache"
	"licman/internal/config"
	apperrors "licman/internal/errors"
	"licman/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	cfg := config.LicenseConfig{
		Instance:         "inst-1",
		Host:             "app.example.com",
		HTTPTimeout:      5 * time.Second,
		ResponseCacheTTL: time.Hour,
		GraceLimit:       10,
		OCSPGraceLimit:   3,
		RateRPS:          1000,
		RateBurst:        1000,
	}
	return NewManager(cfg, store.NewMemoryKV(), cache.New(time.Minute), testLogger(), nil)
}

func TestManager_IssueAndValidate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.GenerateIssuer(ctx, testKeyBits))

	l, err := m.Issue(ctx, IssueRequest{
		Domains:  []string{"*.example.com"},
		Name:     "Acme Corp",
		Issuer:   "Licensing Dept",
		Instance: "inst-1",
	})
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, l.Version)
	assert.NotEmpty(t, l.UUID)
	assert.NotEmpty(t, l.Signature)
	assert.False(t, l.CanExpire())

	valid, reasons, err := m.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, reasons)

	got, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, l.UUID, got.UUID)
}

func TestManager_IssueWithoutKeys(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Issue(context.Background(), IssueRequest{Name: "Acme"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoPrivateKey))
}

func TestManager_IssueMismatchedInstance(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.GenerateIssuer(ctx, testKeyBits))

	_, err := m.Issue(ctx, IssueRequest{Name: "Acme", Instance: "someone-else"})
	require.Error(t, err)
	assert.False(t, m.Store().IsInstalled())
}

func TestManager_ValidateNotInstalled(t *testing.T) {
	m := newTestManager(t)

	valid, reasons, err := m.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, valid)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "no license installed")
}

func TestManager_Uninstall(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.GenerateIssuer(ctx, testKeyBits))

	_, err := m.Issue(ctx, IssueRequest{Name: "Acme", Instance: "inst-1"})
	require.NoError(t, err)

	require.NoError(t, m.Uninstall(ctx))

	valid, _, err := m.Validate(ctx)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.True(t, m.Keys().HasPrivateKey(), "uninstall keeps the issuer private key")
}

func TestManager_DeleteKeys(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.GenerateIssuer(ctx, testKeyBits))

	_, err := m.Issue(ctx, IssueRequest{Name: "Acme", Instance: "inst-1"})
	require.NoError(t, err)

	// Plain uninstall keeps the private key around.
	require.NoError(t, m.Uninstall(ctx))
	require.True(t, m.Keys().HasPrivateKey())

	require.NoError(t, m.DeleteKeys(ctx))
	assert.False(t, m.Keys().HasPrivateKey())
	assert.False(t, m.Keys().HasPublicKey())

	_, err = m.Issue(ctx, IssueRequest{Name: "Acme", Instance: "inst-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoPrivateKey),
		"issuance needs a fresh keypair after deletion")
}

func TestManager_CheckOCSPWithoutLicense(t *testing.T) {
	m := newTestManager(t)
	assert.True(t, m.CheckOCSP(context.Background()))
}

func TestManager_RenewalStatus(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		expiresAt int64
		urgency   RenewalUrgency
		daysLeft  int
	}{
		{name: "perpetual", expiresAt: 0, urgency: RenewalNone},
		{name: "far out", expiresAt: now.Add(90 * 24 * time.Hour).Unix(), urgency: RenewalNone, daysLeft: 90},
		{name: "within a month", expiresAt: now.Add(20 * 24 * time.Hour).Unix(), urgency: RenewalUpcoming, daysLeft: 20},
		{name: "within a week", expiresAt: now.Add(3 * 24 * time.Hour).Unix(), urgency: RenewalUrgent, daysLeft: 3},
		{name: "already expired", expiresAt: now.Add(-24 * time.Hour).Unix(), urgency: RenewalExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			ctx := context.Background()
			require.NoError(t, m.GenerateIssuer(ctx, testKeyBits))

			priv, err := m.Keys().PrivateKey()
			require.NoError(t, err)

			// Installed directly so expired licenses can be staged too.
			l := &License{
				Version:   CurrentVersion,
				UUID:      "uuid-renewal",
				Name:      "Acme",
				ExpiresAt: tt.expiresAt,
			}
			require.NoError(t, l.Sign(priv))
			artifact, err := Export(l)
			require.NoError(t, err)
			require.NoError(t, m.Store().kv.Set(kvLicenseData, artifact))

			m.now = func() time.Time { return now }

			status, err := m.RenewalStatus(ctx)
			require.NoError(t, err)
			assert.True(t, status.Installed)
			assert.Equal(t, tt.urgency, status.Urgency)
			assert.Equal(t, tt.daysLeft, status.DaysLeft)
			assert.Equal(t, tt.expiresAt != 0, status.CanExpire)
		})
	}
}

func TestManager_RenewalStatusNotInstalled(t *testing.T) {
	m := newTestManager(t)

	status, err := m.RenewalStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Installed)
	assert.Equal(t, RenewalNone, status.Urgency)
}
