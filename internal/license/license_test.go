package license

import (
	"crypto/rsa"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeyBits keeps test key generation fast while staying large enough
// for PKCS#1 v1.5 with SHA-256.
const testKeyBits = 1024

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := GenerateKeyPair(testKeyBits)
	require.NoError(t, err)
	return priv
}

// newTestLicense builds a signed v3 license valid for host
// "app.example.com" and instance "inst-1".
func newTestLicense(t *testing.T, priv *rsa.PrivateKey, mutate func(*License)) *License {
	t.Helper()

	l := &License{
		Version:   CurrentVersion,
		UUID:      "11111111-2222-3333-4444-555555555555",
		Domains:   []string{"*.example.com"},
		Name:      "Acme Corp",
		Issuer:    "Licensing Dept",
		IssuedAt:  time.Now().Add(-time.Hour).Unix(),
		ExpiresAt: 0,
		Instance:  "inst-1",
	}
	if mutate != nil {
		mutate(l)
	}
	require.NoError(t, l.Sign(priv))
	return l
}

func testCheckContext(priv *rsa.PrivateKey) CheckContext {
	return CheckContext{
		Now:       time.Now(),
		Host:      "app.example.com",
		Instance:  "inst-1",
		PublicKey: &priv.PublicKey,
	}
}

func TestLicense_Expiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		expiresAt int64
		expired   bool
	}{
		{name: "zero expiry never expires", expiresAt: 0, expired: false},
		{name: "future expiry", expiresAt: now.Unix() + 1, expired: false},
		{name: "exactly at expiry is expired", expiresAt: now.Unix(), expired: true},
		{name: "past expiry", expiresAt: now.Unix() - 1, expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &License{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expired, l.IsExpiredAt(now))
			assert.Equal(t, tt.expiresAt != 0, l.CanExpire())
		})
	}
}

func TestLicense_IsDomainAllowed(t *testing.T) {
	tests := []struct {
		name    string
		domains []string
		host    string
		allowed bool
	}{
		{name: "empty list allows anything", domains: nil, host: "whatever.io", allowed: true},
		{name: "exact match", domains: []string{"example.com"}, host: "example.com", allowed: true},
		{name: "wildcard matches subdomain", domains: []string{"*.example.com"}, host: "app.example.com", allowed: true},
		{name: "wildcard matches nested subdomain", domains: []string{"*.example.com"}, host: "a.b.example.com", allowed: true},
		{name: "wildcard does not match apex", domains: []string{"*.example.com"}, host: "example.com", allowed: false},
		{name: "case sensitive", domains: []string{"example.com"}, host: "Example.com", allowed: false},
		{name: "second pattern matches", domains: []string{"other.io", "app.example.com"}, host: "app.example.com", allowed: true},
		{name: "no pattern matches", domains: []string{"other.io"}, host: "app.example.com", allowed: false},
		{name: "question mark matches one character", domains: []string{"app?.example.com"}, host: "app1.example.com", allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &License{Domains: tt.domains}
			assert.Equal(t, tt.allowed, l.IsDomainAllowed(tt.host))
		})
	}
}

func TestLicense_IsInstanceAllowed(t *testing.T) {
	unpinned := &License{}
	assert.True(t, unpinned.IsInstanceAllowed("anything"))
	assert.True(t, unpinned.IsInstanceAllowed(""))

	pinned := &License{Instance: "inst-1"}
	assert.True(t, pinned.IsInstanceAllowed("inst-1"))
	assert.False(t, pinned.IsInstanceAllowed("inst-2"))
	assert.False(t, pinned.IsInstanceAllowed(""))
}

func TestLicense_SignAndVerify(t *testing.T) {
	priv := testKeyPair(t)
	l := newTestLicense(t, priv, nil)

	assert.True(t, l.VerifySignature(&priv.PublicKey))

	other := testKeyPair(t)
	assert.False(t, l.VerifySignature(&other.PublicKey), "wrong key must not verify")
	assert.False(t, l.VerifySignature(nil), "nil key must not verify")

	unsigned := &License{Version: CurrentVersion, UUID: "u"}
	assert.False(t, unsigned.VerifySignature(&priv.PublicKey), "missing signature must not verify")
}

func TestLicense_TamperDetection(t *testing.T) {
	priv := testKeyPair(t)
	l := newTestLicense(t, priv, nil)
	require.True(t, l.VerifySignature(&priv.PublicKey))

	l.Name = "Mallory Inc"
	assert.False(t, l.VerifySignature(&priv.PublicKey))
}

func TestLicense_ValidationErrors(t *testing.T) {
	priv := testKeyPair(t)
	cc := testCheckContext(priv)

	t.Run("valid license has no errors", func(t *testing.T) {
		l := newTestLicense(t, priv, nil)
		assert.Empty(t, l.ValidationErrors(cc))
		assert.True(t, l.IsValidFor(cc))
	})

	t.Run("each failing condition reports separately", func(t *testing.T) {
		l := newTestLicense(t, priv, func(l *License) {
			l.ExpiresAt = cc.Now.Add(-time.Hour).Unix()
			l.Domains = []string{"other.io"}
			l.Instance = "inst-other"
		})
		l.Signature = []byte("garbage")

		errs := l.ValidationErrors(cc)
		require.Len(t, errs, 4)
		assert.Contains(t, errs[0], "expired")
		assert.Contains(t, errs[1], "app.example.com")
		assert.Contains(t, errs[2], `pinned to instance "inst-other"`)
		assert.Contains(t, errs[2], `"inst-1"`)
		assert.Contains(t, errs[3], "signature")
		assert.False(t, l.IsValidFor(cc))
	})

	t.Run("missing public key fails signature check only", func(t *testing.T) {
		l := newTestLicense(t, priv, nil)
		noKey := cc
		noKey.PublicKey = nil

		errs := l.ValidationErrors(noKey)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "signature")
	})
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", MaskKey(""))
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "****", MaskKey("12345678"))
	assert.Equal(t, "ABCD****WXYZ", MaskKey("ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
}
