package license

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "licman/internal/errors"
)

func TestSignVerify(t *testing.T) {
	priv := testKeyPair(t)
	payload := []byte(`{"version":3,"uuid":"u"}`)

	sig, err := Sign(priv, payload)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	assert.True(t, Verify(&priv.PublicKey, payload, sig))
	assert.False(t, Verify(&priv.PublicKey, []byte("other payload"), sig))
	assert.False(t, Verify(&priv.PublicKey, payload, []byte("bogus")))
	assert.False(t, Verify(nil, payload, sig))
	assert.False(t, Verify(&priv.PublicKey, payload, nil))

	other := testKeyPair(t)
	assert.False(t, Verify(&other.PublicKey, payload, sig))
}

func TestSign_NilKey(t *testing.T) {
	_, err := Sign(nil, []byte("payload"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoPrivateKey))
}

func TestPrivateKeyPEM_RoundTrip(t *testing.T) {
	priv := testKeyPair(t)

	pemBytes := EncodePrivateKeyPEM(priv)
	parsed, err := ParsePrivateKeyPEM(pemBytes)
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsed))
}

func TestPrivateKeyPEM_PKCS8(t *testing.T) {
	priv := testKeyPair(t)

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	parsed, err := ParsePrivateKeyPEM(pemBytes)
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsed))
}

func TestPublicKeyPEM_RoundTrip(t *testing.T) {
	priv := testKeyPair(t)

	pemBytes, err := EncodePublicKeyPEM(&priv.PublicKey)
	require.NoError(t, err)

	parsed, err := ParsePublicKeyPEM(pemBytes)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(parsed))
}

func TestPublicKeyPEM_PKCS1(t *testing.T) {
	priv := testKeyPair(t)

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey),
	})

	parsed, err := ParsePublicKeyPEM(pemBytes)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(parsed))
}

func TestParseKeys_Garbage(t *testing.T) {
	_, err := ParsePrivateKeyPEM([]byte("not pem at all"))
	assert.Error(t, err)

	_, err = ParsePublicKeyPEM([]byte("not pem at all"))
	assert.Error(t, err)
}
