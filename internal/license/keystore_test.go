package license

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "licman/internal/errors"
	"licman/internal/store"
)

func TestKeyStore_GenerateAndLoad(t *testing.T) {
	ks := NewKeyStore(store.NewMemoryKV())

	assert.False(t, ks.HasPrivateKey())
	assert.False(t, ks.HasPublicKey())
	assert.Nil(t, ks.PublicKey())

	priv, err := ks.Generate(testKeyBits)
	require.NoError(t, err)

	assert.True(t, ks.HasPrivateKey())
	assert.True(t, ks.HasPublicKey())

	loaded, err := ks.PrivateKey()
	require.NoError(t, err)
	assert.True(t, priv.Equal(loaded))

	pub := ks.PublicKey()
	require.NotNil(t, pub)
	assert.True(t, priv.PublicKey.Equal(pub))
}

func TestKeyStore_MissingKeys(t *testing.T) {
	ks := NewKeyStore(store.NewMemoryKV())

	_, err := ks.PrivateKey()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoPrivateKey))

	_, err = ks.PublicKeyPEM()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoPublicKey))
}

func TestKeyStore_InstallPublicKey(t *testing.T) {
	priv := testKeyPair(t)
	pemBytes, err := EncodePublicKeyPEM(&priv.PublicKey)
	require.NoError(t, err)

	ks := NewKeyStore(store.NewMemoryKV())
	require.NoError(t, ks.InstallPublicKey(pemBytes))

	pub := ks.PublicKey()
	require.NotNil(t, pub)
	assert.True(t, priv.PublicKey.Equal(pub))

	assert.Error(t, ks.InstallPublicKey([]byte("garbage")), "invalid PEM must be rejected before persisting")
}

func TestKeyStore_Delete(t *testing.T) {
	ks := NewKeyStore(store.NewMemoryKV())
	_, err := ks.Generate(testKeyBits)
	require.NoError(t, err)

	require.NoError(t, ks.DeletePublicKey())
	assert.False(t, ks.HasPublicKey())
	assert.True(t, ks.HasPrivateKey(), "deleting the public key must leave the private key alone")

	require.NoError(t, ks.DeletePrivateKey())
	assert.False(t, ks.HasPrivateKey())
}
