package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	kv, err := NewFileKV(path)
	require.NoError(t, err)

	require.NoError(t, kv.Set("license_key", "abc-123"))
	require.NoError(t, kv.Set("license_data", "payload.sig"))

	value, err := kv.Get("license_key")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", value)

	exists, err := kv.Exists("license_data")
	require.NoError(t, err)
	assert.True(t, exists)

	// Reopen from disk and verify persistence
	reopened, err := NewFileKV(path)
	require.NoError(t, err)
	value, err = reopened.Get("license_data")
	require.NoError(t, err)
	assert.Equal(t, "payload.sig", value)
}

func TestFileKV_GetMissing(t *testing.T) {
	kv, err := NewFileKV(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)

	_, err = kv.Get("absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFileKV_Delete(t *testing.T) {
	kv, err := NewFileKV(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)

	require.NoError(t, kv.Set("license_key", "abc"))
	require.NoError(t, kv.Delete("license_key"))

	exists, err := kv.Exists("license_key")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an absent key is not an error
	assert.NoError(t, kv.Delete("license_key"))
}

func TestFileKV_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	kv, err := NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set("license_issuer_private_key", "pem"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileKV_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileKV(path)
	assert.Error(t, err)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()

	_, err := kv.Get("x")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Set("x", "1"))
	value, err := kv.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	require.NoError(t, kv.Delete("x"))
	exists, err := kv.Exists("x")
	require.NoError(t, err)
	assert.False(t, exists)
}
