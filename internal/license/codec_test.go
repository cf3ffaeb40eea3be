package license

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "licman/internal/errors"
)

func TestEncode_VersionGating(t *testing.T) {
	base := License{
		UUID:     "uuid-1",
		Domains:  []string{"example.com"},
		Instance: "inst-1",
		OCSP:     "https://license.example.com/ocsp/{{uuid}}",
	}

	tests := []struct {
		name        string
		version     int
		wantKeys    []string
		missingKeys []string
	}{
		{
			name:        "v1 excludes instance and ocsp",
			version:     1,
			wantKeys:    []string{"version", "uuid", "domains"},
			missingKeys: []string{"instance", "ocsp"},
		},
		{
			name:        "v2 includes instance but not ocsp",
			version:     VersionInstance,
			wantKeys:    []string{"instance"},
			missingKeys: []string{"ocsp"},
		},
		{
			name:     "v3 includes everything",
			version:  VersionOCSP,
			wantKeys: []string{"instance", "ocsp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := base
			l.Version = tt.version

			payload, err := Encode(&l)
			require.NoError(t, err)

			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal(payload, &decoded))

			for _, key := range tt.wantKeys {
				assert.Contains(t, decoded, key)
			}
			for _, key := range tt.missingKeys {
				assert.NotContains(t, decoded, key)
			}
		})
	}
}

func TestEncode_OptionalFieldsAreNull(t *testing.T) {
	l := &License{Version: CurrentVersion, UUID: "uuid-1"}

	payload, err := Encode(l)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Nil(t, decoded["whitelabel"])
	assert.Nil(t, decoded["name"])
	assert.Nil(t, decoded["expires_at"])
	assert.Equal(t, []interface{}{}, decoded["domains"], "nil domains encode as empty list")
}

func TestEncode_Deterministic(t *testing.T) {
	l := &License{
		Version:   CurrentVersion,
		UUID:      "uuid-1",
		Domains:   []string{"a.com", "b.com"},
		ExpiresAt: 1_800_000_000,
		Data: map[string]interface{}{
			"seats": json.Number("25"),
			"tier":  "enterprise",
		},
		Instance: "inst-1",
	}

	first, err := Encode(l)
	require.NoError(t, err)
	second, err := Encode(l)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Decode and re-encode must reproduce the signed bytes, including
	// numeric values inside the opaque data payload.
	decoded, err := DecodePayload(first)
	require.NoError(t, err)
	reencoded, err := Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, first, reencoded)
}

func TestExportImport_RoundTrip(t *testing.T) {
	priv := testKeyPair(t)
	l := newTestLicense(t, priv, func(l *License) {
		l.Whitelabel = "Acme"
		l.ExpiresAt = 1_900_000_000
		l.Data = map[string]interface{}{"tier": "pro"}
		l.OCSP = "https://license.example.com/ocsp/{{uuid}}"
	})

	artifact, err := Export(l)
	require.NoError(t, err)

	got, err := Import(artifact)
	require.NoError(t, err)

	assert.Equal(t, l.Version, got.Version)
	assert.Equal(t, l.UUID, got.UUID)
	assert.Equal(t, l.Whitelabel, got.Whitelabel)
	assert.Equal(t, l.Domains, got.Domains)
	assert.Equal(t, l.ExpiresAt, got.ExpiresAt)
	assert.Equal(t, l.Instance, got.Instance)
	assert.Equal(t, l.OCSP, got.OCSP)
	assert.Equal(t, l.Signature, got.Signature)
	assert.True(t, got.VerifySignature(&priv.PublicKey), "imported license must still verify")
}

func TestExport_RequiresSignature(t *testing.T) {
	l := &License{Version: CurrentVersion, UUID: "uuid-1"}

	_, err := Export(l)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoSignature))
}

func TestImport_Malformed(t *testing.T) {
	validPayload := base64.StdEncoding.EncodeToString([]byte(`{"version":3,"uuid":"u"}`))
	validSig := base64.StdEncoding.EncodeToString([]byte("sig"))

	tests := []struct {
		name     string
		artifact string
	}{
		{name: "empty string", artifact: ""},
		{name: "no separator", artifact: validPayload},
		{name: "too many parts", artifact: validPayload + "." + validSig + "." + validSig},
		{name: "payload not base64", artifact: "!!!." + validSig},
		{name: "signature not base64", artifact: validPayload + ".!!!"},
		{name: "payload not json", artifact: base64.StdEncoding.EncodeToString([]byte("not json")) + "." + validSig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(tt.artifact)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperrors.ErrTypeDecode, appErr.Type)
		})
	}
}

func TestDecodePayload_OldVersionsDefaultGatedFields(t *testing.T) {
	payload := []byte(`{"version":1,"uuid":"u","whitelabel":null,"domains":[],"name":null,"issuer":null,"issued_at":null,"expires_at":null,"data":null}`)

	l, err := DecodePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Version)
	assert.Empty(t, l.Instance)
	assert.Empty(t, l.OCSP)
	assert.False(t, l.CanExpire())
}
