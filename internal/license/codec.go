package license

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	apperrors "licman/internal/errors"
)

// The payload structs pin the JSON key order. Re-encoding the same
// license must produce byte-identical output on every call, because
// signatures are verified against the re-encoded payload.

type payloadV1 struct {
	Version    int                    `json:"version"`
	UUID       string                 `json:"uuid"`
	Whitelabel *string                `json:"whitelabel"`
	Domains    []string               `json:"domains"`
	Name       *string                `json:"name"`
	Issuer     *string                `json:"issuer"`
	IssuedAt   *int64                 `json:"issued_at"`
	ExpiresAt  *int64                 `json:"expires_at"`
	Data       map[string]interface{} `json:"data"`
}

type payloadV2 struct {
	payloadV1
	Instance *string `json:"instance"`
}

type payloadV3 struct {
	payloadV2
	OCSP *string `json:"ocsp"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// Encode produces the canonical payload bytes for the license. Optional
// fields encode as null; fields gated behind a schema version are only
// present when the license version includes them.
func Encode(l *License) ([]byte, error) {
	domains := l.Domains
	if domains == nil {
		domains = []string{}
	}

	base := payloadV1{
		Version:    l.Version,
		UUID:       l.UUID,
		Whitelabel: optString(l.Whitelabel),
		Domains:    domains,
		Name:       optString(l.Name),
		Issuer:     optString(l.Issuer),
		IssuedAt:   optInt64(l.IssuedAt),
		ExpiresAt:  optInt64(l.ExpiresAt),
		Data:       l.Data,
	}

	var payload interface{}
	switch {
	case l.Version >= VersionOCSP:
		payload = payloadV3{
			payloadV2: payloadV2{payloadV1: base, Instance: optString(l.Instance)},
			OCSP:      optString(l.OCSP),
		}
	case l.Version >= VersionInstance:
		payload = payloadV2{payloadV1: base, Instance: optString(l.Instance)}
	default:
		payload = base
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewDecodeError("failed to encode license payload", err)
	}
	return data, nil
}

// Export produces the portable artifact string:
// base64(payload) + "." + base64(signature). The license must carry a
// signature.
func Export(l *License) (string, error) {
	if len(l.Signature) == 0 {
		return "", apperrors.NewCryptoError("cannot export an unsigned license", apperrors.ErrNoSignature)
	}
	payload, err := Encode(l)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload) +
		"." +
		base64.StdEncoding.EncodeToString(l.Signature), nil
}

// Import reconstructs a license from an export string. Malformed input
// (wrong part count, bad base64, bad JSON) yields a decode error.
func Import(artifact string) (*License, error) {
	parts := strings.Split(artifact, ".")
	if len(parts) != 2 {
		return nil, apperrors.NewDecodeError("export string must have exactly two dot-separated parts", nil).
			WithContext("parts", len(parts))
	}

	payload, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, apperrors.NewDecodeError("export payload is not valid base64", err)
	}
	signature, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, apperrors.NewDecodeError("export signature is not valid base64", err)
	}

	l, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	l.Signature = signature
	return l, nil
}

// DecodePayload reconstructs a license from canonical payload bytes.
// Version-gated fields absent from the payload default to their zero
// values.
func DecodePayload(payload []byte) (*License, error) {
	var p payloadV3

	// UseNumber keeps opaque data values textually stable so that
	// re-encoding reproduces the signed bytes.
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, apperrors.NewDecodeError("license payload is not valid JSON", err)
	}

	return &License{
		Version:    p.Version,
		UUID:       p.UUID,
		Whitelabel: derefString(p.Whitelabel),
		Domains:    p.Domains,
		Name:       derefString(p.Name),
		Issuer:     derefString(p.Issuer),
		IssuedAt:   derefInt64(p.IssuedAt),
		ExpiresAt:  derefInt64(p.ExpiresAt),
		Data:       p.Data,
		Instance:   derefString(p.Instance),
		OCSP:       derefString(p.OCSP),
	}, nil
}
