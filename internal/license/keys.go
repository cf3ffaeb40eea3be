package license

// KV store keys for persisted license state.
const (
	kvLicenseData      = "license_data"
	kvLicenseKey       = "license_key"
	kvIssuerPublicKey  = "license_issuer_public_key"
	kvIssuerPrivateKey = "license_issuer_private_key"
	kvPullGrace        = "license_key_response_grace"
	kvOCSPGrace        = "license_ocsp_response_grace"
)

// Cache keys for best-effort pull/OCSP response state.
const (
	cachePullResponse = "license_key_response"
	cacheOCSPResponse = "license_ocsp_response"
)
