package license

import (
	"crypto/rsa"
	"fmt"
	"path"
	"time"
)

// Payload schema versions. A field introduced in version N is encoded
// iff the license version is at least N.
const (
	// VersionInstance added the instance pin.
	VersionInstance = 2
	// VersionOCSP added the soft-revocation URL.
	VersionOCSP = 3
	// CurrentVersion is used for newly issued licenses.
	CurrentVersion = 3
)

// License is a license grant. It is immutable once constructed except
// for attaching a signature via Sign or SetSignature.
type License struct {
	// Version governs which fields participate in the encoded payload.
	Version int
	// UUID uniquely identifies this grant.
	UUID       string
	Whitelabel string
	// Domains holds glob patterns (e.g. *.example.com). Empty means any
	// domain is allowed.
	Domains []string
	Name    string
	Issuer  string
	// IssuedAt is a Unix timestamp; zero means unknown.
	IssuedAt int64
	// ExpiresAt is a Unix timestamp; zero means the license never expires.
	ExpiresAt int64
	// Data is an opaque extension payload carried through signing.
	Data map[string]interface{}
	// Instance pins the license to one installation; empty allows any.
	Instance string
	// OCSP is a URL template for soft-revocation checks, with {{uuid}}
	// and {{instance}} substitution. Empty disables OCSP.
	OCSP string

	// Signature is the detached signature over the encoded payload.
	// Nil until Sign is called or the license is loaded from storage.
	Signature []byte
}

// CheckContext carries the caller-side facts a validity decision needs.
type CheckContext struct {
	Now       time.Time
	Host      string
	Instance  string
	PublicKey *rsa.PublicKey
}

// CanExpire reports whether the license has an expiry at all.
func (l *License) CanExpire() bool {
	return l.ExpiresAt != 0
}

// IsExpiredAt reports whether the license is expired at the given time.
// Licenses without an expiry never expire.
func (l *License) IsExpiredAt(now time.Time) bool {
	if !l.CanExpire() {
		return false
	}
	return now.Unix() >= l.ExpiresAt
}

// IsDomainAllowed reports whether host matches the domain allow-list.
// An empty list allows any host. Patterns use glob semantics: * matches
// any run of characters, ? a single character, case-sensitive.
func (l *License) IsDomainAllowed(host string) bool {
	if len(l.Domains) == 0 {
		return true
	}
	for _, pattern := range l.Domains {
		ok, err := path.Match(pattern, host)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// IsInstanceAllowed reports whether the caller's instance identifier
// satisfies the instance pin. An unpinned license allows any instance.
func (l *License) IsInstanceAllowed(instance string) bool {
	if l.Instance == "" {
		return true
	}
	return l.Instance == instance
}

// VerifySignature re-encodes the payload and verifies the detached
// signature against the issuer public key. Returns false, never an
// error, when the key or signature is absent.
func (l *License) VerifySignature(pub *rsa.PublicKey) bool {
	if pub == nil || len(l.Signature) == 0 {
		return false
	}
	payload, err := Encode(l)
	if err != nil {
		return false
	}
	return Verify(pub, payload, l.Signature)
}

// Sign encodes the payload and attaches a signature produced with the
// issuer private key.
func (l *License) Sign(priv *rsa.PrivateKey) error {
	payload, err := Encode(l)
	if err != nil {
		return err
	}
	sig, err := Sign(priv, payload)
	if err != nil {
		return err
	}
	l.Signature = sig
	return nil
}

// ValidationErrors returns one human-readable entry per failing validity
// condition. An empty slice means the license is valid in this context.
func (l *License) ValidationErrors(cc CheckContext) []string {
	var errs []string

	if l.IsExpiredAt(cc.Now) {
		errs = append(errs, fmt.Sprintf("license expired at %s",
			time.Unix(l.ExpiresAt, 0).UTC().Format(time.RFC3339)))
	}
	if !l.IsDomainAllowed(cc.Host) {
		errs = append(errs, fmt.Sprintf("domain %q is not covered by the license domain list %v",
			cc.Host, l.Domains))
	}
	if !l.IsInstanceAllowed(cc.Instance) {
		errs = append(errs, fmt.Sprintf("license is pinned to instance %q but this instance is %q",
			l.Instance, cc.Instance))
	}
	if !l.VerifySignature(cc.PublicKey) {
		errs = append(errs, "license signature does not verify against the issuer public key")
	}

	return errs
}

// IsValidFor reports whether every validity condition holds.
func (l *License) IsValidFor(cc CheckContext) bool {
	return !l.IsExpiredAt(cc.Now) &&
		l.IsDomainAllowed(cc.Host) &&
		l.IsInstanceAllowed(cc.Instance) &&
		l.VerifySignature(cc.PublicKey)
}
