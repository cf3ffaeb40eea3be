// Package license implements the license management engine: issuance,
// signing, verification, and lifecycle of a signed license artifact.
//
// # Architecture Overview
//
// The engine consists of several components:
//
//	- License: the in-memory license value and its validity checks
//	- Codec: deterministic payload encoding and the portable export string
//	- Signer: RSA-SHA256 detached signatures over the encoded payload
//	- KeyStore: issuer keypair persistence via the KV collaborator
//	- Store: install/uninstall/load of the exported license artifact
//	- Client: the remote pull protocol with grace-period semantics
//	- OCSPChecker: soft-revocation probes on an independent cadence
//	- Scheduler: the periodic pull loop for daemon deployments
//	- Manager: the facade the host application talks to
//
// # Validity
//
// A license is valid when all four conditions hold: it is not expired,
// the current host matches the domain allow-list, the current instance
// matches the instance pin, and the detached signature verifies against
// the installed issuer public key. Each failing condition contributes a
// human-readable entry to the validation errors; none of them is modeled
// as a Go error, since the host consults validity on every gated request
// and an invalid license is a routine outcome, not a fault.
//
// # Failure Model of the Pull Protocol
//
// The pull protocol distinguishes three failure classes. Authoritative
// rejections (HTTP 422, 403, 410) uninstall the local license at once.
// Transient server trouble (any other non-200) is tolerated through a
// persisted grace counter until it exceeds its limit, at which point the
// license is uninstalled and the stored key deleted. Local network
// failures propagate to the caller without touching any persisted state.
package license
