// Package app wires the process together: configuration, logging,
// metrics, storage, the license engine, the revalidation scheduler, and
// the HTTP server. Everything downstream receives its dependencies from
// here; no package below app reads global state.
package app
