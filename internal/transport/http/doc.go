// Package http contains the chi-based HTTP transport: the license API
// handlers, health endpoint, and router assembly. Handlers translate
// between HTTP and the services layer and render failures as RFC 7807
// problem details.
package http
