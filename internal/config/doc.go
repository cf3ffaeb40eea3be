// Package config loads the licman configuration from environment
// variables (LICMAN_ prefix) with an optional YAML file underneath.
// Environment values always win. Validation runs at load time so the
// rest of the application can treat the Config as trusted.
package config
