// Package store provides the persisted key/value collaborator consumed
// by the license engine. The engine only sees the KV interface; the
// file-backed implementation mirrors how the host application persists
// small amounts of state next to its data directory.
package store

import (
	"errors"
)

// ErrKeyNotFound is returned by Get for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// KV is the narrow contract the license engine consumes for persisted
// configuration state.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Exists(key string) (bool, error)
	Delete(key string) error
}
