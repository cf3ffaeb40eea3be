package store

import (
	"sync"
)

// MemoryKV is an in-memory KV store used in tests and ephemeral setups.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Get returns the value for key, or ErrKeyNotFound.
func (kv *MemoryKV) Get(key string) (string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	value, ok := kv.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set stores the value.
func (kv *MemoryKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.data[key] = value
	return nil
}

// Exists reports whether key is present.
func (kv *MemoryKV) Exists(key string) (bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	_, ok := kv.data[key]
	return ok, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (kv *MemoryKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	delete(kv.data, key)
	return nil
}
