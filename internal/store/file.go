package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileKV is a file-backed KV store. The whole map is kept in memory and
// flushed as one JSON document on every write. Writes go through a temp
// file and rename so a crash never leaves a half-written store behind.
type FileKV struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

// NewFileKV opens or creates the store at path.
func NewFileKV(path string) (*FileKV, error) {
	kv := &FileKV{
		path: path,
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kv, nil
		}
		return nil, fmt.Errorf("failed to read kv store: %w", err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &kv.data); err != nil {
			return nil, fmt.Errorf("kv store is corrupt: %w", err)
		}
	}

	return kv, nil
}

// Get returns the value for key, or ErrKeyNotFound.
func (kv *FileKV) Get(key string) (string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	value, ok := kv.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set stores the value and flushes to disk.
func (kv *FileKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.data[key] = value
	return kv.flushLocked()
}

// Exists reports whether key is present.
func (kv *FileKV) Exists(key string) (bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	_, ok := kv.data[key]
	return ok, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (kv *FileKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if _, ok := kv.data[key]; !ok {
		return nil
	}
	delete(kv.data, key)
	return kv.flushLocked()
}

func (kv *FileKV) flushLocked() error {
	data, err := json.MarshalIndent(kv.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal kv store: %w", err)
	}

	dir := filepath.Dir(kv.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create kv store dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".licman-kv-*")
	if err != nil {
		return fmt.Errorf("failed to create temp kv file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write kv store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close kv store: %w", err)
	}

	// License keys and issuer keys live here; keep it owner-only.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod kv store: %w", err)
	}

	if err := os.Rename(tmpName, kv.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace kv store: %w", err)
	}

	return nil
}
