package license

import (
	"context"
	"errors"
	"log/slog"

	"licman/internal/cache"
	apperrors "licman/internal/errors"
	"licman/internal/store"
)

// Store persists the installed license artifact through the KV
// collaborator and keeps the cache namespace coherent around install
// and uninstall.
type Store struct {
	kv     store.KV
	cache  cache.Cache
	keys   *KeyStore
	logger *slog.Logger
}

// NewStore creates a license store.
func NewStore(kv store.KV, c cache.Cache, keys *KeyStore, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		cache:  c,
		keys:   keys,
		logger: logger.With(slog.String("component", "license_store")),
	}
}

// Install validates the license in the given context and, when valid,
// persists its export string. Returns false without persisting when the
// license is invalid; the reasons are logged, not returned as an error.
func (s *Store) Install(ctx context.Context, l *License, cc CheckContext) (bool, error) {
	if reasons := l.ValidationErrors(cc); len(reasons) > 0 {
		s.logger.WarnContext(ctx, "refusing to install invalid license",
			slog.String("uuid", l.UUID),
			slog.Any("reasons", reasons))
		return false, nil
	}

	artifact, err := Export(l)
	if err != nil {
		return false, err
	}

	// Drop stale cached state before the new license becomes visible.
	s.cache.Clear()

	if err := s.kv.Set(kvLicenseData, artifact); err != nil {
		return false, apperrors.NewStorageError("failed to persist license", err)
	}

	s.logger.InfoContext(ctx, "license installed",
		slog.String("uuid", l.UUID),
		slog.Int("version", l.Version))
	return true, nil
}

// Uninstall removes the persisted license and the issuer public key and
// clears the cache. The private key is deliberately retained so a
// self-hosted issuer can re-sign without regenerating its keypair.
func (s *Store) Uninstall(ctx context.Context) error {
	if err := s.kv.Delete(kvLicenseData); err != nil {
		return apperrors.NewStorageError("failed to delete license", err)
	}
	if err := s.keys.DeletePublicKey(); err != nil {
		return err
	}
	s.cache.Clear()

	s.logger.InfoContext(ctx, "license uninstalled")
	return nil
}

// Load reads and decodes the installed license. Absent or malformed
// stored data both surface as ErrNotInstalled; a corrupt artifact is
// logged but never crashes the caller.
func (s *Store) Load() (*License, error) {
	artifact, err := s.kv.Get(kvLicenseData)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, apperrors.NewAppError(apperrors.ErrTypeNotFound, "no license installed", apperrors.ErrNotInstalled)
		}
		return nil, apperrors.NewStorageError("failed to read license", err)
	}

	l, err := Import(artifact)
	if err != nil {
		s.logger.Warn("stored license artifact is malformed, treating as not installed",
			slog.String("error", err.Error()))
		return nil, apperrors.NewAppError(apperrors.ErrTypeNotFound, "no license installed", apperrors.ErrNotInstalled).
			WithContext("cause", "malformed artifact")
	}
	return l, nil
}

// IsInstalled reports whether a license artifact is present, without
// decoding it.
func (s *Store) IsInstalled() bool {
	ok, err := s.kv.Exists(kvLicenseData)
	return err == nil && ok
}

// StoredKey returns the persisted license key, or "" when none is set.
func (s *Store) StoredKey() string {
	key, err := s.kv.Get(kvLicenseKey)
	if err != nil {
		return ""
	}
	return key
}

// SetStoredKey persists the license key for later pulls.
func (s *Store) SetStoredKey(key string) error {
	if err := s.kv.Set(kvLicenseKey, key); err != nil {
		return apperrors.NewStorageError("failed to persist license key", err)
	}
	return nil
}

// DeleteStoredKey removes the persisted license key.
func (s *Store) DeleteStoredKey() error {
	if err := s.kv.Delete(kvLicenseKey); err != nil {
		return apperrors.NewStorageError("failed to delete license key", err)
	}
	return nil
}
