package license

import (
	"crypto/rsa"
	"errors"

	apperrors "licman/internal/errors"
	"licman/internal/store"
)

// KeyStore persists the issuer keypair through the KV collaborator.
// The public key ships to licensee instances; the private key is only
// present on the issuer side, or locally for self-signed dev licenses.
type KeyStore struct {
	kv store.KV
}

// NewKeyStore creates a key store over the given KV collaborator.
func NewKeyStore(kv store.KV) *KeyStore {
	return &KeyStore{kv: kv}
}

// Generate creates and persists a fresh issuer keypair. An existing
// keypair is overwritten; installed licenses signed with the old key
// stop verifying.
func (ks *KeyStore) Generate(bits int) (*rsa.PrivateKey, error) {
	priv, err := GenerateKeyPair(bits)
	if err != nil {
		return nil, err
	}

	pubPEM, err := EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	if err := ks.kv.Set(kvIssuerPrivateKey, string(EncodePrivateKeyPEM(priv))); err != nil {
		return nil, apperrors.NewStorageError("failed to persist private key", err)
	}
	if err := ks.kv.Set(kvIssuerPublicKey, string(pubPEM)); err != nil {
		return nil, apperrors.NewStorageError("failed to persist public key", err)
	}

	return priv, nil
}

// PrivateKey loads the issuer private key.
func (ks *KeyStore) PrivateKey() (*rsa.PrivateKey, error) {
	pemStr, err := ks.kv.Get(kvIssuerPrivateKey)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, apperrors.NewCryptoError("no private key installed", apperrors.ErrNoPrivateKey)
		}
		return nil, apperrors.NewStorageError("failed to read private key", err)
	}
	return ParsePrivateKeyPEM([]byte(pemStr))
}

// PublicKey loads the issuer public key, or nil when none is installed.
// A nil key makes every signature verification fail, which is the
// desired degradation rather than an error on each gated request.
func (ks *KeyStore) PublicKey() *rsa.PublicKey {
	pemStr, err := ks.kv.Get(kvIssuerPublicKey)
	if err != nil {
		return nil
	}
	pub, err := ParsePublicKeyPEM([]byte(pemStr))
	if err != nil {
		return nil
	}
	return pub
}

// PublicKeyPEM returns the installed public key PEM.
func (ks *KeyStore) PublicKeyPEM() (string, error) {
	pemStr, err := ks.kv.Get(kvIssuerPublicKey)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return "", apperrors.NewCryptoError("no public key installed", apperrors.ErrNoPublicKey)
		}
		return "", apperrors.NewStorageError("failed to read public key", err)
	}
	return pemStr, nil
}

// HasPrivateKey reports whether an issuer private key is installed.
func (ks *KeyStore) HasPrivateKey() bool {
	ok, err := ks.kv.Exists(kvIssuerPrivateKey)
	return err == nil && ok
}

// HasPublicKey reports whether an issuer public key is installed.
func (ks *KeyStore) HasPublicKey() bool {
	ok, err := ks.kv.Exists(kvIssuerPublicKey)
	return err == nil && ok
}

// InstallPublicKey validates and persists an issuer public key received
// from the license server.
func (ks *KeyStore) InstallPublicKey(pemBytes []byte) error {
	if _, err := ParsePublicKeyPEM(pemBytes); err != nil {
		return err
	}
	if err := ks.kv.Set(kvIssuerPublicKey, string(pemBytes)); err != nil {
		return apperrors.NewStorageError("failed to persist public key", err)
	}
	return nil
}

// DeletePublicKey removes the issuer public key.
func (ks *KeyStore) DeletePublicKey() error {
	if err := ks.kv.Delete(kvIssuerPublicKey); err != nil {
		return apperrors.NewStorageError("failed to delete public key", err)
	}
	return nil
}

// DeletePrivateKey removes the issuer private key.
func (ks *KeyStore) DeletePrivateKey() error {
	if err := ks.kv.Delete(kvIssuerPrivateKey); err != nil {
		return apperrors.NewStorageError("failed to delete private key", err)
	}
	return nil
}
