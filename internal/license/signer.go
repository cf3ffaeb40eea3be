package license

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	apperrors "licman/internal/errors"
)

// DefaultKeyBits is the issuer keypair size used when none is given.
const DefaultKeyBits = 2048

// Sign produces a detached RSA PKCS#1 v1.5 signature over payload using
// SHA-256. The legacy SHA-1 path is deliberately not supported; licenses
// signed with it fail verification.
func Sign(priv *rsa.PrivateKey, payload []byte) ([]byte, error) {
	if priv == nil {
		return nil, apperrors.NewCryptoError("cannot sign without a private key", apperrors.ErrNoPrivateKey)
	}
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, apperrors.NewCryptoError("signing failed", err)
	}
	return sig, nil
}

// Verify checks a detached signature over payload. It returns false,
// never an error, when the public key is absent or the signature does
// not match.
func Verify(pub *rsa.PublicKey, payload, signature []byte) bool {
	if pub == nil || len(signature) == 0 {
		return false
	}
	digest := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature) == nil
}

// GenerateKeyPair creates a new RSA issuer keypair.
func GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits == 0 {
		bits = DefaultKeyBits
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, apperrors.NewCryptoError("keypair generation failed", err)
	}
	return priv, nil
}

// EncodePrivateKeyPEM renders the private key as PKCS#1 PEM.
func EncodePrivateKeyPEM(priv *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
}

// EncodePublicKeyPEM renders the public key as PKIX PEM.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, apperrors.NewCryptoError("failed to marshal public key", err)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	}), nil
}

// ParsePrivateKeyPEM parses a PKCS#1 or PKCS#8 PEM private key.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, apperrors.NewCryptoError("private key is not valid PEM", nil)
	}

	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return priv, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, apperrors.NewCryptoError("failed to parse private key", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, apperrors.NewCryptoError(
			fmt.Sprintf("unsupported private key type %T", parsed),
			errors.New("only RSA keys are supported"))
	}
	return priv, nil
}

// ParsePublicKeyPEM parses a PKIX or PKCS#1 PEM public key.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, apperrors.NewCryptoError("public key is not valid PEM", nil)
	}

	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, apperrors.NewCryptoError(
				fmt.Sprintf("unsupported public key type %T", parsed),
				errors.New("only RSA keys are supported"))
		}
		return pub, nil
	}

	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, apperrors.NewCryptoError("failed to parse public key", err)
	}
	return pub, nil
}
