package keymaterial

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/tudl/bugit/internal/crypterr"
)

// This file contains helpers for loading keys. Configuration carries keys as
// base64-encoded DER, which is what the remote partner exchanges; PEM is
// accepted for keys handed over as files.

const (
	// MinRSAKeySize is the minimum RSA key size in bits; we'd expect that keys will be larger but 2048 is a sane floor
	// to enforce to ensure that a weak key can't accidentally be used
	MinRSAKeySize = 2048
)

// ParsePublicKeyBase64 parses an RSA public key from base64-encoded DER. Both
// PKIX (SubjectPublicKeyInfo) and PKCS#1 encodings are accepted.
func ParsePublicKeyBase64(encoded string) (*rsa.PublicKey, error) {
	der, err := decodeBase64(encoded)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, "keymaterial.ParsePublicKey", "failed to decode base64: %w", err)
	}

	return parsePublicKeyDER(der)
}

// ParsePrivateKeyBase64 parses an RSA private key from base64-encoded DER.
// Both PKCS#8 and PKCS#1 encodings are accepted.
func ParsePrivateKeyBase64(encoded string) (*rsa.PrivateKey, error) {
	der, err := decodeBase64(encoded)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, "keymaterial.ParsePrivateKey", "failed to decode base64: %w", err)
	}

	return parsePrivateKeyDER(der)
}

// LoadPublicKeyFromPEM parses an RSA public key from PEM-encoded bytes.
// The PEM block should be of type "PUBLIC KEY" or "RSA PUBLIC KEY".
func LoadPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	const op = "keymaterial.LoadPublicKeyFromPEM"

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "failed to decode PEM block")
	}

	switch block.Type {
	case "PUBLIC KEY", "RSA PUBLIC KEY":
		return parsePublicKeyDER(block.Bytes)
	default:
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "unsupported PEM block type: %s (expected PUBLIC KEY or RSA PUBLIC KEY)", block.Type)
	}
}

// MarshalPublicKeyBase64 encodes key as base64 PKIX DER, the format the remote
// partner expects in the handshake payload.
func MarshalPublicKeyBase64(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", crypterr.Newf(crypterr.KindConfiguration, "keymaterial.MarshalPublicKey", "failed to marshal public key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(der), nil
}

// MarshalPrivateKeyBase64 encodes key as base64 PKCS#8 DER.
func MarshalPrivateKeyBase64(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", crypterr.Newf(crypterr.KindConfiguration, "keymaterial.MarshalPrivateKey", "failed to marshal private key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(der), nil
}

// Fingerprint returns the RFC 7638 JWK thumbprint (SHA-256, base64url) of key.
// It is safe to log.
func Fingerprint(key *rsa.PublicKey) (string, error) {
	if key == nil {
		return "", crypterr.Newf(crypterr.KindConfiguration, "keymaterial.Fingerprint", "RSA public key cannot be nil")
	}

	jwkKey, err := jwk.Import(key)
	if err != nil {
		return "", crypterr.Newf(crypterr.KindConfiguration, "keymaterial.Fingerprint", "failed to import key as JWK: %w", err)
	}

	thumbprint, err := jwkKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", crypterr.Newf(crypterr.KindConfiguration, "keymaterial.Fingerprint", "failed to compute thumbprint: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

// PublicKeyJWK returns key as a JWK for handing to the remote partner. The key
// is marked for encryption with RSA1_5, and its kid is its Fingerprint.
func PublicKeyJWK(key *rsa.PublicKey) (jwk.Key, error) {
	const op = "keymaterial.PublicKeyJWK"

	kid, err := Fingerprint(key)
	if err != nil {
		return nil, err
	}

	jwkKey, err := jwk.Import(key)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "failed to import key as JWK: %w", err)
	}

	for k, v := range map[string]any{
		jwk.KeyIDKey:     kid,
		jwk.AlgorithmKey: jwa.RSA1_5(),
		jwk.KeyUsageKey:  jwk.ForEncryption,
	} {
		if err := jwkKey.Set(k, v); err != nil {
			return nil, crypterr.Newf(crypterr.KindConfiguration, op, "failed to set %s: %w", k, err)
		}
	}

	return jwkKey, nil
}

// MarshalPublicKeyPEM encodes key as a PKIX "PUBLIC KEY" PEM block.
func MarshalPublicKeyPEM(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, "keymaterial.MarshalPublicKeyPEM", "failed to marshal public key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

func parsePublicKeyDER(der []byte) (*rsa.PublicKey, error) {
	const op = "keymaterial.ParsePublicKey"

	// Try parsing as PKIX public key first (most common format)
	if pubKey, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := pubKey.(*rsa.PublicKey)
		if !ok {
			return nil, crypterr.Newf(crypterr.KindConfiguration, op, "key is not an RSA public key, got %T", pubKey)
		}

		return checkSize(op, rsaKey)
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "failed to parse public key as PKIX or PKCS1: %w", err)
	}

	return checkSize(op, rsaKey)
}

func parsePrivateKeyDER(der []byte) (*rsa.PrivateKey, error) {
	const op = "keymaterial.ParsePrivateKey"

	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, crypterr.Newf(crypterr.KindConfiguration, op, "key is not an RSA private key, got %T", key)
		}

		if _, err := checkSize(op, &rsaKey.PublicKey); err != nil {
			return nil, err
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		// the parse error is not wrapped so that no key bytes leak into logs
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "failed to parse private key as PKCS8 or PKCS1")
	}

	if _, err := checkSize(op, &rsaKey.PublicKey); err != nil {
		return nil, err
	}
	return rsaKey, nil
}

func checkSize(op string, key *rsa.PublicKey) (*rsa.PublicKey, error) {
	if bits := key.N.BitLen(); bits < MinRSAKeySize {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "RSA key size must be at least %d bits, got %d bits", MinRSAKeySize, bits)
	}

	return key, nil
}

// decodeBase64 accepts standard base64 with or without padding, ignoring
// surrounding whitespace left behind by YAML block scalars.
func decodeBase64(encoded string) ([]byte, error) {
	encoded = strings.Join(strings.Fields(encoded), "")
	if encoded == "" {
		return nil, fmt.Errorf("value is empty")
	}

	if strings.HasSuffix(encoded, "=") {
		return base64.StdEncoding.DecodeString(encoded)
	}
	return base64.RawStdEncoding.DecodeString(encoded)
}
