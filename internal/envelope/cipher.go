package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/tudl/bugit/internal/crypterr"
	"github.com/tudl/bugit/internal/keymaterial"
)

const (
	// keySize is the size of the AES-256 key in bytes; aes.NewCipher generates cipher.Block based
	// on the size of key passed in
	keySize = keymaterial.SymmetricKeySize

	// IVSize is the size of the AES-GCM nonce in bytes. NB: Nonce sizes can be security critical.
	// Reusing a nonce with the same key breaks AES-256 GCM completely. A single long-lived master key
	// encrypts every field, so the IV is drawn fresh from crypto/rand for every call and never derived.
	IVSize = 12

	// TagSize is the size of the GCM authentication tag in bytes.
	TagSize = 16
)

// Cipher is the field-level encryption engine. Once constructed it holds no
// mutable state and is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from the master key held by keys.
func NewCipher(keys *keymaterial.KeyMaterial) (*Cipher, error) {
	key, err := keys.SymmetricKey()
	if err != nil {
		return nil, err
	}

	return NewCipherFromKey(key)
}

// NewCipherFromKey creates a Cipher from a raw 32-byte key. A key of any other
// size is an encryption failure, not something to retry.
func NewCipherFromKey(key []byte) (*Cipher, error) {
	const op = "envelope.NewCipher"

	if len(key) != keySize {
		return nil, crypterr.Newf(crypterr.KindEncryption, op, "AES-256 key must be %d bytes, got %d bytes", keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindEncryption, op, "failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindEncryption, op, "failed to create GCM cipher: %w", err)
	}

	return &Cipher{aead: gcm}, nil
}

// Encrypt seals the UTF-8 bytes of plaintext under a fresh random IV and
// returns the base64 Envelope. Any length, including zero, is accepted.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	const op = "envelope.Encrypt"

	if c == nil || c.aead == nil {
		return "", crypterr.Newf(crypterr.KindConfiguration, op, "cipher used before the master key was loaded")
	}

	iv := make([]byte, IVSize, IVSize+len(plaintext)+TagSize)
	if _, err := rand.Read(iv); err != nil {
		return "", crypterr.Newf(crypterr.KindEncryption, op, "failed to generate IV: %w", err)
	}

	// Seal appends to iv, giving IV || ciphertext || tag in one buffer
	sealed := c.aead.Seal(iv, iv, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an Envelope produced by Encrypt under the same master key.
// Malformed base64, input shorter than the IV, and authentication failure
// (tampering, wrong key, corrupted storage) are all decryption failures.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	const op = "envelope.Decrypt"

	if c == nil || c.aead == nil {
		return "", crypterr.Newf(crypterr.KindConfiguration, op, "cipher used before the master key was loaded")
	}

	data, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", crypterr.Newf(crypterr.KindDecryption, op, "envelope is not valid base64: %w", err)
	}

	if len(data) < IVSize {
		return "", crypterr.Newf(crypterr.KindDecryption, op, "envelope is %d bytes, shorter than the %d byte IV", len(data), IVSize)
	}

	iv, ciphertext := data[:IVSize], data[IVSize:]

	plaintext, err := c.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		// crypto/cipher deliberately returns an opaque error here
		return "", crypterr.New(crypterr.KindDecryption, op, fmt.Errorf("authentication failed: %w", err))
	}

	return string(plaintext), nil
}
