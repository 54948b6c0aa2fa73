package hybrid

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"

	"github.com/tudl/bugit/internal/crypterr"
	"github.com/tudl/bugit/internal/keymaterial"
)

const (
	// EphemeralKeySize is the size of the one-time AES-128 key in bytes
	EphemeralKeySize = 16

	// IVSize is the AES-CBC IV size, equal to the AES block size
	IVSize = aes.BlockSize
)

// SealedMessage is the wire form of a sealed payload. Each field is independently base64 (standard alphabet, padded).
type SealedMessage struct {
	EncryptedAesKey string `json:"encryptedAesKey"`
	IV              string `json:"iv"`
	EncryptedData   string `json:"encryptedData"`
}

// Seal encrypts payload so that only the holder of the private half of recipient can read it.
// A fresh ephemeral key and IV are generated on every call. Empty payloads are valid.
func Seal(payload string, recipient *rsa.PublicKey) (*SealedMessage, error) {
	const op = "hybrid.Seal"

	if err := checkRecipient(op, recipient); err != nil {
		return nil, err
	}

	ephemeral := make([]byte, EphemeralKeySize)
	defer clear(ephemeral)

	if _, err := rand.Read(ephemeral); err != nil {
		return nil, crypterr.Newf(crypterr.KindEncryption, op, "failed to generate ephemeral key: %w", err)
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, crypterr.Newf(crypterr.KindEncryption, op, "failed to generate IV: %w", err)
	}

	block, err := aes.NewCipher(ephemeral)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindEncryption, op, "failed to create AES cipher: %w", err)
	}

	ciphertext := pad([]byte(payload), aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, ciphertext)

	wrappedKey, err := rsa.EncryptPKCS1v15(rand.Reader, recipient, ephemeral)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindEncryption, op, "failed to encrypt ephemeral key: %w", err)
	}

	return &SealedMessage{
		EncryptedAesKey: base64.StdEncoding.EncodeToString(wrappedKey),
		IV:              base64.StdEncoding.EncodeToString(iv),
		EncryptedData:   base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Unseal is the inverse of Seal. Malformed encodings, bad lengths and bad padding are handshake decode failures;
// failure to recover the ephemeral key with own is a handshake key failure.
func Unseal(sealed *SealedMessage, own *rsa.PrivateKey) (string, error) {
	const op = "hybrid.Unseal"

	if sealed == nil {
		return "", crypterr.Newf(crypterr.KindHandshakeDecode, op, "sealed message is missing")
	}

	if own == nil {
		return "", crypterr.Newf(crypterr.KindConfiguration, op, "private key cannot be nil")
	}

	wrappedKey, err := decodeField(op, "encryptedAesKey", sealed.EncryptedAesKey)
	if err != nil {
		return "", err
	}

	iv, err := decodeField(op, "iv", sealed.IV)
	if err != nil {
		return "", err
	}

	ciphertext, err := decodeField(op, "encryptedData", sealed.EncryptedData)
	if err != nil {
		return "", err
	}

	if len(iv) != IVSize {
		return "", crypterr.Newf(crypterr.KindHandshakeDecode, op, "iv must be %d bytes, got %d bytes", IVSize, len(iv))
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", crypterr.Newf(crypterr.KindHandshakeDecode, op, "encryptedData length %d is not a positive multiple of the %d byte block size", len(ciphertext), aes.BlockSize)
	}

	ephemeral, err := rsa.DecryptPKCS1v15(nil, own, wrappedKey)
	if err != nil {
		return "", crypterr.Newf(crypterr.KindHandshakeKey, op, "failed to decrypt ephemeral key: %w", err)
	}
	defer clear(ephemeral)

	if len(ephemeral) != EphemeralKeySize {
		return "", crypterr.Newf(crypterr.KindHandshakeKey, op, "ephemeral key must be %d bytes, got %d bytes", EphemeralKeySize, len(ephemeral))
	}

	block, err := aes.NewCipher(ephemeral)
	if err != nil {
		return "", crypterr.Newf(crypterr.KindHandshakeKey, op, "failed to create AES cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", crypterr.New(crypterr.KindHandshakeDecode, op, err)
	}

	return string(plaintext), nil
}

// EncryptSecret encrypts a short secret directly with RSA PKCS#1 v1.5 and returns it base64 encoded. The key exchange
// partner uses this form for its reply, so no ephemeral key is involved.
func EncryptSecret(secret []byte, recipient *rsa.PublicKey) (string, error) {
	const op = "hybrid.EncryptSecret"

	if err := checkRecipient(op, recipient); err != nil {
		return "", err
	}

	out, err := rsa.EncryptPKCS1v15(rand.Reader, recipient, secret)
	if err != nil {
		return "", crypterr.Newf(crypterr.KindEncryption, op, "failed to encrypt secret: %w", err)
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptSecret reverses EncryptSecret.
func DecryptSecret(encoded string, own *rsa.PrivateKey) ([]byte, error) {
	const op = "hybrid.DecryptSecret"

	if own == nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "private key cannot be nil")
	}

	raw, err := decodeField(op, "secret", encoded)
	if err != nil {
		return nil, err
	}

	secret, err := rsa.DecryptPKCS1v15(nil, own, raw)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindHandshakeKey, op, "failed to decrypt secret: %w", err)
	}

	return secret, nil
}

func checkRecipient(op string, recipient *rsa.PublicKey) error {
	if recipient == nil {
		return crypterr.Newf(crypterr.KindConfiguration, op, "RSA public key cannot be nil")
	}

	if bits := recipient.N.BitLen(); bits < keymaterial.MinRSAKeySize {
		return crypterr.Newf(crypterr.KindConfiguration, op, "RSA key size must be at least %d bits, got %d bits", keymaterial.MinRSAKeySize, bits)
	}

	return nil
}

func decodeField(op, name, value string) ([]byte, error) {
	if value == "" {
		return nil, crypterr.Newf(crypterr.KindHandshakeDecode, op, "%s is empty", name)
	}

	out, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindHandshakeDecode, op, "%s is not valid base64: %w", name, err)
	}

	return out, nil
}

