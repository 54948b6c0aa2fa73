package keymaterial

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"sync"

	"github.com/tudl/bugit/internal/crypterr"
)

// SymmetricKeySize is the size of the AES-256 master key in bytes.
const SymmetricKeySize = 32

// KeyMaterial is the process-wide, write-once key material. The zero value is
// not usable; construct it with New.
type KeyMaterial struct {
	mu        sync.RWMutex
	symmetric []byte
	destroyed bool

	local  *rsa.PrivateKey
	remote *rsa.PublicKey
}

// New validates and takes ownership of the supplied key material. symmetric
// is copied, so the caller may wipe its own slice afterwards. remote may be nil
// when no handshake is configured; local may be nil only if remote is nil too.
func New(symmetric []byte, local *rsa.PrivateKey, remote *rsa.PublicKey) (*KeyMaterial, error) {
	const op = "keymaterial.New"

	if len(symmetric) != SymmetricKeySize {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "invalid symmetric key length: expected %d bytes, got %d bytes", SymmetricKeySize, len(symmetric))
	}

	if remote != nil && local == nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "a local private key is required when a remote public key is configured")
	}

	if local != nil {
		if _, err := checkSize(op, &local.PublicKey); err != nil {
			return nil, err
		}
	}

	if remote != nil {
		if _, err := checkSize(op, remote); err != nil {
			return nil, err
		}
	}

	key := make([]byte, SymmetricKeySize)
	copy(key, symmetric)

	return &KeyMaterial{
		symmetric: key,
		local:     local,
		remote:    remote,
	}, nil
}

// SymmetricKey returns a copy of the master key. It fails once Destroy has
// been called.
func (k *KeyMaterial) SymmetricKey() ([]byte, error) {
	if k == nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, "keymaterial.SymmetricKey", "key material has not been loaded")
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return nil, crypterr.Newf(crypterr.KindConfiguration, "keymaterial.SymmetricKey", "key material has been destroyed")
	}

	out := make([]byte, len(k.symmetric))
	copy(out, k.symmetric)
	return out, nil
}

// LocalPrivateKey returns this process's private key, or nil if none is
// configured.
func (k *KeyMaterial) LocalPrivateKey() *rsa.PrivateKey {
	return k.local
}

// LocalPublicKey returns this process's public key, or nil if none is
// configured.
func (k *KeyMaterial) LocalPublicKey() *rsa.PublicKey {
	if k.local == nil {
		return nil
	}
	return &k.local.PublicKey
}

// RemotePublicKey returns the partner's public key, or nil if none is
// configured.
func (k *KeyMaterial) RemotePublicKey() *rsa.PublicKey {
	return k.remote
}

// PublicKeyBase64 renders the local public key as base64 PKIX DER.
func (k *KeyMaterial) PublicKeyBase64() (string, error) {
	pub := k.LocalPublicKey()
	if pub == nil {
		return "", crypterr.Newf(crypterr.KindConfiguration, "keymaterial.PublicKeyBase64", "no local keypair configured")
	}
	return MarshalPublicKeyBase64(pub)
}

// Destroy zeroes the master key. Later calls to SymmetricKey fail. Ciphers
// already built from the key keep their own expanded copy.
func (k *KeyMaterial) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	wipe(k.symmetric)
	k.destroyed = true
}

// LoadSymmetricKey fetches the named secret from source and decodes it into a
// 32-byte master key. Any other length is a configuration error.
func LoadSymmetricKey(ctx context.Context, source SecretSource, name string) ([]byte, error) {
	const op = "keymaterial.LoadSymmetricKey"

	if source == nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "no secret source configured")
	}

	encoded, err := source.FetchSecret(ctx, name)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "failed to fetch secret %q: %w", name, err)
	}

	if encoded == "" {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "secret %q is empty", name)
	}

	key, err := decodeBase64(encoded)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "secret %q is not valid base64", name)
	}

	if len(key) != SymmetricKeySize {
		wipe(key)
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "invalid symmetric key length: expected %d bytes, got %d bytes", SymmetricKeySize, len(key))
	}

	return key, nil
}

func wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}
