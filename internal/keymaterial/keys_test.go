package keymaterial_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tudl/bugit/internal/crypterr"
	"github.com/tudl/bugit/internal/keymaterial"
)

// smallRSAKey1024 is a hardcoded 1024-bit RSA public key in PEM format (PKIX)
// used for testing key size validation. This key is intentionally weak and should
// only be used for testing purposes.
const smallRSAKey1024 = `-----BEGIN PUBLIC KEY-----
MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQDCNDoCM0OBt4HFxFxyU50FYsuZ
gK+lgel/Jlzb+ghkWpCL1Vk3Au7aet4KxNxQh5dFRxtMU7pe6fC5eZtdL3+0TCUu
XAUVgMhTRn3ZXlEmJXosuiFQ2y4+3nbWL51OxXRf3jsieSVqr4fbceakuOKXp4vX
wgiguV3/XqaysHs1uwIDAQAB
-----END PUBLIC KEY-----`

var (
	testKeyOnce     sync.Once
	internalTestKey *rsa.PrivateKey
)

// testKey generates and returns a singleton RSA private key for testing purposes,
// to avoid needing to generate a new key for each test.
func testKey() *rsa.PrivateKey {
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, keymaterial.MinRSAKeySize)
		if err != nil {
			panic("failed to generate test RSA key: " + err.Error())
		}

		internalTestKey = key
	})

	return internalTestKey
}

func TestParsePublicKeyBase64(t *testing.T) {
	key := testKey()

	pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	tests := []struct {
		name    string
		encoded string
	}{
		{"PKIX", base64.StdEncoding.EncodeToString(pkix)},
		{"PKIX unpadded", base64.RawStdEncoding.EncodeToString(pkix)},
		{"PKCS1", base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PublicKey(&key.PublicKey))},
		{"wrapped over several lines", wrap(base64.StdEncoding.EncodeToString(pkix), 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := keymaterial.ParsePublicKeyBase64(tt.encoded)
			require.NoError(t, err)
			require.True(t, key.PublicKey.Equal(parsed))
		})
	}
}

func TestParsePublicKeyBase64_Errors(t *testing.T) {
	ecdsaKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalPKIXPublicKey(&ecdsaKey.PublicKey)
	require.NoError(t, err)

	block, _ := pem.Decode([]byte(smallRSAKey1024))
	require.NotNil(t, block)

	tests := []struct {
		name     string
		encoded  string
		contains string
	}{
		{"empty", "", "value is empty"},
		{"not base64", "!!!not-base64!!!", "failed to decode base64"},
		{"not a key", base64.StdEncoding.EncodeToString([]byte("hello world")), "failed to parse public key"},
		{"non-RSA key", base64.StdEncoding.EncodeToString(ecDER), "not an RSA public key"},
		{"small key", base64.StdEncoding.EncodeToString(block.Bytes), "must be at least 2048 bits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := keymaterial.ParsePublicKeyBase64(tt.encoded)
			require.Error(t, err)
			require.Nil(t, key)
			require.ErrorIs(t, err, crypterr.ErrConfiguration)
			require.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestParsePrivateKeyBase64(t *testing.T) {
	key := testKey()

	pkcs8, err := keymaterial.MarshalPrivateKeyBase64(key)
	require.NoError(t, err)

	t.Run("PKCS8", func(t *testing.T) {
		parsed, err := keymaterial.ParsePrivateKeyBase64(pkcs8)
		require.NoError(t, err)
		require.True(t, key.Equal(parsed))
	})

	t.Run("PKCS1", func(t *testing.T) {
		parsed, err := keymaterial.ParsePrivateKeyBase64(base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PrivateKey(key)))
		require.NoError(t, err)
		require.True(t, key.Equal(parsed))
	})

	t.Run("garbage", func(t *testing.T) {
		parsed, err := keymaterial.ParsePrivateKeyBase64(base64.StdEncoding.EncodeToString([]byte("garbage")))
		require.ErrorIs(t, err, crypterr.ErrConfiguration)
		require.Nil(t, parsed)
	})
}

func TestLoadPublicKeyFromPEM(t *testing.T) {
	key := testKey()

	pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	t.Run("PUBLIC KEY", func(t *testing.T) {
		parsed, err := keymaterial.LoadPublicKeyFromPEM(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix}))
		require.NoError(t, err)
		require.True(t, key.PublicKey.Equal(parsed))
	})

	t.Run("RSA PUBLIC KEY", func(t *testing.T) {
		parsed, err := keymaterial.LoadPublicKeyFromPEM(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)}))
		require.NoError(t, err)
		require.True(t, key.PublicKey.Equal(parsed))
	})

	t.Run("invalid PEM", func(t *testing.T) {
		_, err := keymaterial.LoadPublicKeyFromPEM([]byte("this is not a valid PEM"))
		require.ErrorContains(t, err, "failed to decode PEM block")
	})

	t.Run("wrong PEM type", func(t *testing.T) {
		_, err := keymaterial.LoadPublicKeyFromPEM(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
		require.ErrorContains(t, err, "unsupported PEM block type")
	})
}

func TestMarshalPublicKeyBase64_RoundTrip(t *testing.T) {
	key := testKey()

	encoded, err := keymaterial.MarshalPublicKeyBase64(&key.PublicKey)
	require.NoError(t, err)

	parsed, err := keymaterial.ParsePublicKeyBase64(encoded)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))
}

func TestFingerprint(t *testing.T) {
	key := testKey()

	fp1, err := keymaterial.Fingerprint(&key.PublicKey)
	require.NoError(t, err)
	fp2, err := keymaterial.Fingerprint(&key.PublicKey)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "fingerprint should be stable")
	// SHA-256 is 32 bytes, which is 43 characters of unpadded base64url
	assert.Len(t, fp1, 43)

	other, err := rsa.GenerateKey(rand.Reader, keymaterial.MinRSAKeySize)
	require.NoError(t, err)
	fp3, err := keymaterial.Fingerprint(&other.PublicKey)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3)

	_, err = keymaterial.Fingerprint(nil)
	require.ErrorIs(t, err, crypterr.ErrConfiguration)
}

func TestPublicKeyJWK(t *testing.T) {
	key := testKey()

	jwkKey, err := keymaterial.PublicKeyJWK(&key.PublicKey)
	require.NoError(t, err)

	raw, err := json.Marshal(jwkKey)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	fp, err := keymaterial.Fingerprint(&key.PublicKey)
	require.NoError(t, err)

	assert.Equal(t, "RSA", fields["kty"])
	assert.Equal(t, "RSA1_5", fields["alg"])
	assert.Equal(t, "enc", fields["use"])
	assert.Equal(t, fp, fields["kid"])
	assert.NotContains(t, fields, "d", "private exponent must never be exported")

	_, err = keymaterial.PublicKeyJWK(nil)
	require.ErrorIs(t, err, crypterr.ErrConfiguration)
}

func TestMarshalPublicKeyPEM(t *testing.T) {
	key := testKey()

	out, err := keymaterial.MarshalPublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "-----BEGIN PUBLIC KEY-----\n"))

	got, err := keymaterial.LoadPublicKeyFromPEM(out)
	require.NoError(t, err)
	require.True(t, got.Equal(&key.PublicKey))
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteString("\n")
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}
