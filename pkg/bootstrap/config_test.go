package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tudl/bugit/internal/crypterr"
)

func TestParseConfig(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		got, err := ParseConfig([]byte(`
client-id: FINANCE_API
identity:
  public-key: cHVibGlj
  private-key: cHJpdmF0ZQ==
key-exchange:
  endpoint: https://influx.example.com/api/key-exchange
  remote-public-key: cmVtb3Rl
  timeout: 5s
master-key:
  source: file
  name: master-key
  directory: /var/run/secrets/bugit
`))
		require.NoError(t, err)
		assert.Equal(t, Config{
			ClientID: "FINANCE_API",
			Identity: Identity{
				PublicKey:  "cHVibGlj",
				PrivateKey: "cHJpdmF0ZQ==",
			},
			KeyExchange: KeyExchange{
				Endpoint:        "https://influx.example.com/api/key-exchange",
				RemotePublicKey: "cmVtb3Rl",
				Timeout:         5 * time.Second,
			},
			MasterKey: MasterKey{
				Source:    MasterKeySourceFile,
				Name:      "master-key",
				Directory: "/var/run/secrets/bugit",
			},
		}, got)
	})

	t.Run("defaults", func(t *testing.T) {
		got, err := ParseConfig([]byte(`
client-id: FINANCE_API
identity:
  public-key: cHVibGlj
  private-key: cHJpdmF0ZQ==
key-exchange:
  endpoint: http://localhost:8080/api/key-exchange
  remote-public-key: cmVtb3Rl
master-key:
  name: BUGIT_MASTER_KEY
`))
		require.NoError(t, err)
		assert.Equal(t, MasterKeySourceEnv, got.MasterKey.Source)
		assert.Equal(t, 30*time.Second, got.KeyExchange.Timeout)
	})

	t.Run("key exchange disabled", func(t *testing.T) {
		got, err := ParseConfig([]byte(`
identity:
  public-key: cHVibGlj
  private-key: cHJpdmF0ZQ==
master-key:
  name: BUGIT_MASTER_KEY
`))
		require.NoError(t, err)
		assert.False(t, got.KeyExchange.Enabled())
		assert.Zero(t, got.KeyExchange.Timeout)
	})

	t.Run("reports every problem at once", func(t *testing.T) {
		_, err := ParseConfig([]byte(`
key-exchange:
  endpoint: ftp://example.com
master-key:
  source: vault
`))
		require.ErrorIs(t, err, crypterr.ErrConfiguration)

		var merr *multierror.Error
		require.ErrorAs(t, err, &merr)

		var msgs []string
		for _, e := range merr.Errors {
			msgs = append(msgs, e.Error())
		}

		assert.ElementsMatch(t, []string{
			"identity.public-key is required",
			"identity.private-key is required",
			"client-id is required when key-exchange.endpoint is set",
			"key-exchange.remote-public-key is required when key-exchange.endpoint is set",
			`key-exchange.endpoint: endpoint "ftp://example.com" must use http or https`,
			`master-key.source must be "env" or "file", got "vault"`,
			"master-key.name is required",
		}, msgs)
	})

	t.Run("file source needs a directory", func(t *testing.T) {
		_, err := ParseConfig([]byte(`
identity:
  public-key: cHVibGlj
  private-key: cHJpdmF0ZQ==
master-key:
  source: file
  name: master-key
`))
		require.ErrorContains(t, err, `master-key.directory is required when master-key.source is "file"`)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("client-id: [unterminated"))
		require.ErrorIs(t, err, crypterr.ErrConfiguration)
		require.ErrorContains(t, err, "failed to parse config")
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bugit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
identity:
  public-key: cHVibGlj
  private-key: cHJpdmF0ZQ==
master-key:
  name: BUGIT_MASTER_KEY
`), 0o600))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "BUGIT_MASTER_KEY", got.MasterKey.Name)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, crypterr.ErrConfiguration)
	require.ErrorContains(t, err, "failed to read config file")
}

func TestConfig_Dump(t *testing.T) {
	cfg := Config{
		ClientID: "FINANCE_API",
		Identity: Identity{
			PublicKey:  "cHVibGlj",
			PrivateKey: "super-secret-private-key",
		},
		KeyExchange: KeyExchange{
			Endpoint:        "https://influx.example.com/api/key-exchange",
			RemotePublicKey: "cmVtb3Rl",
			Timeout:         30 * time.Second,
		},
		MasterKey: MasterKey{
			Source: MasterKeySourceEnv,
			Name:   "BUGIT_MASTER_KEY",
		},
	}

	dump, err := cfg.Dump()
	require.NoError(t, err)

	assert.NotContains(t, dump, "super-secret-private-key")
	assert.NotContains(t, dump, "cmVtb3Rl")
	assert.Contains(t, dump, "private-key: <redacted>")
	assert.Contains(t, dump, "remote-public-key: <redacted>")
	assert.Contains(t, dump, "public-key: cHVibGlj")
	assert.Contains(t, dump, "timeout: 30s")

	// the receiver is left untouched
	assert.Equal(t, "super-secret-private-key", cfg.Identity.PrivateKey)
}
