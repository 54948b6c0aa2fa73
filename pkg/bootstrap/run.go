package bootstrap

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/tudl/bugit/internal/crypterr"
	"github.com/tudl/bugit/internal/envelope"
	"github.com/tudl/bugit/internal/keyexchange"
	"github.com/tudl/bugit/internal/keymaterial"
	"github.com/tudl/bugit/pkg/logs"
)

// ConfigFilePath is where bugit will try to load the configuration from
var ConfigFilePath string

// ExitAfterStartup causes Run to return as soon as the startup sequence is complete
var ExitAfterStartup bool

// Runtime is everything the startup sequence produced. It is built once and shared read-only.
type Runtime struct {
	Config Config
	Keys   *keymaterial.KeyMaterial
	Cipher *envelope.Cipher
	Fields envelope.Fields

	// KeyExchange is nil when no endpoint is configured
	KeyExchange *keyexchange.Client
}

// APIKey returns the shared secret learned during startup. Callers must treat an error as "no API key", never fall
// back to an empty one.
func (r *Runtime) APIKey() (string, error) {
	if r.KeyExchange == nil {
		return "", fmt.Errorf("%w: key exchange is disabled", keyexchange.ErrNoSharedSecret)
	}

	return r.KeyExchange.APIKey()
}

// HandshakeState returns the state of the startup key exchange.
func (r *Runtime) HandshakeState() keyexchange.State {
	if r.KeyExchange == nil {
		return keyexchange.StateNotStarted
	}

	return r.KeyExchange.State()
}

// Close zeroes the master key and the shared secret.
func (r *Runtime) Close() {
	r.Keys.Destroy()
	if r.KeyExchange != nil {
		r.KeyExchange.Destroy()
	}
}

// SecretSourceFor returns the secret source named by cfg.
func SecretSourceFor(cfg MasterKey) (keymaterial.SecretSource, error) {
	switch cfg.Source {
	case MasterKeySourceEnv:
		return keymaterial.EnvSource{}, nil
	case MasterKeySourceFile:
		return keymaterial.FileSource{Directory: cfg.Directory}, nil
	default:
		return nil, crypterr.Newf(crypterr.KindConfiguration, "bootstrap.SecretSourceFor", "unknown master key source %q", cfg.Source)
	}
}

// ResolveKeyMaterial fetches the master key from secrets and parses the configured RSA keys. Every failure is a
// configuration error.
func ResolveKeyMaterial(ctx context.Context, cfg Config, secrets keymaterial.SecretSource) (*keymaterial.KeyMaterial, error) {
	const op = "bootstrap.ResolveKeyMaterial"

	local, err := keymaterial.ParsePrivateKeyBase64(cfg.Identity.PrivateKey)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "invalid identity.private-key: %w", err)
	}

	pub, err := keymaterial.ParsePublicKeyBase64(cfg.Identity.PublicKey)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "invalid identity.public-key: %w", err)
	}

	if !pub.Equal(&local.PublicKey) {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "identity.public-key does not match identity.private-key")
	}

	var remote *rsa.PublicKey
	if cfg.KeyExchange.Enabled() {
		remote, err = keymaterial.ParsePublicKeyBase64(cfg.KeyExchange.RemotePublicKey)
		if err != nil {
			return nil, crypterr.Newf(crypterr.KindConfiguration, op, "invalid key-exchange.remote-public-key: %w", err)
		}
	}

	symmetric, err := keymaterial.LoadSymmetricKey(ctx, secrets, cfg.MasterKey.Name)
	if err != nil {
		return nil, err
	}
	defer clear(symmetric)

	return keymaterial.New(symmetric, local, remote)
}

// Start runs the startup sequence: key material, cipher, then the one-shot key exchange. A key exchange failure is
// logged and does not fail Start; any configuration problem does. If httpClient is nil the key exchange client's
// default is used.
func Start(ctx context.Context, cfg Config, secrets keymaterial.SecretSource, httpClient *http.Client) (*Runtime, error) {
	log := klog.FromContext(ctx).WithName("bootstrap")

	keys, err := ResolveKeyMaterial(ctx, cfg, secrets)
	if err != nil {
		return nil, err
	}

	cipher, err := envelope.NewCipher(keys)
	if err != nil {
		keys.Destroy()
		return nil, err
	}

	rt := &Runtime{
		Config: cfg,
		Keys:   keys,
		Cipher: cipher,
		Fields: envelope.NewFields(cipher),
	}

	thumbprint, err := keymaterial.Fingerprint(keys.LocalPublicKey())
	if err != nil {
		rt.Close()
		return nil, err
	}
	log.Info("Key material loaded", "masterKeySource", cfg.MasterKey.Source, "masterKeyName", cfg.MasterKey.Name, "identityThumbprint", thumbprint)

	if !cfg.KeyExchange.Enabled() {
		log.Info("Key exchange disabled, no key-exchange.endpoint configured")
		return rt, nil
	}

	client, err := keyexchange.NewClient(keyexchange.Config{
		ClientID: cfg.ClientID,
		Endpoint: cfg.KeyExchange.Endpoint,
		Timeout:  cfg.KeyExchange.Timeout,
	}, keys, httpClient)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.KeyExchange = client

	if err := client.Run(ctx); err != nil {
		log.Error(err, "Key exchange failed; continuing without a shared secret. Fix the configuration or connectivity and restart.", "kind", crypterr.KindOf(err).String())
	}

	return rt, nil
}

// Run starts bugit and blocks until it receives SIGINT or SIGTERM, unless ExitAfterStartup is set.
func Run(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := klog.FromContext(ctx)

	cfg, err := LoadConfig(ConfigFilePath)
	if err != nil {
		return err
	}

	if dump, err := cfg.Dump(); err == nil {
		log.V(logs.Debug).Info("Loaded config", "path", ConfigFilePath, "config", dump)
	}

	secrets, err := SecretSourceFor(cfg.MasterKey)
	if err != nil {
		return err
	}

	rt, err := Start(ctx, cfg, secrets, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Info("Startup complete", "keyExchangeState", rt.HandshakeState().String())

	if ExitAfterStartup {
		return nil
	}

	<-ctx.Done()
	log.Info("Shutting down, destroying key material")

	return nil
}
