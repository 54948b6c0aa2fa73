package bootstrap

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/tudl/bugit/internal/crypterr"
	"github.com/tudl/bugit/internal/keyexchange"
)

const (
	// MasterKeySourceEnv reads the master key from an environment variable
	MasterKeySourceEnv = "env"

	// MasterKeySourceFile reads the master key from a file in a mounted secrets directory
	MasterKeySourceFile = "file"

	redacted = "<redacted>"
)

// Config wraps the options for a run of bugit.
type Config struct {
	// ClientID identifies this service to the key exchange partner
	ClientID    string      `yaml:"client-id"`
	Identity    Identity    `yaml:"identity"`
	KeyExchange KeyExchange `yaml:"key-exchange"`
	MasterKey   MasterKey   `yaml:"master-key"`
}

// Identity is this process's RSA key pair, each half as base64 DER.
type Identity struct {
	PublicKey  string `yaml:"public-key"`
	PrivateKey string `yaml:"private-key"`
}

// KeyExchange configures the startup handshake. An empty Endpoint disables it.
type KeyExchange struct {
	Endpoint        string        `yaml:"endpoint,omitempty"`
	RemotePublicKey string        `yaml:"remote-public-key,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
}

// MasterKey says where the base64 AES-256 master key is fetched from.
type MasterKey struct {
	Source    string `yaml:"source"`
	Name      string `yaml:"name"`
	Directory string `yaml:"directory,omitempty"`
}

// Enabled returns true if a key exchange endpoint is configured.
func (k KeyExchange) Enabled() bool {
	return k.Endpoint != ""
}

// Dump generates a YAML string of the Config object, with key material redacted
func (c *Config) Dump() (string, error) {
	safe := *c
	if safe.Identity.PrivateKey != "" {
		safe.Identity.PrivateKey = redacted
	}
	if safe.KeyExchange.RemotePublicKey != "" {
		safe.KeyExchange.RemotePublicKey = redacted
	}

	d, err := yaml.Marshal(&safe)

	if err != nil {
		return "", errors.Wrap(err, "failed to generate YAML dump of config")
	}

	return string(d), nil
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.Identity.PublicKey == "" {
		result = multierror.Append(result, fmt.Errorf("identity.public-key is required"))
	}

	if c.Identity.PrivateKey == "" {
		result = multierror.Append(result, fmt.Errorf("identity.private-key is required"))
	}

	if c.KeyExchange.Enabled() {
		if c.ClientID == "" {
			result = multierror.Append(result, fmt.Errorf("client-id is required when key-exchange.endpoint is set"))
		}

		if c.KeyExchange.RemotePublicKey == "" {
			result = multierror.Append(result, fmt.Errorf("key-exchange.remote-public-key is required when key-exchange.endpoint is set"))
		}

		if err := keyexchange.ValidateEndpoint(c.KeyExchange.Endpoint); err != nil {
			result = multierror.Append(result, fmt.Errorf("key-exchange.endpoint: %s", err))
		}
	}

	if c.KeyExchange.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("key-exchange.timeout must not be negative"))
	}

	switch c.MasterKey.Source {
	case MasterKeySourceEnv:
	case MasterKeySourceFile:
		if c.MasterKey.Directory == "" {
			result = multierror.Append(result, fmt.Errorf("master-key.directory is required when master-key.source is %q", MasterKeySourceFile))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("master-key.source must be %q or %q, got %q", MasterKeySourceEnv, MasterKeySourceFile, c.MasterKey.Source))
	}

	if c.MasterKey.Name == "" {
		result = multierror.Append(result, fmt.Errorf("master-key.name is required"))
	}

	return result.ErrorOrNil()
}

// ParseConfig reads config into a struct used to start bugit. Every validation problem is reported at once.
func ParseConfig(data []byte) (Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return config, crypterr.Newf(crypterr.KindConfiguration, "bootstrap.ParseConfig", "failed to parse config: %w", err)
	}

	if config.MasterKey.Source == "" {
		config.MasterKey.Source = MasterKeySourceEnv
	}

	if config.KeyExchange.Enabled() && config.KeyExchange.Timeout == 0 {
		config.KeyExchange.Timeout = keyexchange.DefaultTimeout
	}

	if err = config.validate(); err != nil {
		return config, crypterr.New(crypterr.KindConfiguration, "bootstrap.ParseConfig", err)
	}

	return config, nil
}

// LoadConfig reads and parses the config file at path.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, crypterr.Newf(crypterr.KindConfiguration, "bootstrap.LoadConfig", "failed to read config file: %w", err)
	}

	return ParseConfig(b)
}
