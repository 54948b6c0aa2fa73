package cmd

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/tudl/bugit/internal/keymaterial"
	"github.com/tudl/bugit/pkg/bootstrap"
)

const (
	publicKeyFormatBase64 = "base64"
	publicKeyFormatJWK    = "jwk"
	publicKeyFormatPEM    = "pem"
)

var (
	keyBits         int
	publicKeyFormat string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "manage the RSA identity used for the key exchange",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "generate an RSA key pair",
	Long: `Generate an RSA key pair and print it as an identity block, ready to paste
into the config file. The output contains the private key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeKeyPair(cmd.OutOrStdout(), keyBits)
	},
}

var keysPublicCmd = &cobra.Command{
	Use:   "public",
	Short: "print the configured public key for the partner service",
	Long: `Print the public half of the configured identity, for handing to the
partner service out of band. The jwk format carries the key's thumbprint as kid.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap.LoadConfig(bootstrap.ConfigFilePath)
		if err != nil {
			return err
		}

		pub, err := keymaterial.ParsePublicKeyBase64(cfg.Identity.PublicKey)
		if err != nil {
			return err
		}

		return writePublicKey(cmd.OutOrStdout(), pub, publicKeyFormat)
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysPublicCmd)

	keysGenerateCmd.Flags().IntVar(
		&keyBits,
		"bits",
		keymaterial.MinRSAKeySize,
		fmt.Sprintf("Size of the RSA key in bits, at least %d.", keymaterial.MinRSAKeySize),
	)
	keysPublicCmd.Flags().StringVar(
		&publicKeyFormat,
		"format",
		publicKeyFormatBase64,
		fmt.Sprintf("Output format: %q, %q or %q.", publicKeyFormatBase64, publicKeyFormatJWK, publicKeyFormatPEM),
	)
}

func writeKeyPair(w io.Writer, bits int) error {
	if bits < keymaterial.MinRSAKeySize {
		return fmt.Errorf("--bits must be at least %d, got %d", keymaterial.MinRSAKeySize, bits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key: %w", err)
	}

	pub, err := keymaterial.MarshalPublicKeyBase64(&key.PublicKey)
	if err != nil {
		return err
	}

	priv, err := keymaterial.MarshalPrivateKeyBase64(key)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(struct {
		Identity bootstrap.Identity `yaml:"identity"`
	}{
		Identity: bootstrap.Identity{PublicKey: pub, PrivateKey: priv},
	})
	if err != nil {
		return fmt.Errorf("failed to render identity: %w", err)
	}

	_, err = w.Write(out)
	return err
}

func writePublicKey(w io.Writer, pub *rsa.PublicKey, format string) error {
	switch format {
	case publicKeyFormatBase64:
		s, err := keymaterial.MarshalPublicKeyBase64(pub)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, s)
		return err
	case publicKeyFormatJWK:
		key, err := keymaterial.PublicKeyJWK(pub)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(key, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render JWK: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case publicKeyFormatPEM:
		out, err := keymaterial.MarshalPublicKeyPEM(pub)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown format %q: must be %q, %q or %q", format, publicKeyFormatBase64, publicKeyFormatJWK, publicKeyFormatPEM)
	}
}
