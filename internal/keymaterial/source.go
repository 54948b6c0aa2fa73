package keymaterial

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretSource fetches named secrets from an external store. The vault client
// used in production is a collaborator outside this module; it only has to
// satisfy this interface.
type SecretSource interface {
	FetchSecret(ctx context.Context, name string) (string, error)
}

// ErrSecretNotFound is returned by the bundled sources when the named secret
// does not exist.
var ErrSecretNotFound = errors.New("secret not found")

// Compile-time checks that the bundled sources implement SecretSource
var (
	_ SecretSource = EnvSource{}
	_ SecretSource = FileSource{}
	_ SecretSource = (*FakeSource)(nil)
)

// EnvSource reads secrets from environment variables; the secret name is the
// variable name.
type EnvSource struct{}

func (EnvSource) FetchSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s: %w", name, ErrSecretNotFound)
	}

	return strings.TrimSpace(value), nil
}

// FileSource reads secrets from files in Directory, one secret per file, as
// mounted by most secret-store CSI drivers.
type FileSource struct {
	Directory string
}

func (s FileSource) FetchSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid secret name %q", name)
	}

	b, err := os.ReadFile(filepath.Join(s.Directory, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file %s in %s: %w", name, s.Directory, ErrSecretNotFound)
		}
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	return strings.TrimSpace(string(b)), nil
}
