package keymaterial

import (
	"context"
	"fmt"
)

// FakeSource is an in-memory SecretSource for tests.
type FakeSource struct {
	// Secrets maps secret names to values.
	Secrets map[string]string

	// Err, if set, is returned by every FetchSecret call.
	Err error

	// FetchSecretCalls tracks how many times FetchSecret was called
	FetchSecretCalls int
}

// NewFakeSource returns a FakeSource holding a single secret.
func NewFakeSource(name, value string) *FakeSource {
	return &FakeSource{Secrets: map[string]string{name: value}}
}

func (f *FakeSource) FetchSecret(ctx context.Context, name string) (string, error) {
	f.FetchSecretCalls++

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if f.Err != nil {
		return "", f.Err
	}

	value, ok := f.Secrets[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrSecretNotFound)
	}

	return value, nil
}
