// Package secret resolves credentials referenced from the config file, so
// security tokens need not be written there in plain text.
package secret

import (
	"fmt"
	"os"
	"strings"
)

// SecretStore reads and writes named secrets.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// Reference prefixes accepted by Resolve.
const (
	PrefixEnv      = "env:"
	PrefixKeychain = "keychain:"
)

// Resolve expands a config value. "env:NAME" reads the environment,
// "keychain:account" reads store; anything else is returned unchanged.
// A reference that resolves to nothing is an error.
func Resolve(value string, store SecretStore) (string, error) {
	switch {
	case strings.HasPrefix(value, PrefixEnv):
		name := strings.TrimPrefix(value, PrefixEnv)
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return "", fmt.Errorf("resolve secret: environment variable %s is not set", name)
		}
		return v, nil
	case strings.HasPrefix(value, PrefixKeychain):
		key := strings.TrimPrefix(value, PrefixKeychain)
		if store == nil {
			return "", fmt.Errorf("resolve secret %s: no secret store", key)
		}
		v, err := store.Get(key)
		if err != nil {
			return "", fmt.Errorf("resolve secret %s: %w", key, err)
		}
		if len(v) == 0 {
			return "", fmt.Errorf("resolve secret %s: not found", key)
		}
		return string(v), nil
	default:
		return value, nil
	}
}
