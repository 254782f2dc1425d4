package security

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "taskchat"

// KeyrefPrefix marks a config value that should be resolved from the key
// store instead of being used literally, e.g. "keyring:openai_api_key".
const KeyrefPrefix = "keyring:"

// KeyStore stores secrets in the OS keychain, falling back to environment
// variables on headless hosts where no keychain is available.
type KeyStore struct{}

// NewKeyStore creates a key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{}
}

// Set stores a secret in the OS keychain.
func (ks *KeyStore) Set(name, value string) error {
	return keyring.Set(keyringService, name, value)
}

// Get retrieves a secret, first from the keychain and then from the
// environment variable TASKCHAT_<NAME> (upper-cased).
func (ks *KeyStore) Get(name string) (string, error) {
	if val, err := keyring.Get(keyringService, name); err == nil {
		return val, nil
	}
	if val := os.Getenv("TASKCHAT_" + strings.ToUpper(name)); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("secret not found: %s", name)
}

// Delete removes a secret from the keychain.
func (ks *KeyStore) Delete(name string) error {
	return keyring.Delete(keyringService, name)
}

// Resolve expands a config value. Values of the form "keyring:<name>" are
// looked up in the key store; anything else is returned as is.
func (ks *KeyStore) Resolve(value string) (string, error) {
	if !strings.HasPrefix(value, KeyrefPrefix) {
		return value, nil
	}
	return ks.Get(strings.TrimPrefix(value, KeyrefPrefix))
}

// MaskKey returns a masked version of an API key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}
