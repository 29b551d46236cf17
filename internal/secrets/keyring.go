// Package secrets resolves the store encryption key and the optional Hub
// API token from the OS secret vault (Windows Credential Manager, macOS
// Keychain, or Secret Service on Linux), minting and persisting a fresh key
// on first run.
package secrets

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	ourcrypto "github.com/airadcr/airadcr-desktop/internal/crypto"
)

const serviceName = "airadcr-desktop"

// Vault resolves and stores secrets under a fixed service name.
type Vault struct {
	ring keyring.Keyring
}

// Open opens the OS-appropriate keyring backend.
func Open() (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("open secret vault: %w", err)
	}
	return &Vault{ring: ring}, nil
}

// DBKey returns the 256-bit store encryption key, minting and persisting a
// new one under the "db-key" entry if none exists yet.
func (v *Vault) DBKey() ([]byte, error) {
	item, err := v.ring.Get("db-key")
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(string(item.Data))
		if decErr != nil {
			return nil, fmt.Errorf("decode stored db key: %w", decErr)
		}
		return key, nil
	}
	if !errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fmt.Errorf("read db key: %w", err)
	}

	key, err := ourcrypto.NewKey()
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := v.ring.Set(keyring.Item{
		Key:  "db-key",
		Data: []byte(encoded),
	}); err != nil {
		return nil, fmt.Errorf("persist db key: %w", err)
	}
	return key, nil
}

// HubToken returns the configured upstream Hub API token, if one was ever
// stored. Absence is not an error — the Hub Client treats an empty token as
// "no API_TOKEN header".
func (v *Vault) HubToken() (string, error) {
	item, err := v.ring.Get("hub-token")
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read hub token: %w", err)
	}
	return string(item.Data), nil
}

// SetHubToken stores the upstream Hub API token.
func (v *Vault) SetHubToken(token string) error {
	return v.ring.Set(keyring.Item{
		Key:  "hub-token",
		Data: []byte(token),
	})
}
