package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

const serviceName = "mailbox-monitor"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailbox-monitor/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailbox-monitor-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringCache keeps tokens in the system keyring so a restarted process
// can still take the silent path.
type KeyringCache struct {
	ring keyring.Keyring
}

// NewKeyringCache opens the system keyring.
func NewKeyringCache() (*KeyringCache, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return &KeyringCache{ring: ring}, nil
}

// NewKeyringCacheWith wraps an already opened keyring.
func NewKeyringCacheWith(ring keyring.Keyring) *KeyringCache {
	return &KeyringCache{ring: ring}
}

func tokenKey(username string) string {
	return "token-" + strings.ToLower(strings.TrimSpace(username))
}

// Lookup retrieves the cached token for username.
func (c *KeyringCache) Lookup(username string) (*oauth2.Token, bool, error) {
	item, err := c.ring.Get(tokenKey(username))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting credential %q: %w", tokenKey(username), err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return nil, false, fmt.Errorf("decoding credential %q: %w", tokenKey(username), err)
	}
	return &tok, true, nil
}

// Store saves tok for username in the keyring.
func (c *KeyringCache) Store(username string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding credential %q: %w", tokenKey(username), err)
	}

	err = c.ring.Set(keyring.Item{
		Key:         tokenKey(username),
		Data:        data,
		Label:       "mailbox-monitor token for " + username,
		Description: "OAuth2 token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey(username), err)
	}

	return nil
}

// Remove deletes the cached token for username. Removing an absent token
// is not an error.
func (c *KeyringCache) Remove(username string) error {
	err := c.ring.Remove(tokenKey(username))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", tokenKey(username), err)
	}
	return nil
}
