package credential

import (
	"strings"
	gosync "sync"

	"golang.org/x/oauth2"
)

// TokenCache stores the last token acquired per account.
type TokenCache interface {
	// Lookup returns the cached token for username, if any.
	Lookup(username string) (*oauth2.Token, bool, error)
	Store(username string, tok *oauth2.Token) error
	Remove(username string) error
}

// MemoryCache is a process-local TokenCache.
type MemoryCache struct {
	mu     gosync.Mutex
	tokens map[string]*oauth2.Token
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tokens: make(map[string]*oauth2.Token)}
}

func (c *MemoryCache) Lookup(username string) (*oauth2.Token, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tok, ok := c.tokens[accountKey(username)]
	return tok, ok, nil
}

func (c *MemoryCache) Store(username string, tok *oauth2.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[accountKey(username)] = tok
	return nil
}

func (c *MemoryCache) Remove(username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tokens, accountKey(username))
	return nil
}

func accountKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
