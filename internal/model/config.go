package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Token cache backends.
const (
	TokenCacheMemory  = "memory"
	TokenCacheKeyring = "keyring"
)

// EnvPrefix prefixes environment overrides, e.g. MAILMON_PASSWORD.
const EnvPrefix = "MAILMON"

// DefaultScopes is the single permission set requested by both the silent
// and the password token paths.
var DefaultScopes = []string{
	"User.Read",
	"Mail.ReadWrite",
	"Mail.ReadWrite.Shared",
	"offline_access",
}

// requiredKeys must be present (and non-empty) before any network call.
var requiredKeys = []string{
	"client_id",
	"authority",
	"endpoint",
	"username",
	"password",
}

// Config is the process configuration. It is loaded once at startup and
// never mutated afterwards.
type Config struct {
	// ClientID is the public client application identifier.
	ClientID string `mapstructure:"client_id"`

	// Authority is the identity provider URL including the tenant
	// (e.g., https://login.microsoftonline.com/organizations).
	Authority string `mapstructure:"authority"`

	// Endpoint is the mailbox REST base URL
	// (e.g., https://graph.microsoft.com/v1.0).
	Endpoint string `mapstructure:"endpoint"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Scopes overrides DefaultScopes.
	Scopes []string `mapstructure:"scopes"`

	// TokenCache selects where acquired tokens are kept between calls.
	TokenCache string `mapstructure:"token_cache"`

	// PollFolder is the inbox child folder the poller reads; "inbox"
	// polls the inbox itself.
	PollFolder string `mapstructure:"poll_folder"`

	PollIntervalSec   int `mapstructure:"poll_interval_sec"`
	PollMaxBackoffSec int `mapstructure:"poll_max_backoff_sec"`

	// PollMaxFailures stops the poller after that many consecutive
	// failures. Zero means never.
	PollMaxFailures int `mapstructure:"poll_max_failures"`

	// JournalPath is the SQLite file recording consumed messages. Empty
	// disables the journal.
	JournalPath string `mapstructure:"journal_path"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// LoadConfig reads the JSON configuration at path using Viper. Every key
// can be overridden from the environment (MAILMON_CLIENT_ID, ...). A
// missing required key is an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("scopes", DefaultScopes)
	v.SetDefault("token_cache", TokenCacheMemory)
	v.SetDefault("poll_folder", "test_folder")
	v.SetDefault("poll_interval_sec", 30)
	v.SetDefault("poll_max_backoff_sec", 300)
	v.SetDefault("poll_max_failures", 0)
	v.SetDefault("journal_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "logs.log")

	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var missing []string
	for _, key := range requiredKeys {
		if !v.IsSet(key) || strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf(
			"config %s: missing required keys: %s",
			path, strings.Join(missing, ", "),
		)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the optional settings for values the program cannot use.
func (c *Config) Validate() error {
	switch c.TokenCache {
	case TokenCacheMemory, TokenCacheKeyring:
	default:
		return fmt.Errorf("unknown token_cache %q", c.TokenCache)
	}
	if c.PollIntervalSec <= 0 {
		return fmt.Errorf("poll_interval_sec must be positive, got %d", c.PollIntervalSec)
	}
	if c.PollMaxBackoffSec < c.PollIntervalSec {
		return fmt.Errorf(
			"poll_max_backoff_sec (%d) must be at least poll_interval_sec (%d)",
			c.PollMaxBackoffSec, c.PollIntervalSec,
		)
	}
	if c.PollMaxFailures < 0 {
		return fmt.Errorf("poll_max_failures must not be negative")
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("scopes must not be empty")
	}
	return nil
}

// TokenURL returns the identity provider token endpoint for the authority.
func (c *Config) TokenURL() string {
	return strings.TrimRight(c.Authority, "/") + "/oauth2/v2.0/token"
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c *Config) PollMaxBackoff() time.Duration {
	return time.Duration(c.PollMaxBackoffSec) * time.Second
}
