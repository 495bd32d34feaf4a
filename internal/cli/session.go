package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/mailbox-monitor/internal/credential"
	"github.com/nhle/mailbox-monitor/internal/model"
	"github.com/nhle/mailbox-monitor/internal/source/graph"
)

const httpTimeout = 30 * time.Second

// session is the wiring shared by every command: config, logger, token
// provider and mailbox.
type session struct {
	cfg      *model.Config
	logger   *slog.Logger
	provider *credential.Provider
	mailbox  *graph.Mailbox
	closeLog func() error
}

func (s *session) Close() error {
	return s.closeLog()
}

// openConfig loads the config and logger without touching the network.
func openConfig(cmd *cobra.Command) (*session, error) {
	path, err := resolveConfigPath(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	logFile := cfg.LogFile
	if v, _ := cmd.Flags().GetString("log-file"); v != "" {
		logFile = v
	}

	logger, cleanup, err := setupLogger(level, logFile)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return &session{cfg: cfg, logger: logger, closeLog: cleanup}, nil
}

// openSession builds the authenticated mailbox for cmd.
func openSession(cmd *cobra.Command) (*session, error) {
	s, err := openConfig(cmd)
	if err != nil {
		return nil, err
	}

	cache, err := newTokenCache(s.cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: httpTimeout}
	s.provider = credential.NewProvider(s.cfg, cache,
		credential.WithHTTPClient(httpClient),
		credential.WithLogger(s.logger),
	)
	s.mailbox = graph.NewMailbox(graph.NewClient(s.cfg.Endpoint, httpClient), s.provider)
	return s, nil
}

func newTokenCache(cfg *model.Config) (credential.TokenCache, error) {
	switch cfg.TokenCache {
	case model.TokenCacheKeyring:
		cache, err := credential.NewKeyringCache()
		if err != nil {
			return nil, fmt.Errorf("opening token keyring: %w", err)
		}
		return cache, nil
	default:
		return credential.NewMemoryCache(), nil
	}
}
