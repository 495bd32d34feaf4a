package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	configEnvVar   = "MAILMON_CONFIG"
	defaultConfig  = "config.json"
	defaultEnvFile = ".env"
)

// NewRootCommand builds the mailmon command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mailmon",
		Short:         "Read, mark and poll mail in a hosted mailbox",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to the JSON config (default $"+configEnvVar+" or "+defaultConfig+")")
	flags.String("log-level", "", "debug, info, warn or error (overrides log_level)")
	flags.String("log-file", "", "log file path, \"-\" for stdout only (overrides log_file)")

	root.AddCommand(
		newPollCmd(),
		newSentCmd(),
		newMessageCmd(),
		newThreadCmd(),
		newReadFolderCmd(),
		newReadInboxCmd(),
		newAttachmentCmd(),
		newAttachmentsCmd(),
		newFoldersCmd(),
		newJournalCmd(),
		newLogoutCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	if env := strings.TrimSpace(os.Getenv(configEnvVar)); env != "" {
		return env, nil
	}
	return defaultConfig, nil
}

func loadEnvFile() error {
	if _, err := os.Stat(defaultEnvFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(defaultEnvFile)
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger writes text logs to stdout and, unless logFile is empty or
// "-", appends them to logFile as well.
func setupLogger(levelName, logFile string) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(levelName))

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if logFile == "" || logFile == "-" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), cleanup, nil
	}

	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cleanup, fmt.Errorf("creating log dir: %w", err)
		}
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, cleanup, fmt.Errorf("opening log file: %w", err)
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
	cleanup = func() error {
		return file.Close()
	}
	return slog.New(handler), cleanup, nil
}
