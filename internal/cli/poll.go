package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/mailbox-monitor/internal/model"
	"github.com/nhle/mailbox-monitor/internal/store"
	"github.com/nhle/mailbox-monitor/internal/sync"
	"github.com/nhle/mailbox-monitor/internal/theme"
)

func newPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Read the newest unread message of a folder on an interval until interrupted",
		Args:  cobra.NoArgs,
	}
	folder := cmd.Flags().String("folder", "", "inbox child folder to poll, or \"inbox\" (overrides poll_folder)")
	interval := cmd.Flags().Duration("interval", 0, "poll interval (overrides poll_interval_sec)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(s *session) error {
			cfg := sync.Config{
				Folder:      s.cfg.PollFolder,
				Interval:    s.cfg.PollInterval(),
				MaxBackoff:  s.cfg.PollMaxBackoff(),
				MaxFailures: s.cfg.PollMaxFailures,
			}
			if *folder != "" {
				cfg.Folder = *folder
			}
			if *interval > 0 {
				cfg.Interval = *interval
				if cfg.MaxBackoff < cfg.Interval {
					cfg.MaxBackoff = cfg.Interval
				}
			}

			out := cmd.OutOrStdout()
			opts := []sync.Option{
				sync.WithLogger(s.logger),
				sync.WithOnRead(func(msg *model.MessageSummary) {
					fmt.Fprintln(out, theme.Summary(msg))
				}),
			}

			if s.cfg.JournalPath != "" {
				journal, err := store.NewSQLiteStore(s.cfg.JournalPath)
				if err != nil {
					return fmt.Errorf("opening journal: %w", err)
				}
				defer journal.Close()
				opts = append(opts, sync.WithJournal(journal))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runPoller(ctx, s, sync.New(s.mailbox, cfg, opts...))
		})
	}
	return cmd
}

func runPoller(ctx context.Context, s *session, p *sync.Poller) error {
	start := time.Now()
	err := p.Run(ctx)

	st := p.Status()
	s.logger.Info("poll finished",
		"folder", st.Folder,
		"reads", st.Reads,
		"elapsed", time.Since(start).Round(time.Second),
	)
	return err
}

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show messages the poller marked read",
		Args:  cobra.NoArgs,
	}
	limit := cmd.Flags().Int("limit", store.DefaultRecentLimit, "maximum entries to show")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		s, err := openConfig(cmd)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()

		if s.cfg.JournalPath == "" {
			return fmt.Errorf("journal_path is not configured")
		}

		journal, err := store.NewSQLiteStore(s.cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer journal.Close()

		entries, err := journal.RecentReads(cmd.Context(), *limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), theme.Journal(entries))
		return nil
	}
	return cmd
}
