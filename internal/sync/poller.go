package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	gosync "sync"
	"time"

	"github.com/nhle/mailbox-monitor/internal/model"
	"github.com/nhle/mailbox-monitor/internal/source"
)

// SyncState represents the current state of the poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
	SyncStopped
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	case SyncStopped:
		return "stopped"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

// SyncStatus is a snapshot of the poller's progress.
type SyncStatus struct {
	Folder              string
	State               SyncState
	LastPoll            time.Time
	LastRead            time.Time
	Reads               int
	ConsecutiveFailures int
	Error               error
}

// fetchTimeout is the maximum time allowed for a single poll.
const fetchTimeout = 60 * time.Second

// Reader is the part of the mailbox the poller consumes.
type Reader interface {
	ReadFolderMails(ctx context.Context, folderName string) (*model.MessageSummary, error)
	ReadInboxMails(ctx context.Context) (*model.MessageSummary, error)
}

// Recorder stores consumed messages.
type Recorder interface {
	RecordRead(ctx context.Context, entry model.JournalEntry) error
}

// Config controls the polling loop.
type Config struct {
	// Folder is the inbox child folder to read; model.FolderInbox reads the
	// inbox itself.
	Folder string

	Interval   time.Duration
	MaxBackoff time.Duration

	// MaxFailures stops Run after that many consecutive failures. Zero
	// means never.
	MaxFailures int

	// FetchTimeout bounds a single poll. Defaults to 60s.
	FetchTimeout time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

// WithJournal records every successful read.
func WithJournal(r Recorder) Option {
	return func(p *Poller) { p.journal = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithOnRead registers a callback invoked after each successful read.
func WithOnRead(fn func(*model.MessageSummary)) Option {
	return func(p *Poller) { p.onRead = fn }
}

// Poller repeatedly reads the newest unread message from one folder.
type Poller struct {
	reader  Reader
	journal Recorder
	cfg     Config
	logger  *slog.Logger
	onRead  func(*model.MessageSummary)

	triggerCh chan struct{}

	mu     gosync.Mutex
	status SyncStatus
}

// New creates a Poller for reader.
func New(reader Reader, cfg Config, opts ...Option) *Poller {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = fetchTimeout
	}
	if cfg.MaxBackoff < cfg.Interval {
		cfg.MaxBackoff = cfg.Interval
	}

	p := &Poller{
		reader:    reader,
		cfg:       cfg,
		logger:    slog.Default(),
		triggerCh: make(chan struct{}, 1),
		status:    SyncStatus{Folder: cfg.Folder, State: SyncIdle},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately and then after every interval until ctx is
// cancelled, which returns nil. Consecutive failures stretch the wait
// up to MaxBackoff; reaching MaxFailures returns the last error.
func (p *Poller) Run(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.cfg.Interval)
	}

	p.logger.Info("poller started",
		"folder", p.cfg.Folder,
		"interval", p.cfg.Interval,
		"max_backoff", p.cfg.MaxBackoff,
	)

	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.stop()
			return nil
		case <-timer.C:
		case <-p.triggerCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		err := p.pollOnce(ctx)
		if ctx.Err() != nil {
			p.stop()
			return nil
		}

		if err != nil {
			failures++
			p.recordFailure(failures, err)
			if p.cfg.MaxFailures > 0 && failures >= p.cfg.MaxFailures {
				p.stop()
				return fmt.Errorf("polling %s stopped after %d consecutive failures: %w",
					p.cfg.Folder, failures, err)
			}
		} else {
			failures = 0
		}

		timer.Reset(backoff(p.cfg.Interval, p.cfg.MaxBackoff, failures))
	}
}

// Trigger requests an immediate poll. It never blocks.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the poller state.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// pollOnce performs a single read. "No unread" is not an error.
func (p *Poller) pollOnce(ctx context.Context) error {
	p.setState(SyncRunning)

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	var (
		msg *model.MessageSummary
		err error
	)
	if strings.EqualFold(strings.TrimSpace(p.cfg.Folder), model.FolderInbox) {
		msg, err = p.reader.ReadInboxMails(fetchCtx)
	} else {
		msg, err = p.reader.ReadFolderMails(fetchCtx, p.cfg.Folder)
	}

	now := time.Now()
	switch {
	case source.IsNoUnread(err):
		p.logger.Debug("no unread messages", "folder", p.cfg.Folder)
		p.update(func(s *SyncStatus) {
			s.State = SyncIdle
			s.LastPoll = now
			s.ConsecutiveFailures = 0
			s.Error = nil
		})
		return nil
	case err != nil:
		return err
	}

	p.logger.Info("message read",
		"folder", p.cfg.Folder,
		"id", msg.ID,
		"conversation_id", msg.ConversationID,
		"from", msg.From,
		"subject", msg.Subject,
	)

	if p.journal != nil {
		entry := model.JournalEntry{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			Folder:         p.cfg.Folder,
			Subject:        msg.Subject,
			Sender:         msg.From,
			ReadAt:         now.UTC(),
		}
		if jErr := p.journal.RecordRead(fetchCtx, entry); jErr != nil {
			// The message is already marked read upstream.
			p.logger.Warn("recording read failed", "id", msg.ID, "error", jErr)
		}
	}

	p.update(func(s *SyncStatus) {
		s.State = SyncIdle
		s.LastPoll = now
		s.LastRead = now
		s.Reads++
		s.ConsecutiveFailures = 0
		s.Error = nil
	})

	if p.onRead != nil {
		p.onRead(msg)
	}
	return nil
}

func (p *Poller) recordFailure(failures int, err error) {
	attrs := []any{"folder", p.cfg.Folder, "failures", failures, "error", err}

	var authErr *source.AuthError
	if errors.As(err, &authErr) {
		attrs = append(attrs, "code", authErr.Code, "correlation_id", authErr.CorrelationID)
		p.logger.Error("poll authentication failed", attrs...)
	} else {
		p.logger.Error("poll failed", attrs...)
	}

	p.update(func(s *SyncStatus) {
		s.State = SyncError
		s.LastPoll = time.Now()
		s.ConsecutiveFailures = failures
		s.Error = err
	})
}

func (p *Poller) stop() {
	p.setState(SyncStopped)
	p.logger.Info("poller stopped", "folder", p.cfg.Folder)
}

func (p *Poller) setState(state SyncState) {
	p.update(func(s *SyncStatus) { s.State = state })
}

func (p *Poller) update(fn func(*SyncStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.status)
}

// backoff doubles interval once per consecutive failure, capped at ceiling.
func backoff(interval, ceiling time.Duration, failures int) time.Duration {
	wait := interval
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= ceiling {
			return ceiling
		}
	}
	return wait
}
