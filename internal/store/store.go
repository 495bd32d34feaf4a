package store

import (
	"context"

	"github.com/nhle/mailbox-monitor/internal/model"
)

// DefaultRecentLimit is used when RecentReads is called with a
// non-positive limit.
const DefaultRecentLimit = 20

// Journal records every message the poller consumed.
type Journal interface {
	// RecordRead appends entry. An empty ID gets a fresh UUID and a zero
	// ReadAt is set to now.
	RecordRead(ctx context.Context, entry model.JournalEntry) error

	// RecentReads returns up to limit entries, newest first.
	RecentReads(ctx context.Context, limit int) ([]model.JournalEntry, error)

	// HasRead reports whether messageID was ever recorded.
	HasRead(ctx context.Context, messageID string) (bool, error)

	Close() error
}
