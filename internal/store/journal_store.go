package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailbox-monitor/internal/model"
)

// RecordRead inserts a journal entry for a consumed message.
func (s *SQLiteStore) RecordRead(ctx context.Context, entry model.JournalEntry) error {
	if strings.TrimSpace(entry.MessageID) == "" {
		return fmt.Errorf("journal entry message id must not be empty")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.ReadAt.IsZero() {
		entry.ReadAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO read_journal (id, message_id, conversation_id, folder, subject, sender, read_at)
		VALUES (:id, :message_id, :conversation_id, :folder, :subject, :sender, :read_at)`,
		entry,
	)
	if err != nil {
		return fmt.Errorf("recording read of %s: %w", entry.MessageID, err)
	}
	return nil
}

// RecentReads returns the newest entries first.
func (s *SQLiteStore) RecentReads(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	var entries []model.JournalEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, message_id, conversation_id, folder, subject, sender, read_at
		FROM read_journal
		ORDER BY read_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent reads: %w", err)
	}
	return entries, nil
}

// HasRead reports whether the message appears in the journal.
func (s *SQLiteStore) HasRead(ctx context.Context, messageID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM read_journal WHERE message_id = ?", messageID)
	if err != nil {
		return false, fmt.Errorf("checking read journal for %s: %w", messageID, err)
	}
	return count > 0, nil
}
