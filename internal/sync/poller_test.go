package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbox-monitor/internal/model"
	"github.com/nhle/mailbox-monitor/internal/source"
	"github.com/nhle/mailbox-monitor/tests/testutil"
)

// scriptedReader answers each call with the result of next(call), where
// call counts from 1.
type scriptedReader struct {
	mu          gosync.Mutex
	calls       int
	folders     []string
	inboxCalls  int
	next        func(call int) (*model.MessageSummary, error)
	callsSignal chan int
}

func newScriptedReader(next func(call int) (*model.MessageSummary, error)) *scriptedReader {
	return &scriptedReader{next: next, callsSignal: make(chan int, 64)}
}

func (r *scriptedReader) ReadFolderMails(_ context.Context, name string) (*model.MessageSummary, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	r.folders = append(r.folders, name)
	r.mu.Unlock()
	r.callsSignal <- call
	return r.next(call)
}

func (r *scriptedReader) ReadInboxMails(_ context.Context) (*model.MessageSummary, error) {
	r.mu.Lock()
	r.calls++
	r.inboxCalls++
	call := r.calls
	r.mu.Unlock()
	r.callsSignal <- call
	return r.next(call)
}

func (r *scriptedReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func noUnread() error {
	return &source.NotFoundError{Resource: source.ResourceUnreadMessage, Name: "test_folder"}
}

func summary(id string) *model.MessageSummary {
	return &model.MessageSummary{
		ID:             id,
		ConversationID: "conv-" + id,
		Subject:        "subject " + id,
		From:           "sender@x.com",
	}
}

func runAsync(ctx context.Context, p *Poller) <-chan error {
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
		return nil
	}
}

func TestRunPollsImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newScriptedReader(func(int) (*model.MessageSummary, error) {
		return nil, noUnread()
	})
	logger, _ := testutil.SetupLogger(t)
	p := New(reader, Config{Folder: "test_folder", Interval: time.Hour}, WithLogger(logger))

	done := runAsync(ctx, p)
	<-reader.callsSignal
	cancel()

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, 1, reader.callCount())
	assert.Equal(t, []string{"test_folder"}, reader.folders)
	assert.Equal(t, SyncStopped, p.Status().State)
}

func TestRunTreatsNoUnreadAsIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newScriptedReader(func(call int) (*model.MessageSummary, error) {
		if call == 4 {
			cancel()
		}
		return nil, noUnread()
	})
	logger, _ := testutil.SetupLogger(t)
	p := New(reader, Config{
		Folder:      "test_folder",
		Interval:    time.Millisecond,
		MaxFailures: 1,
	}, WithLogger(logger))

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 4, reader.callCount())
	assert.Zero(t, p.Status().ConsecutiveFailures)
	assert.NoError(t, p.Status().Error)
}

func TestRunStopsAfterMaxFailures(t *testing.T) {
	transport := &source.TransportError{Method: "GET", Path: "/me/mailFolders", StatusCode: 503}
	reader := newScriptedReader(func(int) (*model.MessageSummary, error) {
		return nil, transport
	})
	logger, logs := testutil.SetupLogger(t)
	p := New(reader, Config{
		Folder:      "test_folder",
		Interval:    time.Millisecond,
		MaxBackoff:  4 * time.Millisecond,
		MaxFailures: 3,
	}, WithLogger(logger))

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsTransport(err))
	assert.Contains(t, err.Error(), "after 3 consecutive failures")
	assert.Equal(t, 3, reader.callCount())
	assert.Contains(t, logs.String(), "poll failed")

	st := p.Status()
	assert.Equal(t, SyncStopped, st.State)
	assert.Equal(t, 3, st.ConsecutiveFailures)
}

func TestRunSuccessResetsFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newScriptedReader(func(call int) (*model.MessageSummary, error) {
		switch call {
		case 1, 3:
			return nil, errors.New("boom")
		case 2:
			return summary("m2"), nil
		default:
			cancel()
			return nil, noUnread()
		}
	})
	logger, _ := testutil.SetupLogger(t)
	p := New(reader, Config{
		Folder:      "test_folder",
		Interval:    time.Millisecond,
		MaxFailures: 2,
	}, WithLogger(logger))

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 4, reader.callCount())
	assert.Equal(t, 1, p.Status().Reads)
}

func TestRunLogsAuthCorrelationID(t *testing.T) {
	reader := newScriptedReader(func(int) (*model.MessageSummary, error) {
		return nil, &source.AuthError{Code: "invalid_grant", Description: "bad password", CorrelationID: "corr-1"}
	})
	logger, logs := testutil.SetupLogger(t)
	p := New(reader, Config{Folder: "test_folder", Interval: time.Millisecond, MaxFailures: 1}, WithLogger(logger))

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
	assert.Contains(t, logs.String(), "poll authentication failed")
	assert.Contains(t, logs.String(), "correlation_id=corr-1")
}

func TestRunJournalsReads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	journal := testutil.NewTestStore(t)
	reader := newScriptedReader(func(call int) (*model.MessageSummary, error) {
		if call <= 2 {
			return summary(fmt.Sprintf("m%d", call)), nil
		}
		cancel()
		return nil, noUnread()
	})

	var (
		mu   gosync.Mutex
		seen []string
	)
	logger, _ := testutil.SetupLogger(t)
	p := New(reader, Config{Folder: "test_folder", Interval: time.Millisecond},
		WithLogger(logger),
		WithJournal(journal),
		WithOnRead(func(m *model.MessageSummary) {
			mu.Lock()
			seen = append(seen, m.ID)
			mu.Unlock()
		}),
	)

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, []string{"m1", "m2"}, seen)

	entries, err := journal.RecentReads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "test_folder", e.Folder)
		assert.Equal(t, "sender@x.com", e.Sender)
		assert.Equal(t, "conv-"+e.MessageID, e.ConversationID)
	}
	assert.Equal(t, 2, p.Status().Reads)
}

type failingJournal struct{}

func (failingJournal) RecordRead(context.Context, model.JournalEntry) error {
	return errors.New("disk full")
}

func TestRunJournalFailureIsNotAPollFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newScriptedReader(func(call int) (*model.MessageSummary, error) {
		if call == 1 {
			return summary("m1"), nil
		}
		cancel()
		return nil, noUnread()
	})
	logger, logs := testutil.SetupLogger(t)
	p := New(reader, Config{Folder: "test_folder", Interval: time.Millisecond, MaxFailures: 1},
		WithLogger(logger), WithJournal(failingJournal{}))

	require.NoError(t, p.Run(ctx))
	assert.Contains(t, logs.String(), "recording read failed")
}

func TestRunInboxUsesInboxRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newScriptedReader(func(int) (*model.MessageSummary, error) {
		cancel()
		return nil, noUnread()
	})
	logger, _ := testutil.SetupLogger(t)
	p := New(reader, Config{Folder: "Inbox", Interval: time.Hour}, WithLogger(logger))

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 1, reader.inboxCalls)
	assert.Empty(t, reader.folders)
}

func TestTriggerPollsWithoutWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newScriptedReader(func(call int) (*model.MessageSummary, error) {
		if call == 2 {
			cancel()
		}
		return nil, noUnread()
	})
	logger, _ := testutil.SetupLogger(t)
	p := New(reader, Config{Folder: "test_folder", Interval: time.Hour}, WithLogger(logger))

	done := runAsync(ctx, p)
	<-reader.callsSignal
	p.Trigger()

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, 2, reader.callCount())
}

func TestRunRejectsZeroInterval(t *testing.T) {
	p := New(newScriptedReader(nil), Config{Folder: "x"})
	require.Error(t, p.Run(context.Background()))
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{3, 240 * time.Second},
		{4, 300 * time.Second},
		{50, 300 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.failures), func(t *testing.T) {
			assert.Equal(t, tt.want, backoff(30*time.Second, 300*time.Second, tt.failures))
		})
	}
}

func TestSyncStateString(t *testing.T) {
	assert.Equal(t, "idle", SyncIdle.String())
	assert.Equal(t, "stopped", SyncStopped.String())
	assert.Equal(t, "SyncState(9)", SyncState(9).String())
}
