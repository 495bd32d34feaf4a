package testutil

import (
	"bytes"
	"log/slog"
	gosync "sync"
	"testing"
)

// LogBuffer is a goroutine-safe buffer for captured log output.
type LogBuffer struct {
	mu  gosync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// SetupLogger returns a debug-level text logger writing into a buffer the
// test can inspect. The buffer is dumped on failure.
func SetupLogger(t *testing.T) (*slog.Logger, *LogBuffer) {
	t.Helper()

	buf := &LogBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("captured logs:\n%s", buf.String())
		}
	})

	return logger, buf
}
