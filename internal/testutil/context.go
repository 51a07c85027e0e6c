package testutil

import (
	"context"
	"log/slog"
	"testing"

	"github.com/specialistvlad/mdlscene/internal/ctxlog"
)

// testWriter forwards log output to the test log so that it is shown only
// for failing tests or with -v.
type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Context returns a context carrying a debug-level logger bound to t.
func Context(t testing.TB) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}
