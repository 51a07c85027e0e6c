package ctxlog_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/stretchr/testify/require"
)

func TestFromContext_Missing(t *testing.T) {
	require.Panics(t, func() { ctxlog.FromContext(context.Background()) })
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	ctx, logger := ctxlog.With(ctx, "definition", "mdl::example::M")
	logger.Info("first")
	ctxlog.FromContext(ctx).Info("second")

	require.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("definition=mdl::example::M")))
}

func TestDiscard(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	require.NotPanics(t, func() { ctxlog.FromContext(ctx).Info("dropped") })
}
