package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	slogmulti "github.com/samber/slog-multi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormattingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	handler := slogmulti.
		Pipe(slogmulti.NewHandleInlineMiddleware(errorFormattingMiddleware)).
		Handler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(handler)

	logger.ErrorContext(context.Background(), "save failed",
		slog.Any("err", errors.New("connection reset")),
		slog.Int("quantity", 40),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "save failed", entry["msg"])
	assert.EqualValues(t, 40, entry["quantity"])

	errGroup, ok := entry["err"].(map[string]any)
	require.True(t, ok, "err should be a group: %v", entry["err"])
	assert.Equal(t, "connection reset", errGroup["error"])
	assert.Equal(t, "*errors.errorString", errGroup["kind"])
}
