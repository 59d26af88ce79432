package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := ContextWithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
	assert.Equal(t, context.Background(), ContextWithLogger(context.Background(), nil))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{raw: "debug", want: slog.LevelDebug},
		{raw: "INFO", want: slog.LevelInfo},
		{raw: " warn ", want: slog.LevelWarn},
		{raw: "error", want: slog.LevelError},
		{raw: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLevel(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(slog.LevelInfo, FormatJSON, &buf)
		require.NoError(t, err)

		logger.Debug("hidden")
		logger.Info("visible", "plate", "X1")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "visible", record["msg"])
		assert.Equal(t, "X1", record["plate"])
	})

	t.Run("text output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(slog.LevelDebug, FormatText, &buf)
		require.NoError(t, err)

		logger.Debug("shown")
		assert.True(t, strings.Contains(buf.String(), "msg=shown"), buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New(slog.LevelInfo, Format("xml"), io.Discard)
		assert.Error(t, err)
	})
}
