package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelLoggerTagsChannel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewChanneledLogger(&LoggerConfig{Writer: &buf, JSONFormat: true, DefaultLevel: slog.LevelInfo})
	require.NoError(t, err)

	logger.Checkout().Info("trial created", "attempt", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "checkout", entry["channel"])
	assert.Equal(t, "trial created", entry["msg"])
}

func TestSetChannelLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewChanneledLogger(&LoggerConfig{Writer: &buf, JSONFormat: true, DefaultLevel: slog.LevelInfo})
	require.NoError(t, err)

	logger.Widget().Debug("hidden")
	assert.Empty(t, buf.String())

	require.NoError(t, logger.SetChannelLevel(ChannelWidget, slog.LevelDebug))
	buf.Reset()
	logger.Widget().Debug("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Equal(t, "DEBUG", logger.GetChannelLevels()["widget"])

	assert.Error(t, logger.SetChannelLevel(Channel("nope"), slog.LevelDebug))
}

func TestLogErrorIncludesMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewChanneledLogger(&LoggerConfig{Writer: &buf, JSONFormat: true})
	require.NoError(t, err)

	logger.LogError(ChannelBackend, "create_trial", errors.New("boom"), map[string]any{"status": 500})
	out := buf.String()
	assert.True(t, strings.Contains(out, `"operation":"create_trial"`))
	assert.True(t, strings.Contains(out, `"status":500`))
}

func TestMasking(t *testing.T) {
	assert.Equal(t, "********", SanitizeSessionID("short"))
	assert.Equal(t, "01HZ****WXYZ", SanitizeSessionID("01HZABCDEFWXYZ"))
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "******", MaskToken("abc"))
	assert.Equal(t, "abc…23", MaskToken("abc123abc123"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}
