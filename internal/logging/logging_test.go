package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "activity-directory", "info", "json")

	logger.Debug().Msg("hidden")
	logger.Info().Str("activity", "Chess Club").Msg("signed up")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "activity-directory", entry["service"])
	require.Equal(t, "Chess Club", entry["activity"])
	require.Equal(t, "signed up", entry["message"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "svc", "loud", "json")

	logger.Debug().Msg("hidden")
	require.Empty(t, buf.String())
	logger.Info().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "svc", "debug", "console")

	logger.Debug().Msg("console line")
	require.Contains(t, buf.String(), "console line")
	require.False(t, strings.HasPrefix(buf.String(), "{"))
}
