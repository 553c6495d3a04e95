package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"trace":   LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestJSONOutputCarriesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, LevelDebug, "json")
	defer Configure(os.Stderr, LevelInfo, "console")

	Error("store write failed", errors.New("disk full"), "key", "chrono_events", "count", 3, "dangling")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "store write failed", line["message"])
	assert.Equal(t, "disk full", line["error"])
	assert.Equal(t, "chrono_events", line["key"])
	assert.EqualValues(t, 3, line["count"])
	assert.NotContains(t, line, "dangling")
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, LevelInfo, "json")
	defer Configure(os.Stderr, LevelInfo, "console")

	Debug("hidden")
	assert.Zero(t, buf.Len())

	SetLevel(LevelDebug)
	Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
