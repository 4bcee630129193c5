package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestBuild_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := Build(Config{Level: "info", Component: "vsi"}, &buf)

	log.Debug().Msg("hidden")
	log.Info().Str("prefix", "/vsiduckdb-x/").Msg("installed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "installed", entry["msg"])
	assert.Equal(t, "vsi", entry["component"])
	assert.Equal(t, "/vsiduckdb-x/", entry["prefix"])
	assert.Contains(t, entry, "timestamp")
}

func TestBuild_Console(t *testing.T) {
	var buf bytes.Buffer
	log := Build(Config{Level: "debug", Console: true}, &buf)
	log.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}
