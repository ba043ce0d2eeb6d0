package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")

	log.Info().Str("exam_id", "e1").Msg("Status advanced")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, ServiceName, line["service"])
	assert.Equal(t, "e1", line["exam_id"])
	assert.Equal(t, "Status advanced", line["message"])
	assert.Contains(t, line, "caller")
}

func TestNew_Level(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log = New(&buf, "bogus", "json")
	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_Pretty(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	log := New(&buf, "info", "pretty")
	log.Info().Msg("Server listening")

	out := buf.String()
	assert.Contains(t, out, "Server listening")
	assert.False(t, strings.HasPrefix(out, "{"))
}
