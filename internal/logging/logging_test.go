package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetup_JSON(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer

	closer, err := setup(Options{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Msg("dropped")
	log.Warn().Str("model_version", "3").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "3", entry["model_version"])
	assert.Equal(t, "iris", entry["service"])
	assert.Contains(t, entry, "time")
}

func TestSetup_Console(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer

	_, err := setup(Options{}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetup_File(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "iris.log")

	closer, err := setup(Options{Level: "debug", Format: "json", File: path}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("to both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestSetup_Invalid(t *testing.T) {
	restoreLogger(t)

	_, err := setup(Options{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = setup(Options{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
