package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewRejectsBadOutput(t *testing.T) {
	_, err := New(Config{Level: "info", Output: "printer"})
	require.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "waypoints.log")

	log, err := New(Config{Level: "debug", Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())

	log.Info().Str("component", "test").Msg("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestNewWritesToBareFileName(t *testing.T) {
	t.Chdir(t.TempDir())

	log, err := New(Config{Level: "info", Output: "file", FilePath: "waypoints.log"})
	require.NoError(t, err)

	log.Info().Msg("hello")
	data, err := os.ReadFile("waypoints.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
