package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerWritesFile(t *testing.T) {
	saved := log.Logger
	savedLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(savedLevel)
	})

	dir := t.TempDir()
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Directory: dir, MaxBackups: 3}))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	logger := ComponentLogger("test")
	logger.Info().Msg("hello")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestInitLoggerBadLevelFallsBackToInfo(t *testing.T) {
	saved := log.Logger
	savedLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(savedLevel)
	})

	require.NoError(t, InitLogger(LogConfig{Level: "loud"}))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"gpgnet-mock_2026-01-01.log",
		"gpgnet-mock_2026-01-02.log",
		"gpgnet-mock_2026-01-03.log",
		"other.log",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	cleanOldLogs(dir, 2)

	_, err := os.Stat(filepath.Join(dir, "gpgnet-mock_2026-01-01.log"))
	assert.True(t, os.IsNotExist(err))
	assert.FileExists(t, filepath.Join(dir, "gpgnet-mock_2026-01-03.log"))
	assert.FileExists(t, filepath.Join(dir, "other.log"))
}
