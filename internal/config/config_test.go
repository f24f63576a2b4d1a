package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	viper.Reset()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 50, cfg.Feed.MaxSampleCount)
}

func TestLoadConfig_ReadsFilePath(t *testing.T) {
	viper.Reset()

	f := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(f, []byte("http:\n  port: \"9999\"\n"), 0o600))

	cfg, err := LoadConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.HTTP.Port)
}

func TestLoadConfig_StatErrorIsReturnedNotFatal(t *testing.T) {
	viper.Reset()

	f := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(f, []byte("http:\n  port: \"9999\"\n"), 0o600))

	// A path whose parent is a regular file fails Stat with an error that
	// is not a not-exist error.
	_, err := LoadConfig(filepath.Join(f, "nested.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat config path")
}
