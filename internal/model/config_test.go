package model

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRefreshInterval(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, DefaultRefreshInterval},
		{-5 * time.Second, DefaultRefreshInterval},
		{60 * time.Second, 60 * time.Second},
		{45 * time.Second, 30 * time.Second},
		{2 * time.Minute, 60 * time.Second},
		{10 * time.Minute, 5 * time.Minute},
		{24 * time.Hour, time.Hour},
		{time.Second, 15 * time.Second},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeRefreshInterval(tc.in), "input %v", tc.in)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, DefaultRefreshInterval, cfg.RefreshInterval())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	want := &AppConfig{
		APIBaseURL:         "https://github.example.com/api/v3",
		RefreshIntervalSec: 300,
		DatabasePath:       filepath.Join(t.TempDir(), "cache.db"),
		LogLevel:           "debug",
	}
	require.NoError(t, SaveConfig(path, want))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 5*time.Minute, got.RefreshInterval())
}

func TestRefreshIntervalClampedOnOddValue(t *testing.T) {
	cfg := &AppConfig{RefreshIntervalSec: 299}
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval())
}
