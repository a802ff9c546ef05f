package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "timearchitect.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, path, cfg.Path())
	require.Len(t, cfg.Zones, 5)
	assert.Equal(t, "EST", cfg.DefaultZone)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, "file", cfg.Preferences.Backend)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, "EST", reg.Default().Code)
	assert.Equal(t, 5, reg.Len())
}

func TestLoad_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	data := `
zones:
  - code: ber
    timezone: Europe/Berlin
    label: Central European Time
  - code: NPT
    timezone: Asia/Kathmandu
default_zone: npt
tick_interval: 2s
log_level: debug
audio:
  player: command
  command: [paplay, "{file}"]
notifications:
  urls: ["discord://token@channel"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.TickInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"paplay", "{file}"}, cfg.Audio.Command)
	// unset sections keep their defaults
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Listen)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, "NPT", reg.Default().Code)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvListen, ":9999")
	t.Setenv(EnvPrefsBackend, "sqlite")
	t.Setenv(EnvPrefsPath, "/tmp/p.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":9999", cfg.Server.Listen)
	assert.Equal(t, "sqlite", cfg.Preferences.Backend)
	assert.Equal(t, "/tmp/p.db", cfg.PreferencesPath())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no zones", func(c *Config) { c.Zones = nil }},
		{"bad timezone", func(c *Config) { c.Zones[0].Timezone = "Mars/Olympus" }},
		{"missing code", func(c *Config) { c.Zones[0].Code = "" }},
		{"duplicate code", func(c *Config) { c.Zones[1].Code = "est" }},
		{"unknown default", func(c *Config) { c.DefaultZone = "XYZ" }},
		{"fast tick", func(c *Config) { c.TickInterval = 100 * time.Millisecond }},
		{"slow tick", func(c *Config) { c.TickInterval = 90 * time.Second }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad backend", func(c *Config) { c.Preferences.Backend = "redis" }},
		{"command without args", func(c *Config) { c.Audio.Player = "command" }},
		{"bad url", func(c *Config) { c.Notifications.URLs = []string{"not a url"} }},
	}

	require.NoError(t, Default().Validate())
	minute := Default()
	minute.TickInterval = time.Minute
	require.NoError(t, minute.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.SetPath(filepath.Join(dir, "timearchitect.yaml"))
	require.NoError(t, cfg.AddZone(Zone{Code: "npt", Timezone: "Asia/Kathmandu", Label: "Nepal Time"}))
	require.NoError(t, cfg.Save())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	loaded, err := Load(cfg.Path())
	require.NoError(t, err)
	assert.True(t, loaded.HasZone("NPT"))
	assert.Equal(t, cfg.Zones, loaded.Zones)
	assert.Equal(t, time.Second, loaded.TickInterval)
}

func TestAddZone(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.AddZone(Zone{Code: "est", Timezone: "America/New_York"}))
	assert.Error(t, cfg.AddZone(Zone{Code: "XX", Timezone: "Nowhere/Land"}))
	assert.Error(t, cfg.AddZone(Zone{Code: "", Timezone: "UTC"}))

	require.NoError(t, cfg.AddZone(Zone{Code: "utc", Timezone: "UTC"}))
	assert.True(t, cfg.HasZone("UTC"))
	assert.Equal(t, "UTC", cfg.Zones[len(cfg.Zones)-1].Code)
}

func TestUniqueCode(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "CET", cfg.UniqueCode("cet"))
	assert.Equal(t, "IST2", cfg.UniqueCode("IST"))

	require.NoError(t, cfg.AddZone(Zone{Code: "IST2", Timezone: "Asia/Jerusalem"}))
	assert.Equal(t, "IST3", cfg.UniqueCode("ist"))
}

func TestDeleteZones(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.DeleteZones([]string{"est", "JST"}))
	assert.False(t, cfg.HasZone("EST"))
	assert.Len(t, cfg.Zones, 3)
	assert.Equal(t, "IST", cfg.DefaultZone)

	assert.Error(t, cfg.DeleteZones([]string{"IST", "GMT", "PST"}))
	assert.Len(t, cfg.Zones, 3)
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.SetPath("/etc/ta/config.yaml")
	assert.Equal(t, "/etc/ta/timearchitect/preferences.yaml", cfg.PreferencesPath())
	assert.Equal(t, "/etc/ta/timearchitect/logs", cfg.LogPath())
	assert.Equal(t, "/etc/ta/timearchitect/sounds", cfg.SoundsPath())

	cfg.Preferences.Backend = "sqlite"
	assert.Equal(t, "/etc/ta/timearchitect/preferences.db", cfg.PreferencesPath())
}
