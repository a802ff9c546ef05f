package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philtim/timearchitect/audio"
	"github.com/philtim/timearchitect/config"
	"github.com/philtim/timearchitect/prefs"
)

func configPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "timearchitect.yaml")
}

// execute runs the root command against the config at path and returns
// everything it printed.
func execute(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	nowAll, nowFrom = false, ""
	zoneCode, zoneLabel, zoneLocation = "", "", ""
	alarmZone, serveListen = "", ""
	searchLimit = 10

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestZones_ListAddDelete(t *testing.T) {
	path := configPath(t)

	out, err := execute(t, path, "zones", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "America/New_York")
	assert.Contains(t, out, "Asia/Kolkata")

	out, err = execute(t, path, "zones", "add", "Europe/Berlin", "--code", "ber")
	require.NoError(t, err)
	assert.Equal(t, "Added BER (Europe/Berlin)\n", out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.True(t, cfg.HasZone("BER"))
	assert.Equal(t, "Berlin", cfg.Zones[len(cfg.Zones)-1].Location)

	out, err = execute(t, path, "zones", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Europe/Berlin")

	_, err = execute(t, path, "zones", "delete", "BER", "EST")
	require.NoError(t, err)
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.HasZone("BER"))
	assert.Equal(t, "IST", cfg.DefaultZone)
}

func TestZones_AddSuggestsUniqueCode(t *testing.T) {
	path := configPath(t)

	out, err := execute(t, path, "zones", "add", "Asia/Kolkata")
	require.NoError(t, err)
	assert.Equal(t, "Added IST2 (Asia/Kolkata)\n", out)

	_, err = execute(t, path, "zones", "add", "Asia/Tokyo", "--code", "JST")
	assert.ErrorContains(t, err, "already exists")
}

func TestZones_DeleteUnknown(t *testing.T) {
	_, err := execute(t, configPath(t), "zones", "delete", "XYZ")
	assert.ErrorContains(t, err, "zone 'XYZ' not found")
}

func TestAlarm_SetStatusCancel(t *testing.T) {
	path := configPath(t)

	out, err := execute(t, path, "alarm", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State:    idle")
	assert.Contains(t, out, "Sound:    Classic Beep")

	out, err = execute(t, path, "alarm", "set", "6:45", "--zone", "ist")
	require.NoError(t, err)
	assert.Equal(t, "Alarm set for 06:45 (IST)\n", out)

	out, err = execute(t, path, "alarm", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State:    armed")
	assert.Contains(t, out, "Target:   06:45 (IST)")

	out, err = execute(t, path, "alarm", "cancel")
	require.NoError(t, err)
	assert.Equal(t, "Alarm cancelled\n", out)

	out, err = execute(t, path, "alarm", "cancel")
	require.NoError(t, err)
	assert.Equal(t, "No alarm set\n", out)
}

func TestAlarm_SetInvalid(t *testing.T) {
	_, err := execute(t, configPath(t), "alarm", "set", "25:00")
	assert.EqualError(t, err, `"25:00" is not a valid HH:MM time`)
}

func TestPrefs_SetAndShow(t *testing.T) {
	path := configPath(t)

	out, err := execute(t, path, "prefs", "show")
	require.NoError(t, err)
	assert.Equal(t, "No preferences saved\n", out)

	tests := []struct {
		key   string
		value string
		want  string
	}{
		{prefs.KeyAlarmVolume, "2", "alarmVolume = 1\n"},
		{prefs.KeyAlarmSound, "kazoo", "alarmSound = classic\n"},
		{prefs.KeyAlarmSound, "chime", "alarmSound = chime\n"},
		{prefs.KeyStopKey, "Escape", "stopKey = esc\n"},
		{prefs.KeyZone, "#/jst", "zone = JST\n"},
		{prefs.KeyTheme, "theme-dark", "theme = theme-dark\n"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			out, err := execute(t, path, "prefs", "set", tt.key, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err = execute(t, path, "prefs", "set", prefs.KeyAlarmVolume, "loud")
	assert.ErrorContains(t, err, "volume must be a number")

	_, err = execute(t, path, "prefs", "set", prefs.KeyAlarmTime, "07:00")
	assert.ErrorContains(t, err, "alarm set")

	out, err = execute(t, path, "prefs", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "theme-dark")
	assert.Contains(t, out, "chime")
}

func TestNow(t *testing.T) {
	path := configPath(t)

	out, err := execute(t, path, "now", "ist")
	require.NoError(t, err)
	assert.Contains(t, out, "IST  India Standard Time")
	assert.Contains(t, out, "UTC +5.5")

	out, err = execute(t, path, "now", "atlantis")
	require.NoError(t, err)
	assert.Contains(t, out, "EST  Eastern Standard Time")

	out, err = execute(t, path, "now", "--all", "--from", "ist")
	require.NoError(t, err)
	assert.Contains(t, out, "+0h 0m")
	assert.Contains(t, out, "Tokyo, Japan")
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.SetPath(configPath(t))

	b, err := openBackend(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &prefs.File{}, b)

	cfg.Preferences.Backend = "memory"
	b, err = openBackend(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &prefs.Memory{}, b)

	cfg.Preferences.Backend = "sqlite"
	b, err = openBackend(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &prefs.SQLite{}, b)
	require.NoError(t, b.(*prefs.SQLite).Close())
}

func TestNewPlayer(t *testing.T) {
	cfg := config.Default()
	assert.IsType(t, &audio.Bell{}, newPlayer(cfg))

	cfg.Audio.Player = "none"
	assert.IsType(t, audio.Silent{}, newPlayer(cfg))

	cfg.Audio.Player = "command"
	cfg.Audio.Command = []string{"paplay", "{file}"}
	assert.IsType(t, &audio.Command{}, newPlayer(cfg))
}
