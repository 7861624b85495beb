package ur_assist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "assist.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{"scene": "scenes/lab.json"}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, time.Second, cfg.ConnectTimeout())
	assert.Equal(t, DefaultProgram, cfg.Program)
	assert.Equal(t, 1.0, *cfg.PaceScale)
	assert.Zero(t, cfg.SimSpeed, "zero keeps the catalogue speed")
	assert.False(t, cfg.Offline)
	assert.Nil(t, cfg.Hand)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "scenes", "lab.json"), cfg.Scene)
	assert.Empty(t, cfg.Catalogue)
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `{
  "host": "127.0.0.1",
  "port": 30003,
  "connect_timeout_sec": 0.25,
  "scene": "/abs/scene.json",
  "catalogue": "gestures.yaml",
  "program": "pharmacy",
  "sim_speed": 50,
  "realtime": true,
  "pace_scale": 0,
  "hand": {"port": "auto", "calibration_dir": "cal"}
}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	dir := filepath.Dir(path)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 30003, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.ConnectTimeout())
	assert.Equal(t, "/abs/scene.json", cfg.Scene)
	assert.Equal(t, filepath.Join(dir, "gestures.yaml"), cfg.Catalogue)
	assert.Equal(t, "pharmacy", cfg.Program)
	assert.Equal(t, 50.0, cfg.SimSpeed)
	assert.True(t, cfg.Realtime)
	assert.Equal(t, 0.0, *cfg.PaceScale, "explicit zero disables pacing")

	require.NotNil(t, cfg.Hand)
	assert.Equal(t, AutoPort, cfg.Hand.Port)
	assert.Equal(t, filepath.Join(dir, "cal"), cfg.Hand.CalibrationDir)
	assert.Equal(t, defaultHandServoID, cfg.Hand.ServoID)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"bad json", `{"scene":`, "parse"},
		{"no scene", `{}`, "scene"},
		{"bad port", `{"scene": "s.json", "port": 70000}`, "port"},
		{"negative timeout", `{"scene": "s.json", "connect_timeout_sec": -1}`, "connect_timeout_sec"},
		{"negative sim speed", `{"scene": "s.json", "sim_speed": -5}`, "sim_speed"},
		{"negative pace", `{"scene": "s.json", "pace_scale": -1}`, "pace_scale"},
		{"hand without port", `{"scene": "s.json", "hand": {}}`, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}
