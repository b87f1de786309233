package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoad_UsesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "./recordings", cfg.Recording.OutputDirectory)
	assert.Equal(t, DefaultFilenamePattern, cfg.Recording.FilenamePattern)
	assert.Equal(t, 1080, cfg.Recording.Resolution)
	assert.Equal(t, 30, cfg.Recording.Framerate)
	assert.Equal(t, time.Second, cfg.Recording.PollInterval)
	assert.Equal(t, 60, cfg.Monitor.CheckIntervalSeconds)
}

func TestLoad_ReadsYAMLAndAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
recording:
  output_directory: "/data/rec"
  max_duration_minutes: 30
  max_filesize_mb: 512
  resolution: 720
  framerate: 60
monitor:
  check_interval_seconds: 15
  rooms: ["alice", "bob_1"]
network:
  domain: "https://example.com"
  cookies: "from_file=1"
`)
	t.Setenv("CB_COOKIES", "cf_clearance=env")
	t.Setenv("RECORDER_RESOLUTION", "480")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/rec", cfg.Recording.OutputDirectory)
	assert.Equal(t, 30*time.Minute, cfg.MaxDuration())
	assert.Equal(t, int64(512*1024*1024), cfg.MaxFileBytes())
	assert.Equal(t, 480, cfg.Recording.Resolution)
	assert.Equal(t, 60, cfg.Recording.Framerate)
	assert.Equal(t, 15*time.Second, cfg.CheckInterval())
	assert.Equal(t, []string{"alice", "bob_1"}, cfg.Monitor.Rooms)
	assert.Equal(t, "cf_clearance=env", cfg.Network.Cookies)
	assert.Equal(t, "https://example.com/", cfg.DomainWithSlash())
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "recording: [unclosed")
	_, err := Load(path)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestLoad_RoomsFromEnv(t *testing.T) {
	t.Setenv("RECORDER_ROOMS", "one, two,three")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, cfg.Monitor.Rooms)
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RECORDER_TEST_KEY=hello\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RECORDER_TEST_KEY") })

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "hello", GetEnv("RECORDER_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("RECORDER_TEST_MISSING", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("RECORDER_TEST_INT", "42")
	t.Setenv("RECORDER_TEST_BAD", "forty")
	assert.Equal(t, 42, GetEnvInt("RECORDER_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("RECORDER_TEST_BAD", 1))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Monitor.Rooms = []string{"room_1"}
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no_rooms", func(c *Config) { c.Monitor.Rooms = nil }},
		{"bad_room", func(c *Config) { c.Monitor.Rooms = []string{"bad-room"} }},
		{"negative_duration", func(c *Config) { c.Recording.MaxDurationMinutes = -1 }},
		{"negative_size", func(c *Config) { c.Recording.MaxFilesizeMB = -1 }},
		{"zero_resolution", func(c *Config) { c.Recording.Resolution = 0 }},
		{"zero_check_interval", func(c *Config) { c.Monitor.CheckIntervalSeconds = 0 }},
		{"bad_domain", func(c *Config) { c.Network.Domain = "example.com" }},
		{"pattern_with_separator", func(c *Config) { c.Recording.FilenamePattern = "a/{{.Username}}" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, ErrConfig), "got %v", err)
		})
	}
}

func TestValidateRoomName(t *testing.T) {
	for _, ok := range []string{"testroom", "test_room", "TestRoom123", "a"} {
		assert.NoError(t, ValidateRoomName(ok), ok)
	}
	for _, bad := range []string{"", "test-room", "test room", "test.room", string(make([]byte, 51))} {
		assert.Error(t, ValidateRoomName(bad), bad)
	}
}
