package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ErrConfig is wrapped by every validation failure. It is fatal to the process.
var ErrConfig = errors.New("configuration error")

// DefaultFilenamePattern names recordings after the room and the time the file was opened.
const DefaultFilenamePattern = "{{.Username}}_{{.Year}}-{{.Month}}-{{.Day}}_{{.Hour}}-{{.Minute}}-{{.Second}}"

var roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

const maxRoomNameLength = 50

// Config is the resolved configuration handed to the recorder.
type Config struct {
	Recording struct {
		OutputDirectory    string        `yaml:"output_directory"`
		FilenamePattern    string        `yaml:"filename_pattern"`
		MaxDurationMinutes int           `yaml:"max_duration_minutes"`
		MaxFilesizeMB      int           `yaml:"max_filesize_mb"`
		Resolution         int           `yaml:"resolution"`
		Framerate          int           `yaml:"framerate"`
		PollInterval       time.Duration `yaml:"poll_interval"`
	} `yaml:"recording"`

	Monitor struct {
		CheckIntervalSeconds int      `yaml:"check_interval_seconds"`
		Rooms                []string `yaml:"rooms"`
	} `yaml:"monitor"`

	Network struct {
		Domain            string        `yaml:"domain"`
		UserAgent         string        `yaml:"user_agent"`
		Cookies           string        `yaml:"cookies"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
	} `yaml:"network"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Status struct {
		// Address enables the status/metrics HTTP server when non-empty.
		Address string `yaml:"address"`
	} `yaml:"status"`
}

// DefaultConfig returns configuration with the recorder's defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Recording.OutputDirectory = "./recordings"
	cfg.Recording.FilenamePattern = DefaultFilenamePattern
	cfg.Recording.Resolution = 1080
	cfg.Recording.Framerate = 30
	cfg.Recording.PollInterval = time.Second

	cfg.Monitor.CheckIntervalSeconds = 60

	cfg.Network.Domain = "https://chaturbate.com/"
	cfg.Network.Timeout = 30 * time.Second
	cfg.Network.RequestsPerSecond = 4

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. A missing file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadEnv reads .env files into the process environment. If a file does not
// exist LoadEnv returns an error that callers may ignore. With no paths, ".env" is used.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

func (c *Config) applyEnvOverrides() {
	c.Recording.OutputDirectory = GetEnv("RECORDER_OUTPUT_DIRECTORY", c.Recording.OutputDirectory)
	c.Recording.Resolution = GetEnvInt("RECORDER_RESOLUTION", c.Recording.Resolution)
	c.Recording.Framerate = GetEnvInt("RECORDER_FRAMERATE", c.Recording.Framerate)
	c.Monitor.CheckIntervalSeconds = GetEnvInt("RECORDER_CHECK_INTERVAL", c.Monitor.CheckIntervalSeconds)
	c.Network.Domain = GetEnv("RECORDER_DOMAIN", c.Network.Domain)
	c.Network.UserAgent = GetEnv("RECORDER_USER_AGENT", c.Network.UserAgent)
	c.Network.Cookies = GetEnv("CB_COOKIES", c.Network.Cookies)
	c.Logging.Level = GetEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = GetEnv("LOG_FORMAT", c.Logging.Format)
	c.Status.Address = GetEnv("RECORDER_STATUS_ADDRESS", c.Status.Address)
	if rooms := GetEnv("RECORDER_ROOMS", ""); rooms != "" {
		c.Monitor.Rooms = splitList(rooms)
	}
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Recording.OutputDirectory == "" {
		return fmt.Errorf("%w: recording.output_directory must not be empty", ErrConfig)
	}
	if c.Recording.FilenamePattern == "" {
		return fmt.Errorf("%w: recording.filename_pattern must not be empty", ErrConfig)
	}
	if strings.ContainsAny(c.Recording.FilenamePattern, `/\`) {
		return fmt.Errorf("%w: recording.filename_pattern must not contain path separators", ErrConfig)
	}
	if c.Recording.MaxDurationMinutes < 0 {
		return fmt.Errorf("%w: recording.max_duration_minutes must be >= 0", ErrConfig)
	}
	if c.Recording.MaxFilesizeMB < 0 {
		return fmt.Errorf("%w: recording.max_filesize_mb must be >= 0", ErrConfig)
	}
	if c.Recording.Resolution <= 0 {
		return fmt.Errorf("%w: recording.resolution must be > 0", ErrConfig)
	}
	if c.Recording.Framerate <= 0 {
		return fmt.Errorf("%w: recording.framerate must be > 0", ErrConfig)
	}
	if c.Recording.PollInterval <= 0 {
		return fmt.Errorf("%w: recording.poll_interval must be > 0", ErrConfig)
	}
	if c.Monitor.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("%w: monitor.check_interval_seconds must be > 0", ErrConfig)
	}
	if !strings.HasPrefix(c.Network.Domain, "http://") && !strings.HasPrefix(c.Network.Domain, "https://") {
		return fmt.Errorf("%w: network.domain must be an http(s) URL", ErrConfig)
	}
	if c.Network.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: network.requests_per_second must be >= 0", ErrConfig)
	}
	if len(c.Monitor.Rooms) == 0 {
		return fmt.Errorf("%w: no rooms specified", ErrConfig)
	}
	for _, room := range c.Monitor.Rooms {
		if err := ValidateRoomName(room); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRoomName accepts letters, digits and underscores, up to 50 characters.
func ValidateRoomName(room string) error {
	if room == "" {
		return fmt.Errorf("%w: room name cannot be empty", ErrConfig)
	}
	if len(room) > maxRoomNameLength {
		return fmt.Errorf("%w: room name %q is too long (max %d characters)", ErrConfig, room, maxRoomNameLength)
	}
	if !roomNamePattern.MatchString(room) {
		return fmt.Errorf("%w: room name %q contains invalid characters", ErrConfig, room)
	}
	return nil
}

// DomainWithSlash returns the base domain with exactly one trailing slash.
func (c *Config) DomainWithSlash() string {
	return strings.TrimRight(c.Network.Domain, "/") + "/"
}

// MaxDuration converts max_duration_minutes; zero means unlimited.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Recording.MaxDurationMinutes) * time.Minute
}

// MaxFileBytes converts max_filesize_mb; zero means unlimited.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.Recording.MaxFilesizeMB) * 1024 * 1024
}

// CheckInterval converts check_interval_seconds.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Monitor.CheckIntervalSeconds) * time.Second
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}
