package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/philtim/timearchitect/clock"
)

// Environment overrides
const (
	EnvLogLevel     = "TIMEARCHITECT_LOG_LEVEL"
	EnvListen       = "TIMEARCHITECT_LISTEN"
	EnvPrefsBackend = "TIMEARCHITECT_PREFS_BACKEND"
	EnvPrefsPath    = "TIMEARCHITECT_PREFS_PATH"
)

// Zone represents a clock configuration for one time zone
type Zone struct {
	Code     string `yaml:"code" validate:"required,max=16"`
	Timezone string `yaml:"timezone" validate:"required,timezone"`
	Label    string `yaml:"label,omitempty"`
	Location string `yaml:"location,omitempty"`
}

// PreferencesConfig selects where user preferences are stored
type PreferencesConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file sqlite memory"`
	Path    string `yaml:"path,omitempty"`
}

// AudioConfig selects how alarms are played
type AudioConfig struct {
	Player    string   `yaml:"player" validate:"oneof=bell command none"`
	Command   []string `yaml:"command,omitempty" validate:"required_if=Player command"`
	SoundsDir string   `yaml:"sounds_dir,omitempty"`
}

// NotificationsConfig lists shoutrrr service URLs notified when an alarm fires
type NotificationsConfig struct {
	URLs []string `yaml:"urls,omitempty" validate:"dive,url"`
}

// ServerConfig configures the HTTP daemon
type ServerConfig struct {
	Listen    string  `yaml:"listen" validate:"required"`
	Metrics   bool    `yaml:"metrics"`
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
}

// Config represents the application configuration
type Config struct {
	Zones         []Zone              `yaml:"zones" validate:"required,min=1,dive"`
	DefaultZone   string              `yaml:"default_zone"`
	TickInterval  time.Duration       `yaml:"tick_interval" validate:"gte=1s,lte=1m"`
	LogLevel      string              `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogDir        string              `yaml:"log_dir,omitempty"`
	Preferences   PreferencesConfig   `yaml:"preferences"`
	Audio         AudioConfig         `yaml:"audio"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Server        ServerConfig        `yaml:"server"`

	path string
}

var validate = validator.New()

// Default returns the configuration written on first start: the five
// reference zones with EST as the default.
func Default() *Config {
	cfg := &Config{
		DefaultZone:  clock.DefaultCode,
		TickInterval: time.Second,
		LogLevel:     "info",
		Preferences:  PreferencesConfig{Backend: "file"},
		Audio:        AudioConfig{Player: "bell"},
		Server:       ServerConfig{Listen: "127.0.0.1:8080", Metrics: true, RateLimit: 20},
	}
	for _, e := range clock.ReferenceEntries() {
		cfg.Zones = append(cfg.Zones, Zone{Code: e.Code, Timezone: e.TZ, Label: e.Label, Location: e.Location})
	}
	return cfg
}

// Load reads the configuration from path, or ~/.config/timearchitect.yaml
// when path is empty. If the file doesn't exist, it creates a default one.
// A .env file in the working directory and TIMEARCHITECT_* variables
// override what the file says.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefaultConfig(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.path = path
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without validating.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Zones = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) {
	c.path = path
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv(EnvPrefsBackend); v != "" {
		c.Preferences.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(EnvPrefsPath); v != "" {
		c.Preferences.Path = v
	}
}

// Validate checks field constraints and that the zones form a usable
// registry.
func (c *Config) Validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("no zones configured")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Registry builds the zone registry. An empty default_zone selects the
// first zone.
func (c *Config) Registry() (*clock.Registry, error) {
	entries := make([]clock.Entry, len(c.Zones))
	for i, z := range c.Zones {
		entries[i] = clock.Entry{Code: z.Code, TZ: z.Timezone, Label: z.Label, Location: z.Location}
	}
	def := c.DefaultZone
	if def == "" && len(c.Zones) > 0 {
		def = c.Zones[0].Code
	}
	return clock.NewRegistry(entries, def)
}

// PreferencesPath returns the configured preferences location, defaulting
// to a file next to the config.
func (c *Config) PreferencesPath() string {
	if c.Preferences.Path != "" {
		return c.Preferences.Path
	}
	name := "preferences.yaml"
	if c.Preferences.Backend == "sqlite" {
		name = "preferences.db"
	}
	return filepath.Join(c.dataDir(), name)
}

// LogPath returns the directory for log files.
func (c *Config) LogPath() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.dataDir(), "logs")
}

// SoundsPath returns the directory holding the alarm sound files.
func (c *Config) SoundsPath() string {
	if c.Audio.SoundsDir != "" {
		return c.Audio.SoundsDir
	}
	return filepath.Join(c.dataDir(), "sounds")
}

func (c *Config) dataDir() string {
	base := filepath.Dir(c.path)
	if c.path == "" {
		if p, err := DefaultPath(); err == nil {
			base = filepath.Dir(p)
		}
	}
	return filepath.Join(base, "timearchitect")
}

// DefaultPath returns ~/.config/timearchitect.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "timearchitect.yaml"), nil
}

// createDefaultConfig writes Default() to path
func createDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetSystemTimezone returns the system's IANA timezone name
func GetSystemTimezone() string {
	if loc := time.Local; loc != nil && loc.String() != "Local" {
		return loc.String()
	}
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	return "UTC"
}

// Save writes the configuration atomically
func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		c.path = p
	}

	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Atomic write: write to temp file, then rename
	configDir := filepath.Dir(c.path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tempFile, err := os.CreateTemp(configDir, "timearchitect-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// AddZone adds a new zone to the configuration
func (c *Config) AddZone(z Zone) error {
	z.Code = clock.NormalizeCode(z.Code)
	if c.HasZone(z.Code) {
		return fmt.Errorf("zone '%s' already exists", z.Code)
	}
	if err := validate.Struct(z); err != nil {
		return fmt.Errorf("invalid zone: %w", err)
	}
	if _, err := time.LoadLocation(z.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", z.Timezone, err)
	}
	c.Zones = append(c.Zones, z)
	return nil
}

// DeleteZones removes zones by code. The default zone moves to the first
// remaining zone if it was deleted.
func (c *Config) DeleteZones(codes []string) error {
	toDelete := make(map[string]bool)
	for _, code := range codes {
		toDelete[clock.NormalizeCode(code)] = true
	}

	var remaining []Zone
	for _, z := range c.Zones {
		if !toDelete[clock.NormalizeCode(z.Code)] {
			remaining = append(remaining, z)
		}
	}

	if len(remaining) == 0 {
		return fmt.Errorf("cannot delete all zones")
	}

	c.Zones = remaining
	if toDelete[clock.NormalizeCode(c.DefaultZone)] {
		c.DefaultZone = remaining[0].Code
	}
	return nil
}

// UniqueCode returns code, or code with a digit appended when a zone
// already uses it.
func (c *Config) UniqueCode(code string) string {
	code = clock.NormalizeCode(code)
	if !c.HasZone(code) {
		return code
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s%d", code, i)
		if !c.HasZone(candidate) {
			return candidate
		}
	}
}

// HasZone checks if a zone with the given code exists
func (c *Config) HasZone(code string) bool {
	code = clock.NormalizeCode(code)
	for _, z := range c.Zones {
		if clock.NormalizeCode(z.Code) == code {
			return true
		}
	}
	return false
}
