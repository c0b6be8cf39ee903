package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values loaded from config.toml.
const (
	EnvAPIURL   = "YOMI_API_URL"
	EnvToken    = "YOMI_TOKEN"
	EnvDBPath   = "YOMI_DB_PATH"
	EnvLogLevel = "YOMI_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Auth     AuthConfig     `toml:"auth"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

// APIConfig describes the remote listening-history service and polling policy.
type APIConfig struct {
	BaseURL         string  `toml:"base_url"`
	StatusEndpoint  string  `toml:"status_endpoint"`
	PollInterval    string  `toml:"poll_interval"`
	MaxAttempts     int     `toml:"max_attempts"`
	RequestTimeout  string  `toml:"request_timeout"`
	RetryMax        int     `toml:"retry_max"`
	SnapshotWorkers int     `toml:"snapshot_workers"`
	StatusRate      float64 `toml:"status_rate"`
}

// AuthConfig contains the identity provider's OAuth2 settings.
type AuthConfig struct {
	ClientID    string   `toml:"client_id"`
	AuthURL     string   `toml:"auth_url"`
	TokenURL    string   `toml:"token_url"`
	Audience    string   `toml:"audience"`
	Scopes      []string `toml:"scopes"`
	RedirectURI string   `toml:"redirect_uri"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Interval parses poll_interval, defaulting to 3s when unset or malformed.
func (c APIConfig) Interval() time.Duration {
	return parseDuration(c.PollInterval, 3*time.Second)
}

// Timeout parses request_timeout, defaulting to 30s.
func (c APIConfig) Timeout() time.Duration {
	return parseDuration(c.RequestTimeout, 30*time.Second)
}

// UsesTaskEndpoint reports whether status checks go to /api/task-status.
func (c APIConfig) UsesTaskEndpoint() bool {
	return strings.EqualFold(c.StatusEndpoint, "task")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	switch strings.ToLower(c.API.StatusEndpoint) {
	case "", "job", "task":
	default:
		return fmt.Errorf("%w: api.status_endpoint must be job or task, got %q", ErrInvalidConfig, c.API.StatusEndpoint)
	}
	if c.API.MaxAttempts < 0 {
		return fmt.Errorf("%w: api.max_attempts cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads variables from the given dotenv files into the process environment.
// Missing files are skipped; variables already set are not overwritten.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with YOMI_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}
