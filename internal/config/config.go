// ABOUTME: Configuration loading and parsing for escape-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete escape-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Servers  ServersConfig  `yaml:"servers"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds session authority configuration
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	MaxLoginFailures int    `yaml:"max_login_failures"`

	SessionTTL  time.Duration `yaml:"-"`
	LoginWindow time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SessionTTLRaw  string `yaml:"session_ttl"`
	LoginWindowRaw string `yaml:"login_window"`
}

// SecretsConfig holds credential store configuration.
// The primary backend is always the gateway database; Fallback selects the
// secondary backend used when the primary is unavailable.
type SecretsConfig struct {
	Fallback string `yaml:"fallback"`  // "file" or "redis"
	FilePath string `yaml:"file_path"` // used when fallback is "file"
	RedisURL string `yaml:"redis_url"` // used when fallback is "redis"
}

// ServersConfig holds tool server registry configuration
type ServersConfig struct {
	RegistryPath string `yaml:"registry_path"`

	DispatchTimeout time.Duration `yaml:"-"`
	ToolCacheTTL    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	DispatchTimeoutRaw string `yaml:"dispatch_timeout"`
	ToolCacheTTLRaw    string `yaml:"tool_cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the corresponding config value is absent.
const (
	DefaultSessionTTL       = 24 * time.Hour
	DefaultLoginWindow      = 15 * time.Minute
	DefaultMaxLoginFailures = 5
	DefaultDispatchTimeout  = 10 * time.Second
	DefaultToolCacheTTL     = 30 * time.Second
)

// MinJWTSecretLength is the minimum accepted length for the signing secret.
const MinJWTSecretLength = 32

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for optional fields.
func (c *Config) applyDefaults() {
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = DefaultSessionTTL
	}
	if c.Auth.LoginWindow == 0 {
		c.Auth.LoginWindow = DefaultLoginWindow
	}
	if c.Auth.MaxLoginFailures == 0 {
		c.Auth.MaxLoginFailures = DefaultMaxLoginFailures
	}
	if c.Servers.DispatchTimeout == 0 {
		c.Servers.DispatchTimeout = DefaultDispatchTimeout
	}
	if c.Servers.ToolCacheTTL == 0 {
		c.Servers.ToolCacheTTL = DefaultToolCacheTTL
	}
	if c.Secrets.Fallback == "" {
		c.Secrets.Fallback = "file"
	}
	if c.Secrets.FilePath == "" && c.Database.Path != "" {
		c.Secrets.FilePath = filepath.Join(filepath.Dir(c.Database.Path), "secrets-fallback.json")
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}

	if c.Servers.RegistryPath == "" {
		return fmt.Errorf("servers.registry_path is required")
	}

	switch c.Secrets.Fallback {
	case "file":
		if c.Secrets.FilePath == "" {
			return fmt.Errorf("secrets.file_path is required when secrets.fallback is \"file\"")
		}
	case "redis":
		if c.Secrets.RedisURL == "" {
			return fmt.Errorf("secrets.redis_url is required when secrets.fallback is \"redis\"")
		}
	default:
		return fmt.Errorf("secrets.fallback must be \"file\" or \"redis\", got %q", c.Secrets.Fallback)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	if cfg.Auth.LoginWindowRaw != "" {
		cfg.Auth.LoginWindow, err = time.ParseDuration(cfg.Auth.LoginWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing login_window %q: %w", cfg.Auth.LoginWindowRaw, err)
		}
	}

	if cfg.Servers.DispatchTimeoutRaw != "" {
		cfg.Servers.DispatchTimeout, err = time.ParseDuration(cfg.Servers.DispatchTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing dispatch_timeout %q: %w", cfg.Servers.DispatchTimeoutRaw, err)
		}
	}

	if cfg.Servers.ToolCacheTTLRaw != "" {
		cfg.Servers.ToolCacheTTL, err = time.ParseDuration(cfg.Servers.ToolCacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing tool_cache_ttl %q: %w", cfg.Servers.ToolCacheTTLRaw, err)
		}
	}

	return nil
}
