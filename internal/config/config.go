// ABOUTME: Configuration loading and parsing for the quill server
// ABOUTME: Supports YAML files with environment variable expansion and validation

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves a field unset.
const (
	DefaultTokenTTL        = 24 * time.Hour
	DefaultModel           = "gemini-pro"
	DefaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 1024
)

// Config represents the complete quill server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	GenAI    GenAIConfig    `yaml:"genai"`
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

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenTTLRaw string `yaml:"token_ttl"`
}

// GenAIConfig holds generation backend configuration
type GenAIConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	Temperature     float64 `yaml:"-"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`

	// Raw string value for YAML unmarshaling. An explicit "0" is a valid
	// temperature, so absent and zero must stay distinguishable.
	TemperatureRaw string `yaml:"temperature"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Missing optional fields are filled with defaults.
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

	// Parse raw string fields (durations, numbers with meaningful zero)
	if err := parseRawValues(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config values: %w", err)
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

// applyDefaults fills in defaults for optional fields
func (c *Config) applyDefaults() {
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.GenAI.Model == "" {
		c.GenAI.Model = DefaultModel
	}
	if c.GenAI.BaseURL == "" {
		c.GenAI.BaseURL = DefaultBaseURL
	}
	if c.GenAI.TemperatureRaw == "" {
		c.GenAI.Temperature = DefaultTemperature
	}
	if c.GenAI.MaxOutputTokens == 0 {
		c.GenAI.MaxOutputTokens = DefaultMaxOutputTokens
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

	if c.GenAI.APIKey == "" {
		return fmt.Errorf("genai.api_key is required")
	}

	if c.GenAI.Temperature < 0 || c.GenAI.Temperature > 2 {
		return fmt.Errorf("genai.temperature must be between 0 and 2, got %v", c.GenAI.Temperature)
	}

	if c.GenAI.MaxOutputTokens < 1 {
		return fmt.Errorf("genai.max_output_tokens must be positive, got %d", c.GenAI.MaxOutputTokens)
	}

	return nil
}

// parseRawValues converts raw string fields into their typed values
func parseRawValues(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.GenAI.TemperatureRaw != "" {
		cfg.GenAI.Temperature, err = strconv.ParseFloat(cfg.GenAI.TemperatureRaw, 64)
		if err != nil {
			return fmt.Errorf("parsing temperature %q: %w", cfg.GenAI.TemperatureRaw, err)
		}
	}

	return nil
}
