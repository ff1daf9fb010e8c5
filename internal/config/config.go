package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const DefaultFile = "gatherly.yml"

// Config models gatherly.yml. Every leaf can be overridden by the GATHERLY_*
// environment variable named in its env tag.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr" env:"GATHERLY_ADDR"`
	BasePath string `yaml:"base_path" env:"GATHERLY_BASE_PATH"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"GATHERLY_DB_PATH"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"GATHERLY_JWT_SECRET"`
	Issuer    string        `yaml:"issuer" env:"GATHERLY_JWT_ISSUER"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"GATHERLY_TOKEN_TTL"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"GATHERLY_LOG_LEVEL"`
	Format string `yaml:"format" env:"GATHERLY_LOG_FORMAT"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"GATHERLY_OTEL_ENABLED"`
	Endpoint    string `yaml:"otlp_endpoint" env:"GATHERLY_OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"GATHERLY_OTEL_SERVICE_NAME"`
}

// Load reads path (when it exists), overlays the environment and validates.
// An empty path means DefaultFile in the working directory.
func Load(path string) (*Config, error) {
	cfg, err := LoadOptional(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default()
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional returns nil,nil if the config file does not exist. The file is
// decoded over Default so omitted keys keep their defaults.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return decode(data)
}

// ParseEnv overlays GATHERLY_* variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config.database.path is required")
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("config.auth.token_ttl must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("config.telemetry.otlp_endpoint is required when telemetry is enabled")
	}
	return nil
}

// RequireServe checks what serving HTTP needs on top of Validate.
func (c *Config) RequireServe() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("config.auth.jwt_secret (or GATHERLY_JWT_SECRET) is required for bearer auth")
	}
	return nil
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	return cfg, nil
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api

database:
  path: gatherly.db

auth:
  # Set here or through GATHERLY_JWT_SECRET.
  jwt_secret: ""
  issuer: gatherly
  token_ttl: 168h

log:
  level: info
  format: text

telemetry:
  enabled: false
  otlp_endpoint: ""
  service_name: gatherly
`
