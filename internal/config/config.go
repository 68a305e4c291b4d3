// Package config loads the service configuration from config.yaml with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Logging   LoggingConfig   `yaml:"logging"`
	Workers   WorkersConfig   `yaml:"workers"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// DSN is a PostgreSQL connection string. Empty selects the in-memory
	// store.
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	// Addr is host:port of the redis server. Empty disables the product
	// cache.
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

type AuthConfig struct {
	Secret   string   `yaml:"secret"`
	TokenTTL Duration `yaml:"token_ttl"`
}

type UploadsConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type WorkersConfig struct {
	OutboxInterval Duration `yaml:"outbox_interval"`
	SweepSchedule  string   `yaml:"sweep_schedule"`
	EventRetention Duration `yaml:"event_retention"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Redis: RedisConfig{TTL: Duration(5 * time.Minute)},
		Auth: AuthConfig{
			Secret:   "dev-secret",
			TokenTTL: Duration(24 * time.Hour),
		},
		Uploads: UploadsConfig{
			Dir:      "data/uploads",
			MaxBytes: 32 << 20,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Workers: WorkersConfig{
			OutboxInterval: Duration(5 * time.Second),
			SweepSchedule:  "@hourly",
			EventRetention: Duration(24 * time.Hour),
		},
		CORS: CORSConfig{AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"}},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}

// Load reads config.yaml from the working directory, falling back to the
// defaults when the file is absent. Environment overrides are applied in
// both cases.
func Load() (*Config, error) {
	return LoadFromPath("config.yaml")
}

// LoadFromPath reads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults stand.
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CATALOG_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CATALOG_DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("CATALOG_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CATALOG_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CATALOG_JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("CATALOG_UPLOAD_DIR"); v != "" {
		c.Uploads.Dir = v
	}
	if v := os.Getenv("CATALOG_UPLOAD_MAX_BYTES"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Uploads.MaxBytes = parsed
		}
	}
	if v := os.Getenv("CATALOG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CATALOG_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := make([]string, 0)
		for _, origin := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		c.CORS.AllowedOrigins = origins
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Uploads.MaxBytes < 0 {
		return fmt.Errorf("uploads.max_bytes must not be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if c.Workers.OutboxInterval <= 0 {
		return fmt.Errorf("workers.outbox_interval must be positive")
	}
	return nil
}
