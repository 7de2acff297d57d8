// Package config loads relay settings from an optional YAML file and the
// environment. Environment variables win over file values; a .env file in the
// working directory is loaded first when present.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Host            string           `yaml:"host"`
	Port            int              `yaml:"port"`
	Log             LogConfig        `yaml:"log"`
	CORSOrigins     []string         `yaml:"cors_origins"`
	Connection      ConnectionConfig `yaml:"connection"`
	Redis           RedisConfig      `yaml:"redis"`
	ShutdownTimeout time.Duration    `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables a size-rotated copy of the log next to stdout.
	File string `yaml:"file"`
}

type ConnectionConfig struct {
	MaxMessageSize int64   `yaml:"max_message_size"`
	SendBuffer     int     `yaml:"send_buffer"`
	RateLimit      float64 `yaml:"rate_limit"`
	RateBurst      int     `yaml:"rate_burst"`
}

// RedisConfig enables fan-out between relay instances when URL is set.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

func Default() *Config {
	return &Config{
		Port: 3000,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		CORSOrigins: []string{"*"},
		Connection: ConnectionConfig{
			MaxMessageSize: 4096,
			SendBuffer:     256,
			RateBurst:      100,
		},
		Redis: RedisConfig{
			Channel: "locshare:relay",
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// RELAY_CONFIG, then environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := Default()
	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// loadFile reads a YAML file, expanding ${VAR} references first.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	loadEnvString(&c.Host, "HOST")
	if err := loadEnvInt(&c.Port, "PORT"); err != nil {
		return err
	}
	loadEnvString(&c.Log.Level, "LOG_LEVEL")
	loadEnvString(&c.Log.Format, "LOG_FORMAT")
	loadEnvString(&c.Log.File, "LOG_FILE")
	loadEnvStringSlice(&c.CORSOrigins, "CORS_ORIGINS")
	if err := loadEnvInt64(&c.Connection.MaxMessageSize, "MAX_MESSAGE_SIZE"); err != nil {
		return err
	}
	if err := loadEnvInt(&c.Connection.SendBuffer, "SEND_BUFFER"); err != nil {
		return err
	}
	if err := loadEnvFloat(&c.Connection.RateLimit, "RATE_LIMIT"); err != nil {
		return err
	}
	if err := loadEnvInt(&c.Connection.RateBurst, "RATE_BURST"); err != nil {
		return err
	}
	loadEnvString(&c.Redis.URL, "REDIS_URL")
	loadEnvString(&c.Redis.Channel, "REDIS_CHANNEL")
	return loadEnvDuration(&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT")
}

func loadEnvString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func loadEnvStringSlice(target *[]string, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*target = out
}

func loadEnvInt(target *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func loadEnvInt64(target *int64, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func loadEnvFloat(target *float64, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number value for %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func loadEnvDuration(target *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration value for %s: %w", key, err)
	}
	*target = parsed
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "PORT must be between 1 and 65535")
	}
	if levels := []string{"debug", "info", "warn", "error"}; !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(levels, ", ")))
	}
	if formats := []string{"text", "json"}; !slices.Contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(formats, ", ")))
	}
	if len(c.CORSOrigins) == 0 {
		errs = append(errs, "CORS_ORIGINS must not be empty")
	}
	if c.Connection.MaxMessageSize <= 0 {
		errs = append(errs, "MAX_MESSAGE_SIZE must be positive")
	}
	if c.Connection.SendBuffer < 1 {
		errs = append(errs, "SEND_BUFFER must be at least 1")
	}
	if c.Connection.RateLimit < 0 {
		errs = append(errs, "RATE_LIMIT must not be negative")
	}
	if c.Connection.RateLimit > 0 && c.Connection.RateBurst < 1 {
		errs = append(errs, "RATE_BURST must be at least 1 when RATE_LIMIT is set")
	}
	if c.Redis.URL != "" && c.Redis.Channel == "" {
		errs = append(errs, "REDIS_CHANNEL must be set when REDIS_URL is set")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AllowsOrigin reports whether a browser origin may open a relay connection.
// Requests without an Origin header, such as native clients, are always allowed.
func (c *Config) AllowsOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (c *Config) ClusterEnabled() bool {
	return c.Redis.URL != ""
}
