// Package config loads EventPilot settings from defaults, an optional TOML
// file, and EVENTPILOT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/dukerupert/eventpilot/internal/notify"
)

const envPrefix = "EVENTPILOT_"

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Log       LogConfig       `toml:"log"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Kafka     KafkaConfig     `toml:"kafka"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Jobs      JobsConfig      `toml:"jobs"`
}

type ServerConfig struct {
	Port         int    `toml:"port"`
	ReadTimeout  string `toml:"read_timeout"`  // e.g., "5s"
	WriteTimeout string `toml:"write_timeout"` // e.g., "10s"
}

type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// RateLimitConfig bounds mutating API calls per client IP. With RedisAddr set
// the counters are shared through Redis instead of kept in memory.
type RateLimitConfig struct {
	Requests  int    `toml:"requests"`
	Window    string `toml:"window"`
	RedisAddr string `toml:"redis_addr"`
}

// KafkaConfig enables publishing change notifications when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type TelemetryConfig struct {
	Enabled      bool    `toml:"enabled"`
	OTLPEndpoint string  `toml:"otlp_endpoint"` // host:port of an OTLP/gRPC collector
	SampleRatio  float64 `toml:"sample_ratio"`
	ServiceName  string  `toml:"service_name"`
}

// JobsConfig holds cron specs for background maintenance. An empty spec
// disables the job.
type JobsConfig struct {
	PruneCron   string `toml:"prune_cron"`
	CleanupCron string `toml:"cleanup_cron"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  "5s",
			WriteTimeout: "10s",
		},
		Storage: StorageConfig{
			DBPath: "eventpilot.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		RateLimit: RateLimitConfig{
			Requests: 60,
			Window:   "1m",
		},
		Kafka: KafkaConfig{
			Topic: "eventpilot.changes",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
			ServiceName:  "eventpilot",
		},
		Jobs: JobsConfig{
			PruneCron:   "@every 1h",
			CleanupCron: "@every 10m",
		},
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "eventpilot", "config.toml")
}

// LoadFrom loads configuration from path. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(envPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		cfg.Server.Port = port
	}
	str("READ_TIMEOUT", &cfg.Server.ReadTimeout)
	str("WRITE_TIMEOUT", &cfg.Server.WriteTimeout)

	str("DB_PATH", &cfg.Storage.DBPath)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	if v := os.Getenv(envPrefix + "RATE_LIMIT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_REQUESTS: %w", envPrefix, err)
		}
		cfg.RateLimit.Requests = n
	}
	str("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	str("REDIS_ADDR", &cfg.RateLimit.RedisAddr)

	if v := os.Getenv(envPrefix + "KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = notify.SplitBrokers(v)
	}
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)

	if v := os.Getenv(envPrefix + "OTEL_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sOTEL_ENABLED: %w", envPrefix, err)
		}
		cfg.Telemetry.Enabled = enabled
	}
	str("OTEL_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	if v := os.Getenv(envPrefix + "OTEL_SAMPLE_RATIO"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sOTEL_SAMPLE_RATIO: %w", envPrefix, err)
		}
		cfg.Telemetry.SampleRatio = ratio
	}
	str("SERVICE_NAME", &cfg.Telemetry.ServiceName)

	str("PRUNE_CRON", &cfg.Jobs.PruneCron)
	str("CLEANUP_CRON", &cfg.Jobs.CleanupCron)
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	for name, v := range map[string]string{
		"server.read_timeout":  c.Server.ReadTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
		"rate_limit.window":    c.RateLimit.Window,
	} {
		if err := validateDuration(v, name); err != nil {
			return err
		}
	}
	if c.Storage.DBPath == "" {
		return errors.New("storage.db_path is required")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}

	if c.RateLimit.Requests <= 0 {
		return errors.New("rate_limit.requests must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio %v must be between 0 and 1", c.Telemetry.SampleRatio)
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return errors.New("telemetry.otlp_endpoint is required when telemetry is enabled")
	}

	for name, spec := range map[string]string{
		"jobs.prune_cron":   c.Jobs.PruneCron,
		"jobs.cleanup_cron": c.Jobs.CleanupCron,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func validateDuration(v, name string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// ReadTimeout returns server.read_timeout. Like the other duration
// accessors it assumes Validate has passed.
func (c *Config) ReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ReadTimeout)
	return d
}

func (c *Config) WriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.WriteTimeout)
	return d
}

func (c *Config) RateWindow() time.Duration {
	d, _ := time.ParseDuration(c.RateLimit.Window)
	return d
}
