// Package config loads settings from an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/ambientwx/ambientwx/internal/provider/resilience"
)

// Configuration errors.
var (
	ErrMissingAPIKey         = errors.New("AMBIENT_API_KEY is required")
	ErrMissingApplicationKey = errors.New("AMBIENT_APPLICATION_KEY is required")
	ErrInvalidValue          = errors.New("invalid configuration value")
)

// Config holds all configuration for the ambientwx binaries.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	Ambient   AmbientConfig
	Telemetry TelemetryConfig
	Collector CollectorConfig
	PubSub    PubSubConfig

	// ArchiveEnabled turns on the PostgreSQL observation archive.
	ArchiveEnabled bool
}

// AmbientConfig holds the vendor API settings.
type AmbientConfig struct {
	APIKey         string
	ApplicationKey string
	MACAddress     string
	BaseURL        string
	APIVersion     int

	MaxAttempts    int
	BackoffFactor  time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// RateLimit is requests per second. Zero disables limiting.
	RateLimit float64

	// CircuitBreaker enables the circuit breaker on the vendor client.
	CircuitBreaker bool
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// CollectorConfig holds collector worker settings.
type CollectorConfig struct {
	Stations    []string
	Schedule    string
	Concurrency int
}

// PubSubConfig holds Pub/Sub trigger settings.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("app_port", "8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("ambient_api_key", "")
	v.SetDefault("ambient_application_key", "")
	v.SetDefault("ambient_mac_address", "")
	v.SetDefault("ambient_base_url", "https://rt.ambientweather.net")
	v.SetDefault("ambient_api_version", 1)
	v.SetDefault("ambient_max_attempts", 10)
	v.SetDefault("ambient_backoff_factor", "100ms")
	v.SetDefault("ambient_connect_timeout", "1s")
	v.SetDefault("ambient_read_timeout", "10s")
	v.SetDefault("ambient_rate_limit", 0)
	v.SetDefault("ambient_circuit_breaker", false)

	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4317")

	v.SetDefault("collect_stations", "")
	v.SetDefault("collect_schedule", "*/5 * * * *")
	v.SetDefault("collect_concurrency", 3)

	v.SetDefault("pubsub_project_id", "")
	v.SetDefault("pubsub_subscription", "")

	v.SetDefault("archive_enabled", false)
}

// Load reads configuration and validates the vendor keys.
// envFile may be empty or point to a missing file; environment variables
// always win over values from the file.
func Load(envFile string) (*Config, error) {
	cfg, err := LoadUnvalidated(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Ambient.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated reads configuration without requiring the vendor keys.
func LoadUnvalidated(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", envFile, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Env:      v.GetString("app_env"),
		Port:     v.GetString("app_port"),
		LogLevel: v.GetString("log_level"),
		Ambient: AmbientConfig{
			APIKey:         v.GetString("ambient_api_key"),
			ApplicationKey: v.GetString("ambient_application_key"),
			MACAddress:     v.GetString("ambient_mac_address"),
			BaseURL:        v.GetString("ambient_base_url"),
			APIVersion:     v.GetInt("ambient_api_version"),
			MaxAttempts:    v.GetInt("ambient_max_attempts"),
			RateLimit:      v.GetFloat64("ambient_rate_limit"),
			CircuitBreaker: v.GetBool("ambient_circuit_breaker"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("otel_enabled"),
			OTLPEndpoint: v.GetString("otel_exporter_otlp_endpoint"),
		},
		Collector: CollectorConfig{
			Stations:    splitList(v.GetString("collect_stations")),
			Schedule:    v.GetString("collect_schedule"),
			Concurrency: v.GetInt("collect_concurrency"),
		},
		PubSub: PubSubConfig{
			ProjectID:    v.GetString("pubsub_project_id"),
			Subscription: v.GetString("pubsub_subscription"),
		},
		ArchiveEnabled: v.GetBool("archive_enabled"),
	}

	var err error
	if cfg.Ambient.BackoffFactor, err = seconds(v, "ambient_backoff_factor"); err != nil {
		return nil, err
	}
	if cfg.Ambient.ConnectTimeout, err = seconds(v, "ambient_connect_timeout"); err != nil {
		return nil, err
	}
	if cfg.Ambient.ReadTimeout, err = seconds(v, "ambient_read_timeout"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that both vendor keys are set.
func (c AmbientConfig) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.ApplicationKey == "" {
		return ErrMissingApplicationKey
	}
	return nil
}

// ClientConfig builds the resilient HTTP client settings for the vendor API.
func (c AmbientConfig) ClientConfig(name string, logger zerolog.Logger) resilience.ClientConfig {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Logger = logger
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.BackoffFactor > 0 {
		cfg.BackoffFactor = c.BackoffFactor
	}
	if c.ConnectTimeout > 0 {
		cfg.ConnectTimeout = c.ConnectTimeout
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.RateLimit > 0 {
		cfg.RateLimit = rate.Limit(c.RateLimit)
		cfg.RateBurst = 1
	}
	if c.CircuitBreaker {
		breaker := resilience.DefaultCircuitBreakerConfig(name)
		cfg.CircuitBreaker = &breaker
	}
	return cfg
}

// seconds reads a duration given either as a Go duration ("100ms") or as
// plain seconds ("0.1").
func seconds(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, strings.ToUpper(key), raw)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
