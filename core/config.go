package core

import (
	"fmt"
	"strings"
	"time"
)

type HTTPConfig struct {
	Addr            string   `koanf:"addr" mapstructure:"addr"`
	ReadTimeout     string   `koanf:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    string   `koanf:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout string   `koanf:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string `koanf:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS    float64  `koanf:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst  int      `koanf:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	BodyLimitBytes  int64    `koanf:"body_limit_bytes" mapstructure:"body_limit_bytes"`
}

type DatabaseConfig struct {
	Driver      string `koanf:"driver" mapstructure:"driver"`
	DSN         string `koanf:"dsn" mapstructure:"dsn"`
	Debug       bool   `koanf:"debug" mapstructure:"debug"`
	PingTimeout string `koanf:"ping_timeout" mapstructure:"ping_timeout"`
	AutoMigrate bool   `koanf:"auto_migrate" mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	SigningKey          string   `koanf:"signing_key" mapstructure:"signing_key"`
	Issuer              string   `koanf:"issuer" mapstructure:"issuer"`
	Audience            string   `koanf:"audience" mapstructure:"audience"`
	AccessTTL           string   `koanf:"access_ttl" mapstructure:"access_ttl"`
	RefreshTTL          string   `koanf:"refresh_ttl" mapstructure:"refresh_ttl"`
	ServiceAPIKeyHashes []string `koanf:"service_api_key_hashes" mapstructure:"service_api_key_hashes"`
	PurgeSchedule       string   `koanf:"purge_schedule" mapstructure:"purge_schedule"`
}

type ApplicationsConfig struct {
	ApprovalThreshold  int `koanf:"approval_threshold" mapstructure:"approval_threshold"`
	RejectionThreshold int `koanf:"rejection_threshold" mapstructure:"rejection_threshold"`
}

type WebhooksConfig struct {
	MaxAttempts    int    `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff string `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     string `koanf:"max_backoff" mapstructure:"max_backoff"`
	RequestTimeout string `koanf:"request_timeout" mapstructure:"request_timeout"`
	SecretKey      string `koanf:"secret_key" mapstructure:"secret_key"`
	SweepSchedule  string `koanf:"sweep_schedule" mapstructure:"sweep_schedule"`
	SweepBatchSize int    `koanf:"sweep_batch_size" mapstructure:"sweep_batch_size"`
	Workers        int    `koanf:"workers" mapstructure:"workers"`
}

type LogsConfig struct {
	RetentionDays int    `koanf:"retention_days" mapstructure:"retention_days"`
	PruneSchedule string `koanf:"prune_schedule" mapstructure:"prune_schedule"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" mapstructure:"level"`
	Format string `koanf:"format" mapstructure:"format"`
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	HTTP         HTTPConfig         `koanf:"http" mapstructure:"http"`
	Database     DatabaseConfig     `koanf:"database" mapstructure:"database"`
	Auth         AuthConfig         `koanf:"auth" mapstructure:"auth"`
	Applications ApplicationsConfig `koanf:"applications" mapstructure:"applications"`
	Webhooks     WebhooksConfig     `koanf:"webhooks" mapstructure:"webhooks"`
	Logs         LogsConfig         `koanf:"logs" mapstructure:"logs"`
	Logging      LoggingConfig      `koanf:"logging" mapstructure:"logging"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "community",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
			RateLimitRPS:    20,
			RateLimitBurst:  40,
			BodyLimitBytes:  1 << 20,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "file:community.db?cache=shared&_foreign_keys=on",
			PingTimeout: "5s",
		},
		Auth: AuthConfig{
			Issuer:        "community",
			Audience:      "community-api",
			AccessTTL:     "15m",
			RefreshTTL:    "720h",
			PurgeSchedule: "@hourly",
		},
		Applications: ApplicationsConfig{
			ApprovalThreshold:  3,
			RejectionThreshold: 3,
		},
		Webhooks: WebhooksConfig{
			MaxAttempts:    8,
			InitialBackoff: "1s",
			MaxBackoff:     "30s",
			RequestTimeout: "10s",
			SweepSchedule:  "@every 30s",
			SweepBatchSize: 50,
			Workers:        4,
		},
		Logs: LogsConfig{
			RetentionDays: 30,
			PruneSchedule: "@daily",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	durations := map[string]string{
		"http.read_timeout":        c.HTTP.ReadTimeout,
		"http.write_timeout":       c.HTTP.WriteTimeout,
		"http.shutdown_timeout":    c.HTTP.ShutdownTimeout,
		"database.ping_timeout":    c.Database.PingTimeout,
		"auth.access_ttl":          c.Auth.AccessTTL,
		"auth.refresh_ttl":         c.Auth.RefreshTTL,
		"webhooks.initial_backoff": c.Webhooks.InitialBackoff,
		"webhooks.max_backoff":     c.Webhooks.MaxBackoff,
		"webhooks.request_timeout": c.Webhooks.RequestTimeout,
	}
	for key, value := range durations {
		if strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("core: %s is not a valid duration: %w", key, err)
		}
		if parsed < 0 {
			return fmt.Errorf("core: %s must not be negative", key)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", "sqlite", "sqlite3", "postgres", "pg":
	default:
		return fmt.Errorf("core: database.driver %q is not supported", c.Database.Driver)
	}
	if key := strings.TrimSpace(c.Auth.SigningKey); key != "" && len(key) < 32 {
		return fmt.Errorf("core: auth.signing_key must be at least 32 bytes")
	}
	if c.Applications.ApprovalThreshold < 0 || c.Applications.RejectionThreshold < 0 {
		return fmt.Errorf("core: application thresholds must not be negative")
	}
	if c.Webhooks.MaxAttempts < 0 {
		return fmt.Errorf("core: webhooks.max_attempts must not be negative")
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return fmt.Errorf("core: http rate limit must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "json", "console":
	default:
		return fmt.Errorf("core: logging.format %q is not supported", c.Logging.Format)
	}
	return nil
}

// DatabaseDialect normalizes the configured driver to "postgres" or "sqlite".
func (c DatabaseConfig) DatabaseDialect() string {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "postgres", "pg":
		return "postgres"
	default:
		return "sqlite"
	}
}

func (c DatabaseConfig) PingTimeoutDuration() time.Duration {
	return durationOr(c.PingTimeout, 5*time.Second)
}

func (c HTTPConfig) ReadTimeoutDuration() time.Duration {
	return durationOr(c.ReadTimeout, 15*time.Second)
}

func (c HTTPConfig) WriteTimeoutDuration() time.Duration {
	return durationOr(c.WriteTimeout, 30*time.Second)
}

func (c HTTPConfig) ShutdownTimeoutDuration() time.Duration {
	return durationOr(c.ShutdownTimeout, 10*time.Second)
}

func (c AuthConfig) AccessTTLDuration() time.Duration {
	return durationOr(c.AccessTTL, 15*time.Minute)
}

func (c AuthConfig) RefreshTTLDuration() time.Duration {
	return durationOr(c.RefreshTTL, 30*24*time.Hour)
}

func (c WebhooksConfig) InitialBackoffDuration() time.Duration {
	return durationOr(c.InitialBackoff, time.Second)
}

func (c WebhooksConfig) MaxBackoffDuration() time.Duration {
	return durationOr(c.MaxBackoff, 30*time.Second)
}

func (c WebhooksConfig) RequestTimeoutDuration() time.Duration {
	return durationOr(c.RequestTimeout, 10*time.Second)
}

func (c WebhooksConfig) MaxAttemptsOrDefault() int {
	if c.MaxAttempts <= 0 {
		return 8
	}
	return c.MaxAttempts
}

func (c ApplicationsConfig) approvalThreshold() int {
	if c.ApprovalThreshold <= 0 {
		return 3
	}
	return c.ApprovalThreshold
}

func (c ApplicationsConfig) rejectionThreshold() int {
	if c.RejectionThreshold <= 0 {
		return 3
	}
	return c.RejectionThreshold
}

func durationOr(value string, fallback time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
