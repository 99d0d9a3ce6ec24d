// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Quota         QuotaConfig        `mapstructure:"quota"`
	Engine        EngineConfig       `mapstructure:"engine"`
	Oracle        OracleConfig       `mapstructure:"oracle"`
	Submission    SubmissionConfig   `mapstructure:"submission"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Quota Configuration ---

// TierLimit describes the quota limit for one subscription tier.
type TierLimit struct {
	LimitPerWindow int    `mapstructure:"limit_per_window"`
	WindowKind     string `mapstructure:"window_kind"` // daily, weekly, monthly
}

// QuotaConfig holds the tier-to-limit table. Limits are static
// configuration, not logic.
type QuotaConfig struct {
	Tiers          map[string]TierLimit `mapstructure:"tiers"`
	StatusCacheTTL int                  `mapstructure:"status_cache_ttl"` // seconds
}

// --- Engine Configuration ---

// EngineConfig holds run-level settings for the orchestrator and the
// submission worker pool.
type EngineConfig struct {
	PoolSize         int `mapstructure:"pool_size"`          // concurrent submissions per run
	MaxBatchSize     int `mapstructure:"max_batch_size"`     // per-run candidate cap
	RunTimeout       int `mapstructure:"run_timeout"`        // milliseconds, whole run
	CallTimeout      int `mapstructure:"call_timeout"`       // milliseconds, single external call
	MaxAttempts      int `mapstructure:"max_attempts"`       // per-candidate submission attempts
	RetryBackoff     int `mapstructure:"retry_backoff"`      // milliseconds, initial backoff
	BreakerThreshold int `mapstructure:"breaker_threshold"`  // consecutive failures before short-circuit
	RunLockTTL       int `mapstructure:"run_lock_ttl"`       // seconds
}

// OracleConfig holds settings for the external scoring oracle.
type OracleConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// SubmissionConfig holds settings for the external submission channel.
type SubmissionConfig struct {
	Mode    string `mapstructure:"mode"` // "platform" or "email"
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds

	Email struct {
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
}

// NotificationConfig holds settings for the notification dispatcher.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
