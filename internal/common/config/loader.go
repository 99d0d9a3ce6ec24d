// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like ORACLE_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, ignored if not found
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries the usual .env locations so the binary works when
// launched from the repo root or from a package directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "autoapply-engine"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15000
	}

	if cfg.Database.Postgres.MaxConnections <= 0 {
		cfg.Database.Postgres.MaxConnections = 20
	}
	if cfg.Database.Postgres.MaxIdle <= 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "job_postings"
	}

	// Tier table defaults per product rules: free 10/week, weekly 10/day,
	// monthly 15/day, premium 30/day.
	if len(cfg.Quota.Tiers) == 0 {
		cfg.Quota.Tiers = map[string]TierLimit{
			"free":    {LimitPerWindow: 10, WindowKind: "weekly"},
			"weekly":  {LimitPerWindow: 10, WindowKind: "daily"},
			"monthly": {LimitPerWindow: 15, WindowKind: "daily"},
			"premium": {LimitPerWindow: 30, WindowKind: "daily"},
		}
	}
	if cfg.Quota.StatusCacheTTL <= 0 {
		cfg.Quota.StatusCacheTTL = 60
	}

	if cfg.Engine.PoolSize <= 0 {
		cfg.Engine.PoolSize = 3
	}
	if cfg.Engine.MaxBatchSize <= 0 {
		cfg.Engine.MaxBatchSize = 30
	}
	if cfg.Engine.RunTimeout <= 0 {
		cfg.Engine.RunTimeout = 300000
	}
	if cfg.Engine.CallTimeout <= 0 {
		cfg.Engine.CallTimeout = 15000
	}
	if cfg.Engine.MaxAttempts <= 0 {
		cfg.Engine.MaxAttempts = 3
	}
	if cfg.Engine.RetryBackoff <= 0 {
		cfg.Engine.RetryBackoff = 500
	}
	if cfg.Engine.BreakerThreshold <= 0 {
		cfg.Engine.BreakerThreshold = 5
	}
	if cfg.Engine.RunLockTTL <= 0 {
		cfg.Engine.RunLockTTL = 600
	}

	if cfg.Oracle.Timeout <= 0 {
		cfg.Oracle.Timeout = 10000
	}
	if cfg.Submission.Timeout <= 0 {
		cfg.Submission.Timeout = 15000
	}
	if cfg.Submission.Mode == "" {
		cfg.Submission.Mode = "platform"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	for tier, limit := range cfg.Quota.Tiers {
		if limit.LimitPerWindow <= 0 {
			return fmt.Errorf("quota tier %q has non-positive limit", tier)
		}
		switch limit.WindowKind {
		case "daily", "weekly", "monthly":
		default:
			return fmt.Errorf("quota tier %q has unknown window kind %q", tier, limit.WindowKind)
		}
	}

	// External call timeouts must stay inside the run deadline so a single
	// stuck dependency cannot consume the whole run.
	if cfg.Oracle.Timeout >= cfg.Engine.RunTimeout {
		return fmt.Errorf("oracle timeout %dms must be below run timeout %dms", cfg.Oracle.Timeout, cfg.Engine.RunTimeout)
	}
	if cfg.Submission.Timeout >= cfg.Engine.RunTimeout {
		return fmt.Errorf("submission timeout %dms must be below run timeout %dms", cfg.Submission.Timeout, cfg.Engine.RunTimeout)
	}

	return nil
}
