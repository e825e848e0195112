// Package config loads process configuration from the environment,
// following the viper + mapstructure convention used across the
// retrieval pack rather than hand-rolled os.Getenv parsing.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of recognized options: spec.md §6's three
// (Port, MaxConcurrentTasks, LogLevel; PollInterval is fixed at 100ms
// by spec.md but exposed here for tunability) plus the additions
// SPEC_FULL.md names for the now file-backed store and optional event
// bus.
type Config struct {
	Port               int           `mapstructure:"port"`
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks"`
	LogLevel           string        `mapstructure:"log_level"`
	DBPath             string        `mapstructure:"db_path"`
	PollInterval       time.Duration `mapstructure:"-"`
	ShutdownTimeout    time.Duration `mapstructure:"-"`
	RedisAddr          string        `mapstructure:"redis_addr"`
}

// Load reads configuration from the environment, applying spec.md's
// defaults (PORT=3000, MAX_CONCURRENT_TASKS=3, LOG_LEVEL=info) before
// binding so the process runs with none of them set.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 3000)
	v.SetDefault("max_concurrent_tasks", 3)
	v.SetDefault("log_level", "info")
	v.SetDefault("db_path", "tasks.db")
	v.SetDefault("poll_interval_ms", 100)
	v.SetDefault("shutdown_timeout_ms", 10000)
	v.SetDefault("redis_addr", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind the exact spec.md env var names (viper's automatic
	// upper-casing of the key already matches these).
	for key, env := range map[string]string{
		"port":                 "PORT",
		"max_concurrent_tasks": "MAX_CONCURRENT_TASKS",
		"log_level":            "LOG_LEVEL",
		"db_path":              "DB_PATH",
		"poll_interval_ms":     "POLL_INTERVAL_MS",
		"shutdown_timeout_ms":  "SHUTDOWN_TIMEOUT_MS",
		"redis_addr":           "REDIS_ADDR",
	} {
		_ = v.BindEnv(key, env)
	}

	var cfg Config
	rawPoll := v.GetInt64("poll_interval_ms")
	rawShutdown := v.GetInt64("shutdown_timeout_ms")
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.PollInterval = time.Duration(rawPoll) * time.Millisecond
	cfg.ShutdownTimeout = time.Duration(rawShutdown) * time.Millisecond

	return &cfg, nil
}
