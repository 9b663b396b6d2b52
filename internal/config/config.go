// Package config loads the coordinator's runtime configuration from
// environment variables (with CONFIG_FILE as an optional override),
// applying the same defaults documented for operators.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is every tunable the process needs at startup. Fields are
// grouped by the collaborator they configure.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	RedisHost            string
	RedisPort            int
	RedisDB              int
	RedisJobKeyPrefix    string
	RedisErrorKeyPrefix  string

	DataCacheURL string
	RouterURL    string

	MaxRetries       int
	RetrySleep       time.Duration
	CheckErrorsEvery int
	JobExpiry        time.Duration
	ErrorExpiry      time.Duration

	MaxConcurrentJobs int
	UpstreamTimeout   time.Duration

	LogLevel string
}

// Load reads configuration from the environment (and, if set,
// CONFIG_FILE) and applies defaults for everything left unset.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if f := v.GetString("config_file"); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %q: %w", f, err)
		}
	}

	cfg := Config{
		HTTPAddr:            v.GetString("http_addr"),
		MetricsAddr:         v.GetString("metrics_addr"),
		RedisHost:           v.GetString("redis_host"),
		RedisPort:           v.GetInt("redis_port"),
		RedisDB:             v.GetInt("redis_db"),
		RedisJobKeyPrefix:   v.GetString("redis_job_key_prefix"),
		RedisErrorKeyPrefix: v.GetString("redis_error_key_prefix"),
		DataCacheURL:        v.GetString("data_cache_url"),
		RouterURL:           v.GetString("router_url"),
		MaxRetries:          v.GetInt("max_retries"),
		RetrySleep:          v.GetDuration("retry_sleep"),
		CheckErrorsEvery:    v.GetInt("check_errors_every"),
		JobExpiry:           v.GetDuration("job_expiry"),
		ErrorExpiry:         v.GetDuration("error_expiry"),
		MaxConcurrentJobs:   v.GetInt("max_concurrent_jobs"),
		UpstreamTimeout:     v.GetDuration("upstream_timeout"),
		LogLevel:            v.GetString("log_level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_job_key_prefix", "jobman/jobs:")
	v.SetDefault("redis_error_key_prefix", "jobman/errors:")
	v.SetDefault("data_cache_url", "http://localhost:9100")
	v.SetDefault("router_url", "http://localhost:9200")
	v.SetDefault("max_retries", 50)
	v.SetDefault("retry_sleep", 5*time.Second)
	v.SetDefault("check_errors_every", 5)
	v.SetDefault("job_expiry", 400*time.Second)
	v.SetDefault("error_expiry", 400*time.Second)
	v.SetDefault("max_concurrent_jobs", 64)
	v.SetDefault("upstream_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
}

func (c Config) validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("max_concurrent_jobs must be positive, got %d", c.MaxConcurrentJobs)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.CheckErrorsEvery <= 0 {
		return fmt.Errorf("check_errors_every must be positive, got %d", c.CheckErrorsEvery)
	}
	return nil
}
