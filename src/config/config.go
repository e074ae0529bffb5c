package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string
	LogLevel               string
	LogFile                string
	LogFormat              string
	RequestLoggingDisabled bool

	RateLimitDisabled bool
	RateLimitMax      int
	RateLimitWindow   time.Duration

	MaintenanceMode       bool
	MaxConcurrentRequests int64

	OrderbookDefaultDepth int
	OrderbookMaxDepth     int
	MetricsMaxLatencies   int

	// DrainInterval == 0 drains a market synchronously on every submission;
	// a positive interval switches to a periodic background drain instead.
	DrainInterval time.Duration

	StorePath    string // empty disables the trade ledger
	KafkaBrokers []string
	KafkaTopic   string

	ShutdownTimeout time.Duration
}

// Load reads an optional ./config.yaml and lets environment variables
// override every key (PORT, LOG_LEVEL, RATE_LIMIT_MAX, DRAIN_INTERVAL,
// STORE_PATH, KAFKA_BROKERS, ...). A missing config file is fine; a
// malformed one is not.
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_format", "")
	v.SetDefault("request_logging_disabled", false)
	v.SetDefault("rate_limit_disabled", false)
	v.SetDefault("rate_limit_max", 100)
	v.SetDefault("rate_limit_window", time.Second)
	v.SetDefault("maintenance_mode", false)
	v.SetDefault("max_concurrent_requests", 0)
	v.SetDefault("orderbook_default_depth", 10)
	v.SetDefault("orderbook_max_depth", 1000)
	v.SetDefault("metrics_max_latencies", 10000)
	v.SetDefault("drain_interval", time.Duration(0))
	v.SetDefault("store_path", "")
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_topic", "crossbook.trades")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic("failed to read config file: " + err.Error())
		}
	}

	return &Config{
		Port:                   v.GetString("port"),
		LogLevel:               v.GetString("log_level"),
		LogFile:                v.GetString("log_file"),
		LogFormat:              v.GetString("log_format"),
		RequestLoggingDisabled: v.GetBool("request_logging_disabled"),
		RateLimitDisabled:      v.GetBool("rate_limit_disabled"),
		RateLimitMax:           v.GetInt("rate_limit_max"),
		RateLimitWindow:        v.GetDuration("rate_limit_window"),
		MaintenanceMode:        v.GetBool("maintenance_mode"),
		MaxConcurrentRequests:  v.GetInt64("max_concurrent_requests"),
		OrderbookDefaultDepth:  v.GetInt("orderbook_default_depth"),
		OrderbookMaxDepth:      v.GetInt("orderbook_max_depth"),
		MetricsMaxLatencies:    v.GetInt("metrics_max_latencies"),
		DrainInterval:          v.GetDuration("drain_interval"),
		StorePath:              v.GetString("store_path"),
		KafkaBrokers:           v.GetStringSlice("kafka_brokers"),
		KafkaTopic:             v.GetString("kafka_topic"),
		ShutdownTimeout:        v.GetDuration("shutdown_timeout"),
	}
}
