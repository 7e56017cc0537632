package main

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/getsentry/tickprof/internal/envutil"
)

type (
	ServiceConfig struct {
		Environment string `yaml:"environment" env:"TICKPROF_ENVIRONMENT" env-default:"development"`
		LogLevel    string `yaml:"log_level" env:"TICKPROF_LOG_LEVEL" env-default:"info"`
		SentryDSN   string `yaml:"sentry_dsn" env:"SENTRY_DSN"`
		Port        string `yaml:"port" env:"PORT" env-default:"8080"`

		SliceInterval time.Duration `yaml:"slice_interval" env:"TICKPROF_SLICE_INTERVAL" env-default:"1s"`
		// sim measures wall time, process measures the CPU time of the process
		Clock string `yaml:"clock" env:"TICKPROF_CLOCK" env-default:"sim"`

		StateURL string `yaml:"state_url" env:"TICKPROF_STATE_URL" env-default:"mem://"`
		StateKey string `yaml:"state_key" env:"TICKPROF_STATE_KEY"`

		Notifier     string   `yaml:"notifier" env:"TICKPROF_NOTIFIER" env-default:"log"`
		KafkaBrokers []string `yaml:"kafka_brokers" env:"TICKPROF_KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
		KafkaTopic   string   `yaml:"kafka_topic" env:"TICKPROF_KAFKA_TOPIC" env-default:"profiler-reports"`
		WebhookURL   string   `yaml:"webhook_url" env:"TICKPROF_WEBHOOK_URL"`

		TableBudget int `yaml:"table_budget" env:"TICKPROF_TABLE_BUDGET" env-default:"1000"`

		StartMode     string `yaml:"start_mode" env:"TICKPROF_START_MODE"`
		StartDuration int64  `yaml:"start_duration" env:"TICKPROF_START_DURATION"`
		StartFilter   string `yaml:"start_filter" env:"TICKPROF_START_FILTER"`

		Creeps int   `yaml:"creeps" env:"TICKPROF_CREEPS" env-default:"12"`
		Seed   int64 `yaml:"seed" env:"TICKPROF_SEED" env-default:"1"`
	}
)

// loadConfig reads the YAML file named by TICKPROF_CONFIG, if any, then the
// environment.
func loadConfig() (ServiceConfig, error) {
	var cfg ServiceConfig
	if path := envutil.GetEnvOrFallback("TICKPROF_CONFIG", ""); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
