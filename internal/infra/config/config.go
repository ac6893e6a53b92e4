package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Scheduler struct {
		// GranularityMin — шаг опроса планировщика G, в минутах.
		GranularityMin int    `envconfig:"SCHED_GRANULARITY_MIN" default:"30"`
		WorkWindowFrom string `envconfig:"SCHED_WORK_FROM" default:"09:00"`
		WorkWindowTo   string `envconfig:"SCHED_WORK_TO" default:"18:00"`
		MetricCheckin  string `envconfig:"SCHED_METRIC_CHECKIN" default:"21:00"`
		Workers        int    `envconfig:"SCHED_WORKERS" default:"8"`

		WorkEnabled   bool `envconfig:"SCHED_WORK_ENABLED" default:"true"`
		PlanEnabled   bool `envconfig:"SCHED_PLAN_ENABLED" default:"true"`
		DailyEnabled  bool `envconfig:"SCHED_DAILY_ENABLED" default:"true"`
		MetricEnabled bool `envconfig:"SCHED_METRIC_ENABLED" default:"true"`
	} `envconfig:""`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
