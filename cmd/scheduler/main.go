package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-dayplan-bot/internal/adapters/repo"
	"tg-dayplan-bot/internal/adapters/telegram"
	"tg-dayplan-bot/internal/domain"
	"tg-dayplan-bot/internal/infra/cache"
	"tg-dayplan-bot/internal/infra/config"
	"tg-dayplan-bot/internal/infra/db"
	"tg-dayplan-bot/internal/infra/log"
	"tg-dayplan-bot/internal/infra/metrics"
	"tg-dayplan-bot/internal/usecase/remind"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("scheduler: неизвестный часовой пояс")
	}
	time.Local = loc

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	var dedup domain.Cache
	if cfg.RedisAddr != "" {
		dedup = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	botAPI, err := telegram.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось создать бота")
	}
	transport := telegram.NewTransport(botAPI, logger)

	opts, err := schedulerOptions(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: некорректная конфигурация")
	}

	svc := remind.NewService(repoAdapter, repoAdapter, transport, dedup, logger,
		remind.NewRandPicker(time.Now().UnixNano()), opts)
	sched := remind.NewScheduler(svc, repoAdapter, logger, clock.New(), opts.Granularity, cfg.Scheduler.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-stop
		cancel()
	}()

	logger.Info().Dur("granularity", opts.Granularity).Msg("scheduler: запуск")
	sched.Run(ctx)
}

func schedulerOptions(cfg config.AppConfig) (remind.Options, error) {
	from, err := domain.ParseClockTime(cfg.Scheduler.WorkWindowFrom)
	if err != nil {
		return remind.Options{}, err
	}
	to, err := domain.ParseClockTime(cfg.Scheduler.WorkWindowTo)
	if err != nil {
		return remind.Options{}, err
	}
	checkin, err := domain.ParseClockTime(cfg.Scheduler.MetricCheckin)
	if err != nil {
		return remind.Options{}, err
	}
	return remind.Options{
		Granularity:   time.Duration(cfg.Scheduler.GranularityMin) * time.Minute,
		WorkWindow:    remind.Window{From: from, To: to},
		MetricCheckin: checkin,
		WorkEnabled:   cfg.Scheduler.WorkEnabled,
		PlanEnabled:   cfg.Scheduler.PlanEnabled,
		DailyEnabled:  cfg.Scheduler.DailyEnabled,
		MetricEnabled: cfg.Scheduler.MetricEnabled,
	}, nil
}
