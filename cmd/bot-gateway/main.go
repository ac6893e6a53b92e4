package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"

	"tg-dayplan-bot/internal/adapters/bot"
	"tg-dayplan-bot/internal/adapters/repo"
	"tg-dayplan-bot/internal/adapters/telegram"
	"tg-dayplan-bot/internal/infra/config"
	"tg-dayplan-bot/internal/infra/db"
	"tg-dayplan-bot/internal/infra/log"
	"tg-dayplan-bot/internal/infra/metrics"
	"tg-dayplan-bot/internal/usecase/notes"
	"tg-dayplan-bot/internal/usecase/plan"
	"tg-dayplan-bot/internal/usecase/track"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	planService := plan.NewService(repoAdapter)
	trackService := track.NewService(repoAdapter)
	notesService := notes.NewService(repoAdapter)

	botAPI, err := telegram.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("некорректный адрес вебхука")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось зарегистрировать вебхук")
		}
	}

	transport := telegram.NewTransport(botAPI, logger)
	menu := bot.NewMenu(planService, trackService, notesService, repoAdapter)
	h := bot.NewHandler(transport, repoAdapter, planService, trackService, notesService, menu, clock.New(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("бот-гейтвей запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
