package remind

import (
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"

	"tg-dayplan-bot/internal/domain"
	"tg-dayplan-bot/internal/infra/metrics"
)

// Scheduler — процессный цикл тиков: Idle между тиками, Ticking во время
// обхода пользователей. Курсора нет: после рестарта цикл продолжает с
// ближайшей выровненной границы, пропущенные тики не доигрываются.
type Scheduler struct {
	svc     *Service
	users   domain.UserRepo
	log     zerolog.Logger
	clk     clock.Clock
	g       time.Duration
	workers int
}

// NewScheduler создаёт цикл планировщика.
func NewScheduler(svc *Service, users domain.UserRepo, log zerolog.Logger, clk clock.Clock, g time.Duration, workers int) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		svc:     svc,
		users:   users,
		log:     log,
		clk:     clk,
		g:       g,
		workers: workers,
	}
}

// Run крутит цикл до отмены контекста. Тики выровнены на кратные G от
// эпохи («следующая граница», а не «спать G после тика»), поэтому дрейф
// не накапливается. Начатый тик дорабатывает даже при отмене: остановка
// вступает в силу перед следующим тиком.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.clk.Now()
		next := now.Truncate(s.g).Add(s.g)
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler: остановка")
			return
		case <-s.clk.After(next.Sub(now)):
		}
		s.Tick(ctx, s.clk.Now())
	}
}

// Tick обходит всех подписанных пользователей. Ошибка одного пользователя
// логируется и не прерывает ни остальных, ни следующие тики.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	started := time.Now()
	users, err := s.users.ListSubscribed(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: ошибка выборки пользователей")
		return
	}
	metrics.TickUsers.Set(float64(len(users)))

	// Пул воркеров; каждого пользователя в тике обрабатывает ровно одна
	// горутина, поэтому отправки одному пользователю не перекрываются.
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(user domain.User) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Interface("panic", r).Int64("user", user.ID).Msg("scheduler: паника при обработке пользователя")
				}
			}()
			if err := s.svc.ProcessUser(ctx, user, now); err != nil {
				s.log.Error().Err(err).Int64("user", user.ID).Msg("scheduler: пользователь пропущен в этом тике")
			}
		}(user)
	}
	wg.Wait()
	metrics.TickSeconds.Observe(time.Since(started).Seconds())
}
