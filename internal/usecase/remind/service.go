package remind

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-dayplan-bot/internal/domain"
	"tg-dayplan-bot/internal/infra/metrics"
)

const dispatchTimeout = 10 * time.Second

// Options задаёт параметры движка напоминаний. Читаются один раз на старте.
type Options struct {
	Granularity   time.Duration
	WorkWindow    Window
	MetricCheckin domain.ClockTime

	WorkEnabled   bool
	PlanEnabled   bool
	DailyEnabled  bool
	MetricEnabled bool
}

// Service оценивает «должность» напоминаний для пользователя и отправляет их.
type Service struct {
	users     domain.UserRepo
	plans     domain.PlanRepo
	transport domain.Transport
	cache     domain.Cache
	log       zerolog.Logger
	pick      Picker
	opts      Options
}

// NewService создаёт движок напоминаний. cache может быть nil — тогда
// защита от повторной отправки опирается только на бакет тика.
func NewService(users domain.UserRepo, plans domain.PlanRepo, transport domain.Transport, cache domain.Cache, log zerolog.Logger, pick Picker, opts Options) *Service {
	return &Service{
		users:     users,
		plans:     plans,
		transport: transport,
		cache:     cache,
		log:       log,
		pick:      pick,
		opts:      opts,
	}
}

// ProcessUser выполняет проверки всех классов для одного пользователя.
// Ошибка хранилища прерывает обработку только этого пользователя в тике.
func (s *Service) ProcessUser(ctx context.Context, user domain.User, now time.Time) error {
	prefs, err := s.users.GetPrefs(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("чтение настроек: %w", err)
	}

	if s.opts.WorkEnabled && WorkDue(now, s.opts.Granularity, s.opts.WorkWindow) && Allowed(prefs, domain.ClassWork) {
		s.dispatch(ctx, user, domain.ClassWork, now, PickPrompt(s.pick))
	}

	var items []domain.PlanItem
	needPlans := s.opts.PlanEnabled || s.opts.DailyEnabled
	if needPlans {
		items, err = s.plans.ListForDate(ctx, user.ID, now)
		if err != nil {
			return fmt.Errorf("чтение плана: %w", err)
		}
	}

	if s.opts.PlanEnabled && Allowed(prefs, domain.ClassPlan) {
		for _, item := range PlanDue(items, now, s.opts.Granularity) {
			s.dispatch(ctx, user, domain.ClassPlan, now, planReminderText(item, now))
		}
	}

	if s.opts.DailyEnabled && Allowed(prefs, domain.ClassDaily) {
		times := domain.DefaultPrefs(user.ID).ReminderTimes
		if prefs != nil {
			times = prefs.ReminderTimes
		}
		if AnyTimeDue(times, now, s.opts.Granularity) {
			s.dispatch(ctx, user, domain.ClassDaily, now, dailyCheckinText(items))
		}
	}

	if s.opts.MetricEnabled && Allowed(prefs, domain.ClassMetric) && TimeDue(s.opts.MetricCheckin, now, s.opts.Granularity) {
		s.dispatch(ctx, user, domain.ClassMetric, now, metricCheckinText())
	}

	return nil
}

// dispatch отправляет одно напоминание. Ошибка транспорта логируется и не
// всплывает: сбой у одного пользователя не мешает остальным, повторов в
// рамках тика нет.
func (s *Service) dispatch(ctx context.Context, user domain.User, class domain.NotificationClass, now time.Time, text string) {
	event := domain.DispatchEvent{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Class:  class,
		Bucket: Bucket(now, s.opts.Granularity),
	}

	send := func() error {
		sendCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
		defer cancel()
		_, err := s.transport.Send(sendCtx, user.ChatID, text, nil)
		return err
	}

	var err error
	if s.cache != nil {
		// Межрепличный замок: тот же кортеж (класс, пользователь, бакет)
		// отправляется не более одного раза, даже если тикают две реплики.
		key := fmt.Sprintf("dispatch:%s:%d:%d", class, user.ID, event.Bucket.Unix())
		err = s.cache.Once(key, 2*s.opts.Granularity, send)
	} else {
		err = send()
	}
	if err != nil {
		metrics.IncDispatchError(string(class))
		s.log.Error().Err(err).
			Str("event", event.ID).
			Int64("user", user.ID).
			Str("class", string(class)).
			Msg("не удалось отправить напоминание")
		return
	}
	metrics.IncReminderSent(string(class))
	s.log.Debug().Str("event", event.ID).Int64("user", user.ID).Str("class", string(class)).Msg("напоминание отправлено")
}

func planReminderText(item domain.PlanItem, now time.Time) string {
	var b strings.Builder
	if item.At != nil {
		lead := item.At.Minutes() - (now.Hour()*60 + now.Minute())
		if lead < 0 {
			lead += 24 * 60
		}
		fmt.Fprintf(&b, "⏰ Через %d минут: %s (%s)", lead, item.Title, item.At)
	} else {
		fmt.Fprintf(&b, "⏰ Скоро: %s", item.Title)
	}
	if item.Description != "" {
		b.WriteString("\n")
		b.WriteString(item.Description)
	}
	return b.String()
}

func dailyCheckinText(items []domain.PlanItem) string {
	pending := 0
	for _, item := range items {
		if !item.Completed {
			pending++
		}
	}
	if len(items) == 0 {
		return "🗓 На сегодня планов нет. Загляните в /menu, чтобы свериться с целями."
	}
	return fmt.Sprintf("🗓 В плане на сегодня %d пунктов, из них открыто %d. Посмотреть: /today", len(items), pending)
}

func metricCheckinText() string {
	return "📈 Как прошёл день? Оцените настроение: /mood 1–10"
}
