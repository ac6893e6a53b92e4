package remind

import (
	"time"

	"tg-dayplan-bot/internal/domain"
)

// Window — дневное окно активности для рабочих напоминаний.
type Window struct {
	From domain.ClockTime
	To   domain.ClockTime
}

// Contains сообщает, попадает ли время суток в окно [From, To).
// Окно может переходить через полночь (например, 22:00–06:00).
func (w Window) Contains(t domain.ClockTime) bool {
	return clockInWindow(t.Minutes(), w.From.Minutes(), w.To.Minutes())
}

// Bucket приводит «сейчас» к началу текущего интервала гранулярности G.
// Процесс мог стартовать посреди цикла, поэтому выравнивание всегда
// вычисляется от now, а не предполагается.
func Bucket(now time.Time, g time.Duration) time.Time {
	return now.Truncate(g)
}

// clockOf возвращает время суток для момента времени.
func clockOf(t time.Time) domain.ClockTime {
	return domain.ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// WorkDue сообщает, положено ли рабочее напоминание в этом тике:
// только на границе часа и только внутри окна активности.
func WorkDue(now time.Time, g time.Duration, w Window) bool {
	b := Bucket(now, g)
	if b.Minute() != 0 {
		return false
	}
	return w.Contains(clockOf(b))
}

// PlanWindow возвращает окно времён [from, to), пункты из которого
// напоминаются в этом тике. Окно сдвинуто вперёд на lead time G/2:
// тик 13:45 при G=30 покрывает [13:45, 14:15), так что пункт на 14:00
// напоминается за 15 минут. Соседние бакеты дают смежные окна, поэтому
// каждый пункт попадает ровно в один тик.
func PlanWindow(now time.Time, g time.Duration) (from, to domain.ClockTime) {
	b := Bucket(now, g).Add(g / 2)
	return clockOf(b), clockOf(b.Add(g))
}

// PlanDue отбирает невыполненные пункты, чьё время попадает в PlanWindow.
// Пустой план — не ошибка, просто нечего напоминать.
func PlanDue(items []domain.PlanItem, now time.Time, g time.Duration) []domain.PlanItem {
	from, to := PlanWindow(now, g)
	var due []domain.PlanItem
	for _, item := range items {
		if item.Completed || item.At == nil {
			continue
		}
		if clockInWindow(item.At.Minutes(), from.Minutes(), to.Minutes()) {
			due = append(due, item)
		}
	}
	return due
}

// clockInWindow проверяет попадание минут суток в полуинтервал [from, to),
// учитывая переход окна через полночь.
func clockInWindow(m, from, to int) bool {
	if to < from {
		return m >= from || m < to
	}
	return m >= from && m < to
}

// TimeDue сообщает, попадает ли настроенное время суток в текущий тик
// [bucket, bucket+G). Используется для ежедневных и метрических чек-инов.
func TimeDue(t domain.ClockTime, now time.Time, g time.Duration) bool {
	b := Bucket(now, g)
	from := clockOf(b).Minutes()
	to := from + int(g/time.Minute)
	return t.Minutes() >= from && t.Minutes() < to
}

// AnyTimeDue проверяет список настроенных времён.
func AnyTimeDue(times []domain.ClockTime, now time.Time, g time.Duration) bool {
	for _, t := range times {
		if TimeDue(t, now, g) {
			return true
		}
	}
	return false
}
