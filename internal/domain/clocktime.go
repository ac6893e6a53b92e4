package domain

import (
	"fmt"
	"time"
)

// ClockTime — время суток без даты, формат HH:MM.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime разбирает строку формата HH:MM (24-часовой).
func ParseClockTime(raw string) (ClockTime, error) {
	tm, err := time.Parse("15:04", raw)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: время должно быть в формате ЧЧ:ММ", ErrValidation)
	}
	return ClockTime{Hour: tm.Hour(), Minute: tm.Minute()}, nil
}

// String возвращает каноническое представление HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes возвращает количество минут с полуночи.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// On привязывает время суток к дате в указанной локации.
func (c ClockTime) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, date.Location())
}

// CollapseTimes убирает дубликаты, сохраняя порядок первого вхождения.
func CollapseTimes(times []ClockTime) []ClockTime {
	seen := make(map[int]struct{}, len(times))
	out := make([]ClockTime, 0, len(times))
	for _, t := range times {
		if _, ok := seen[t.Minutes()]; ok {
			continue
		}
		seen[t.Minutes()] = struct{}{}
		out = append(out, t)
	}
	return out
}
