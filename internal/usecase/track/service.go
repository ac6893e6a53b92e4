package track

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tg-dayplan-bot/internal/domain"
)

// kindSpec описывает вид метрики: границы, единицу и целочисленность.
type kindSpec struct {
	Title   string
	Unit    string
	Min     float64
	Max     float64
	Integer bool
}

var kinds = map[domain.MetricKind]kindSpec{
	domain.MetricMood:   {Title: "Настроение", Unit: "/10", Min: 1, Max: 10, Integer: true},
	domain.MetricWater:  {Title: "Вода", Unit: "ст.", Min: 0, Max: 30, Integer: true},
	domain.MetricSleep:  {Title: "Сон", Unit: "ч", Min: 0, Max: 24},
	domain.MetricWeight: {Title: "Вес", Unit: "кг", Min: 20, Max: 500},
}

// KindTitle возвращает человекочитаемое название вида метрики.
func KindTitle(kind domain.MetricKind) string {
	if spec, ok := kinds[kind]; ok {
		return spec.Title
	}
	return string(kind)
}

// KindUnit возвращает единицу измерения вида метрики.
func KindUnit(kind domain.MetricKind) string {
	if spec, ok := kinds[kind]; ok {
		return spec.Unit
	}
	return ""
}

// ParseKind распознаёт вид метрики из текста команды.
func ParseKind(raw string) (domain.MetricKind, error) {
	kind := domain.MetricKind(raw)
	if _, ok := kinds[kind]; !ok {
		return "", fmt.Errorf("%w: неизвестная метрика %q", domain.ErrValidation, raw)
	}
	return kind, nil
}

// Service записывает наблюдения и цели.
type Service struct {
	metrics domain.MetricRepo
}

// NewService создаёт сервис.
func NewService(metrics domain.MetricRepo) *Service {
	return &Service{metrics: metrics}
}

// parseValue разбирает и валидирует значение. Вне диапазона или не по
// типу — ErrValidation с понятным пользователю текстом, записи нет.
func parseValue(kind domain.MetricKind, raw string) (float64, kindSpec, error) {
	spec, ok := kinds[kind]
	if !ok {
		return 0, kindSpec{}, fmt.Errorf("%w: неизвестная метрика %q", domain.ErrValidation, kind)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, spec, fmt.Errorf("%w: %s должно быть числом", domain.ErrValidation, spec.Title)
	}
	if spec.Integer && value != float64(int64(value)) {
		return 0, spec, fmt.Errorf("%w: %s должно быть целым числом", domain.ErrValidation, spec.Title)
	}
	if value < spec.Min || value > spec.Max {
		return 0, spec, fmt.Errorf("%w: %s должно быть в диапазоне %s–%s", domain.ErrValidation,
			spec.Title, formatValue(spec.Min, spec.Integer), formatValue(spec.Max, spec.Integer))
	}
	return value, spec, nil
}

// Record валидирует и сохраняет одно наблюдение.
func (s *Service) Record(ctx context.Context, userID int64, kind domain.MetricKind, raw string, now time.Time) (domain.MetricEntry, error) {
	value, spec, err := parseValue(kind, raw)
	if err != nil {
		return domain.MetricEntry{}, err
	}
	entry := domain.MetricEntry{
		UserID:     userID,
		Kind:       kind,
		Value:      value,
		Unit:       spec.Unit,
		RecordedAt: now,
	}
	saved, err := s.metrics.SaveEntry(ctx, entry)
	if err != nil {
		return domain.MetricEntry{}, fmt.Errorf("сохранение метрики: %w", err)
	}
	return saved, nil
}

// SetGoal валидирует и сохраняет числовую цель по виду метрики.
func (s *Service) SetGoal(ctx context.Context, userID int64, kind domain.MetricKind, raw string) (domain.Goal, error) {
	value, _, err := parseValue(kind, raw)
	if err != nil {
		return domain.Goal{}, err
	}
	goal := domain.Goal{UserID: userID, Kind: kind, Target: value}
	if err := s.metrics.UpsertGoal(ctx, goal); err != nil {
		return domain.Goal{}, fmt.Errorf("сохранение цели: %w", err)
	}
	return goal, nil
}

// ListGoals возвращает цели пользователя.
func (s *Service) ListGoals(ctx context.Context, userID int64) ([]domain.Goal, error) {
	goals, err := s.metrics.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("чтение целей: %w", err)
	}
	return goals, nil
}

// ListToday возвращает сегодняшние наблюдения.
func (s *Service) ListToday(ctx context.Context, userID int64, date time.Time) ([]domain.MetricEntry, error) {
	entries, err := s.metrics.ListEntriesForDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("чтение метрик: %w", err)
	}
	return entries, nil
}

// FormatValue возвращает значение с единицей для вывода пользователю.
func FormatValue(entry domain.MetricEntry) string {
	spec := kinds[entry.Kind]
	return formatValue(entry.Value, spec.Integer) + entry.Unit
}

func formatValue(v float64, integer bool) string {
	if integer {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
