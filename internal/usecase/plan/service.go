package plan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tg-dayplan-bot/internal/domain"
)

// Service отвечает за чтение плана и отметку выполнения.
type Service struct {
	plans domain.PlanRepo
}

// NewService создаёт сервис.
func NewService(plans domain.PlanRepo) *Service {
	return &Service{plans: plans}
}

// Order сортирует пункты по единому правилу: сначала пункты со временем по
// возрастанию, затем без времени, при равенстве — по идентификатору.
// Это же правило используется и при рендере списка, и при выполнении
// /complete N, иначе позиционная адресация закроет не тот пункт.
func Order(items []domain.PlanItem) []domain.PlanItem {
	sorted := append([]domain.PlanItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case a.At == nil && b.At == nil:
			return a.ID < b.ID
		case a.At == nil:
			return false
		case b.At == nil:
			return true
		case a.At.Minutes() != b.At.Minutes():
			return a.At.Minutes() < b.At.Minutes()
		default:
			return a.ID < b.ID
		}
	})
	return sorted
}

// ListToday возвращает упорядоченный план на дату.
func (s *Service) ListToday(ctx context.Context, userID int64, date time.Time) ([]domain.PlanItem, error) {
	items, err := s.plans.ListForDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("чтение плана: %w", err)
	}
	return Order(items), nil
}

// ListRange возвращает упорядоченный план на интервал дат [from, to].
func (s *Service) ListRange(ctx context.Context, userID int64, from, to time.Time) ([]domain.PlanItem, error) {
	items, err := s.plans.ListForRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("чтение плана: %w", err)
	}
	sorted := append([]domain.PlanItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return false
	})
	return sorted, nil
}

// CompleteByPosition закрывает пункт по его текущей 1-базной позиции в
// сегодняшнем списке. Позиция пересчитывается заново тем же правилом
// сортировки, что и при рендере; выход за границы — ErrNotFound, без
// каких-либо изменений.
func (s *Service) CompleteByPosition(ctx context.Context, userID int64, position int, date time.Time) (domain.PlanItem, error) {
	items, err := s.ListToday(ctx, userID, date)
	if err != nil {
		return domain.PlanItem{}, err
	}
	if position < 1 || position > len(items) {
		return domain.PlanItem{}, fmt.Errorf("%w: пункта с номером %d нет в сегодняшнем плане", domain.ErrNotFound, position)
	}
	item := items[position-1]
	if err := s.plans.SetCompleted(ctx, userID, item.ID, true); err != nil {
		return domain.PlanItem{}, fmt.Errorf("отметка выполнения: %w", err)
	}
	item.Completed = true
	return item, nil
}

// CompleteByID закрывает пункт по стабильному идентификатору. Этот путь
// используют кнопки меню и он предпочтителен: позиция может уехать между
// рендером и нажатием, идентификатор — нет.
func (s *Service) CompleteByID(ctx context.Context, userID, itemID int64) error {
	if err := s.plans.SetCompleted(ctx, userID, itemID, true); err != nil {
		return fmt.Errorf("отметка выполнения: %w", err)
	}
	return nil
}
