package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"tg-dayplan-bot/internal/domain"
	"tg-dayplan-bot/internal/usecase/notes"
	"tg-dayplan-bot/internal/usecase/plan"
	"tg-dayplan-bot/internal/usecase/track"
)

type stubStore struct {
	prefs     map[int64]*domain.Prefs
	saved     []domain.Prefs
	items     []domain.PlanItem
	completed []int64
	entries   []domain.MetricEntry
	goals     []domain.Goal
	notes     []domain.Note
}

func newStubStore() *stubStore {
	return &stubStore{prefs: make(map[int64]*domain.Prefs)}
}

func (s *stubStore) UpsertByTGID(tgUserID, chatID int64, firstName string) (domain.User, error) {
	return domain.User{ID: tgUserID, TGUserID: tgUserID, ChatID: chatID, FirstName: firstName}, nil
}
func (s *stubStore) GetByTGID(tgUserID int64) (domain.User, error) {
	return domain.User{ID: tgUserID, TGUserID: tgUserID}, nil
}
func (s *stubStore) ListSubscribed(context.Context) ([]domain.User, error) { return nil, nil }
func (s *stubStore) GetPrefs(_ context.Context, userID int64) (*domain.Prefs, error) {
	return s.prefs[userID], nil
}
func (s *stubStore) SavePrefs(_ context.Context, prefs domain.Prefs) error {
	copied := prefs
	s.prefs[prefs.UserID] = &copied
	s.saved = append(s.saved, prefs)
	return nil
}

func (s *stubStore) ListForDate(context.Context, int64, time.Time) ([]domain.PlanItem, error) {
	return s.items, nil
}
func (s *stubStore) ListForRange(context.Context, int64, time.Time, time.Time) ([]domain.PlanItem, error) {
	return s.items, nil
}
func (s *stubStore) SetCompleted(_ context.Context, _ int64, itemID int64, completed bool) error {
	for i := range s.items {
		if s.items[i].ID == itemID {
			s.items[i].Completed = completed
			s.completed = append(s.completed, itemID)
			return nil
		}
	}
	return fmt.Errorf("%w: пункт плана %d", domain.ErrNotFound, itemID)
}

func (s *stubStore) SaveEntry(_ context.Context, entry domain.MetricEntry) (domain.MetricEntry, error) {
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return entry, nil
}
func (s *stubStore) ListEntriesForDate(context.Context, int64, time.Time) ([]domain.MetricEntry, error) {
	return s.entries, nil
}
func (s *stubStore) UpsertGoal(_ context.Context, goal domain.Goal) error {
	s.goals = append(s.goals, goal)
	return nil
}
func (s *stubStore) ListGoals(context.Context, int64) ([]domain.Goal, error) { return s.goals, nil }

func (s *stubStore) AddNote(_ context.Context, note domain.Note) (domain.Note, error) {
	note.ID = int64(len(s.notes) + 1)
	s.notes = append(s.notes, note)
	return note, nil
}
func (s *stubStore) ListNotesForDate(context.Context, int64, time.Time) ([]domain.Note, error) {
	return s.notes, nil
}

func newTestMenu(store *stubStore) *Menu {
	return NewMenu(plan.NewService(store), track.NewService(store), notes.NewService(store), store)
}

func allStates() []State {
	return []State{
		StateMain, StateSchedule, StateScheduleToday, StateScheduleWeek, StateScheduleMonth,
		StateGoals, StateMetrics, StateMetricPrompt, StateNotes, StateSettings, StateHelp,
	}
}

func TestEveryScreenReachesMainInOneTransition(t *testing.T) {
	for _, state := range allStates() {
		if state == StateMain {
			continue
		}
		if _, ok := Transition(MenuState{Name: state}, MenuState{Name: StateMain}); !ok {
			t.Fatalf("с экрана %s нет перехода в главное меню", state)
		}
	}
}

func TestTransitionTableIsExhaustive(t *testing.T) {
	for _, state := range allStates() {
		if _, ok := navTransitions[state]; !ok {
			t.Fatalf("экран %s отсутствует в таблице переходов", state)
		}
	}
}

func TestTransitionRejectsUndefinedPair(t *testing.T) {
	if _, ok := Transition(MenuState{Name: StateMain}, MenuState{Name: StateMetricPrompt}); ok {
		t.Fatalf("прыжок main -> metric_prompt не объявлен и должен отклоняться")
	}
	if _, ok := Transition(MenuState{Name: StateNotes}, MenuState{Name: StateSettings}); ok {
		t.Fatalf("прыжок между соседними ветками не объявлен и должен отклоняться")
	}
	if _, ok := Transition(MenuState{Name: State("ghost")}, MenuState{Name: StateMain}); ok {
		t.Fatalf("неизвестное текущее состояние должно отклоняться")
	}
}

func TestParseNavRoundtrip(t *testing.T) {
	action := navAction(StateMetrics, MenuState{Name: StateMetricPrompt, Arg: "mood"})
	from, to, ok := ParseNav(action)
	if !ok {
		t.Fatalf("не разобрали собственную кодировку %q", action)
	}
	if from.Name != StateMetrics || to.Name != StateMetricPrompt || to.Arg != "mood" {
		t.Fatalf("раскодировали не то: from=%v to=%v", from, to)
	}

	if _, _, ok := ParseNav("done:5"); ok {
		t.Fatalf("чужие callback-данные не должны разбираться как навигация")
	}
}

func TestRenderScheduleTodayProgressAndButtons(t *testing.T) {
	nine := domain.ClockTime{Hour: 9}
	store := newStubStore()
	store.items = []domain.PlanItem{
		{ID: 1, Title: "созвон", At: &nine},
		{ID: 2, Title: "отчёт", Completed: true},
	}
	menu := newTestMenu(store)

	text, buttons, err := menu.Render(context.Background(), domain.User{ID: 1}, MenuState{Name: StateScheduleToday}, time.Now())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(text, "1/2 выполнено") {
		t.Fatalf("ожидали счётчик прогресса, текст: %q", text)
	}

	var doneActions []string
	for _, row := range buttons {
		for _, b := range row {
			if strings.HasPrefix(b.Action, "done:") {
				doneActions = append(doneActions, b.Action)
			}
		}
	}
	// Кнопка закрытия есть только у открытого пункта и несёт стабильный ID.
	if len(doneActions) != 1 || doneActions[0] != "done:1" {
		t.Fatalf("ожидали одну кнопку done:1, получили %v", doneActions)
	}
}

func TestRenderButtonsRespectTransitionTable(t *testing.T) {
	store := newStubStore()
	store.items = []domain.PlanItem{{ID: 1, Title: "созвон"}}
	menu := newTestMenu(store)

	for _, state := range allStates() {
		ms := MenuState{Name: state}
		if state == StateMetricPrompt {
			ms.Arg = "mood"
		}
		_, buttons, err := menu.Render(context.Background(), domain.User{ID: 1}, ms, time.Now())
		if err != nil {
			t.Fatalf("экран %s: не ожидали ошибку: %v", state, err)
		}
		for _, row := range buttons {
			for _, b := range row {
				from, to, ok := ParseNav(b.Action)
				if !ok {
					continue
				}
				if from.Name != state {
					t.Fatalf("экран %s: кнопка несёт чужое исходное состояние %s", state, from.Name)
				}
				if _, ok := Transition(from, to); !ok {
					t.Fatalf("экран %s: кнопка ведёт в необъявленный переход %s -> %s", state, from.Name, to.Name)
				}
			}
		}
	}
}

func TestRenderUnknownScreen(t *testing.T) {
	menu := newTestMenu(newStubStore())
	_, _, err := menu.Render(context.Background(), domain.User{ID: 1}, MenuState{Name: State("ghost")}, time.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("неизвестный экран должен давать ErrNotFound, получили %v", err)
	}
}
