package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"

	"tg-dayplan-bot/internal/domain"
	"tg-dayplan-bot/internal/usecase/notes"
	"tg-dayplan-bot/internal/usecase/plan"
	"tg-dayplan-bot/internal/usecase/track"
)

type recordedEdit struct {
	messageID int
	text      string
	buttons   [][]domain.Button
}

type recordingTransport struct {
	sent      []string
	edits     []recordedEdit
	callbacks []string
	editErr   error
}

func (r *recordingTransport) Send(_ context.Context, _ int64, text string, _ [][]domain.Button) (int, error) {
	r.sent = append(r.sent, text)
	return len(r.sent), nil
}
func (r *recordingTransport) Edit(_ context.Context, _ int64, messageID int, text string, buttons [][]domain.Button) error {
	if r.editErr != nil {
		return r.editErr
	}
	r.edits = append(r.edits, recordedEdit{messageID: messageID, text: text, buttons: buttons})
	return nil
}
func (r *recordingTransport) AnswerCallback(_ context.Context, callbackID string) error {
	r.callbacks = append(r.callbacks, callbackID)
	return nil
}

func newTestHandler(store *stubStore, transport *recordingTransport) *Handler {
	planUC := plan.NewService(store)
	trackUC := track.NewService(store)
	notesUC := notes.NewService(store)
	menu := NewMenu(planUC, trackUC, notesUC, store)
	fake := clock.NewFake()
	fake.Set(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	return NewHandler(transport, store, planUC, trackUC, notesUC, menu, fake, zerolog.Nop())
}

func messageUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1, FirstName: "Ира"},
		Chat: &tgbotapi.Chat{ID: 10},
		Text: text,
	}}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: 1, FirstName: "Ира"},
		Message: &tgbotapi.Message{
			MessageID: 77,
			Chat:      &tgbotapi.Chat{ID: 10},
		},
		Data: data,
	}}
}

func TestUnknownCommandReplies(t *testing.T) {
	transport := &recordingTransport{}
	h := newTestHandler(newStubStore(), transport)

	h.HandleUpdate(context.Background(), messageUpdate("/frobnicate"))

	if len(transport.sent) != 1 || !strings.Contains(transport.sent[0], "Неизвестная команда") {
		t.Fatalf("ожидали ответ про неизвестную команду, получили %v", transport.sent)
	}
}

func TestCompleteOutOfRangeIsVisibleAndHarmless(t *testing.T) {
	store := newStubStore()
	store.items = []domain.PlanItem{{ID: 1, UserID: 1, Title: "созвон"}}
	transport := &recordingTransport{}
	h := newTestHandler(store, transport)

	h.HandleUpdate(context.Background(), messageUpdate("/complete 5"))

	if len(transport.sent) != 1 || !strings.Contains(transport.sent[0], "⚠️") {
		t.Fatalf("ожидали видимую ошибку, получили %v", transport.sent)
	}
	if len(store.completed) != 0 {
		t.Fatalf("выход за границы не должен ничего менять: %v", store.completed)
	}
}

func TestCompleteByPositionHappyPath(t *testing.T) {
	nine := domain.ClockTime{Hour: 9}
	store := newStubStore()
	store.items = []domain.PlanItem{
		{ID: 4, UserID: 1, Title: "без времени"},
		{ID: 2, UserID: 1, Title: "созвон", At: &nine},
	}
	transport := &recordingTransport{}
	h := newTestHandler(store, transport)

	// Позиция 1 — пункт со временем, несмотря на порядок в хранилище.
	h.HandleUpdate(context.Background(), messageUpdate("/complete 1"))

	if len(store.completed) != 1 || store.completed[0] != 2 {
		t.Fatalf("ожидали закрытие пункта 2, получили %v", store.completed)
	}
	if len(transport.sent) != 1 || !strings.Contains(transport.sent[0], "созвон") {
		t.Fatalf("ожидали подтверждение с названием пункта, получили %v", transport.sent)
	}
}

func TestMoodCommandValidation(t *testing.T) {
	store := newStubStore()
	transport := &recordingTransport{}
	h := newTestHandler(store, transport)

	h.HandleUpdate(context.Background(), messageUpdate("/mood 11"))
	if len(store.entries) != 0 {
		t.Fatalf("значение вне диапазона не должно записываться")
	}
	if len(transport.sent) != 1 || !strings.Contains(transport.sent[0], "⚠️") {
		t.Fatalf("ожидали видимую ошибку валидации, получили %v", transport.sent)
	}

	h.HandleUpdate(context.Background(), messageUpdate("/mood 8"))
	if len(store.entries) != 1 || store.entries[0].Value != 8 {
		t.Fatalf("ожидали запись настроения 8, получили %v", store.entries)
	}
	if !strings.Contains(transport.sent[1], "8/10") {
		t.Fatalf("подтверждение должно включать единицу /10, получили %q", transport.sent[1])
	}
}

func TestCallbackNavEditsInPlace(t *testing.T) {
	transport := &recordingTransport{}
	h := newTestHandler(newStubStore(), transport)

	h.HandleUpdate(context.Background(), callbackUpdate("nav:main:schedule"))

	if len(transport.edits) != 1 {
		t.Fatalf("навигация должна править сообщение на месте, edits=%d sent=%d", len(transport.edits), len(transport.sent))
	}
	if transport.edits[0].messageID != 77 {
		t.Fatalf("правка ушла не в то сообщение: %d", transport.edits[0].messageID)
	}
	if len(transport.callbacks) != 1 {
		t.Fatalf("нажатие кнопки должно подтверждаться")
	}
}

func TestCallbackNavRejectsUndefinedTransition(t *testing.T) {
	transport := &recordingTransport{}
	h := newTestHandler(newStubStore(), transport)

	h.HandleUpdate(context.Background(), callbackUpdate("nav:main:metric_prompt:mood"))

	if len(transport.edits) != 0 {
		t.Fatalf("необъявленный переход не должен менять экран")
	}
	if len(transport.sent) != 1 || !strings.Contains(transport.sent[0], "недоступен") {
		t.Fatalf("ожидали явный ответ про недопустимый переход, получили %v", transport.sent)
	}
	if len(transport.callbacks) != 1 {
		t.Fatalf("нажатие всё равно подтверждается")
	}
}

func TestCallbackDoneCompletesAndRerenders(t *testing.T) {
	store := newStubStore()
	store.items = []domain.PlanItem{{ID: 5, UserID: 1, Title: "созвон"}}
	transport := &recordingTransport{}
	h := newTestHandler(store, transport)

	h.HandleUpdate(context.Background(), callbackUpdate("done:5"))

	if len(store.completed) != 1 || store.completed[0] != 5 {
		t.Fatalf("ожидали закрытие пункта 5, получили %v", store.completed)
	}
	if len(transport.edits) != 1 || !strings.Contains(transport.edits[0].text, "1/1 выполнено") {
		t.Fatalf("экран должен перерисоваться с новым прогрессом: %v", transport.edits)
	}
}

func TestCallbackToggleFlipsPrefs(t *testing.T) {
	store := newStubStore()
	transport := &recordingTransport{}
	h := newTestHandler(store, transport)

	h.HandleUpdate(context.Background(), callbackUpdate("toggle:reminders"))

	if len(store.saved) != 1 {
		t.Fatalf("ожидали сохранение настроек, получили %d", len(store.saved))
	}
	// Настроек не было: стартуем с умолчаний (включено) и выключаем.
	if store.saved[0].RemindersEnabled {
		t.Fatalf("флаг должен был переключиться в выключено")
	}
	if !store.saved[0].NotificationsEnabled || !store.saved[0].MetricTrackingEnabled {
		t.Fatalf("остальные флаги должны остаться нетронутыми: %+v", store.saved[0])
	}
	if len(transport.edits) != 1 {
		t.Fatalf("экран настроек должен перерисоваться на месте")
	}
}

func TestMetricPromptFlow(t *testing.T) {
	store := newStubStore()
	transport := &recordingTransport{}
	h := newTestHandler(store, transport)

	h.HandleUpdate(context.Background(), callbackUpdate("nav:metrics:metric_prompt:mood"))
	if len(transport.edits) != 1 {
		t.Fatalf("ожидали экран запроса значения")
	}

	h.HandleUpdate(context.Background(), messageUpdate("8"))
	if len(store.entries) != 1 || store.entries[0].Kind != domain.MetricMood || store.entries[0].Value != 8 {
		t.Fatalf("ответ на запрос должен записать метрику, получили %v", store.entries)
	}

	// Ожидание одноразовое: следующий голый текст — уже не значение.
	h.HandleUpdate(context.Background(), messageUpdate("9"))
	if len(store.entries) != 1 {
		t.Fatalf("повторный текст не должен записываться без нового запроса")
	}
}

func TestCommandCancelsMetricPrompt(t *testing.T) {
	store := newStubStore()
	transport := &recordingTransport{}
	h := newTestHandler(store, transport)

	h.HandleUpdate(context.Background(), callbackUpdate("nav:metrics:metric_prompt:mood"))
	h.HandleUpdate(context.Background(), messageUpdate("/help"))

	// Команда сняла ожидание: голое число больше не значение метрики.
	h.HandleUpdate(context.Background(), messageUpdate("9"))
	if len(store.entries) != 0 {
		t.Fatalf("после команды ответ не должен записываться как метрика: %v", store.entries)
	}
}

func TestCommandLabelBoundsCardinality(t *testing.T) {
	if commandLabel("/mood") != "/mood" {
		t.Fatalf("известная команда считается под собственной меткой")
	}
	for _, raw := range []string{"/frobnicate", "/MOOD2", "/привет"} {
		if commandLabel(raw) != "unknown" {
			t.Fatalf("произвольный ввод %q должен считаться под меткой unknown", raw)
		}
	}
}

func TestRemindAtUpdatesTimes(t *testing.T) {
	store := newStubStore()
	transport := &recordingTransport{}
	h := newTestHandler(store, transport)

	h.HandleUpdate(context.Background(), messageUpdate("/remind_at 09:30"))
	h.HandleUpdate(context.Background(), messageUpdate("/remind_at 09:30"))

	prefs := store.prefs[1]
	if prefs == nil {
		t.Fatalf("настройки должны были сохраниться")
	}
	count := 0
	for _, tm := range prefs.ReminderTimes {
		if tm.Minutes() == 9*60+30 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("дубликаты времён должны схлопываться, 09:30 встречается %d раз", count)
	}

	h.HandleUpdate(context.Background(), messageUpdate("/remind_off 09:30"))
	for _, tm := range store.prefs[1].ReminderTimes {
		if tm.Minutes() == 9*60+30 {
			t.Fatalf("09:30 должно было удалиться")
		}
	}

	h.HandleUpdate(context.Background(), messageUpdate("/remind_at 25:99"))
	last := transport.sent[len(transport.sent)-1]
	if !strings.Contains(last, "⚠️") {
		t.Fatalf("некорректное время должно давать видимую ошибку, получили %q", last)
	}
}
