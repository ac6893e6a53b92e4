package domain

import (
	"context"
	"time"
)

// UserRepo управляет пользователями и их настройками уведомлений.
type UserRepo interface {
	UpsertByTGID(tgUserID, chatID int64, firstName string) (User, error)
	GetByTGID(tgUserID int64) (User, error)
	// ListSubscribed возвращает всех пользователей, которых обходит планировщик.
	ListSubscribed(ctx context.Context) ([]User, error)
	// GetPrefs возвращает настройки; при отсутствии записи — (nil, nil).
	GetPrefs(ctx context.Context, userID int64) (*Prefs, error)
	SavePrefs(ctx context.Context, prefs Prefs) error
}

// PlanRepo читает пункты плана и помечает их выполненными.
// Сами пункты создаёт внешняя фича планирования.
type PlanRepo interface {
	ListForDate(ctx context.Context, userID int64, date time.Time) ([]PlanItem, error)
	ListForRange(ctx context.Context, userID int64, from, to time.Time) ([]PlanItem, error)
	SetCompleted(ctx context.Context, userID, itemID int64, completed bool) error
}

// MetricRepo сохраняет числовые наблюдения и цели.
type MetricRepo interface {
	SaveEntry(ctx context.Context, entry MetricEntry) (MetricEntry, error)
	ListEntriesForDate(ctx context.Context, userID int64, date time.Time) ([]MetricEntry, error)
	UpsertGoal(ctx context.Context, goal Goal) error
	ListGoals(ctx context.Context, userID int64) ([]Goal, error)
}

// NoteRepo хранит заметки пользователя.
type NoteRepo interface {
	AddNote(ctx context.Context, note Note) (Note, error)
	ListNotesForDate(ctx context.Context, userID int64, date time.Time) ([]Note, error)
}

// Button — одна кнопка меню: подпись и опаковый идентификатор действия.
type Button struct {
	Label  string
	Action string
}

// Transport отправляет сообщения пользователю. Реализуется адаптером Telegram.
type Transport interface {
	// Send отправляет новое сообщение и возвращает его идентификатор.
	Send(ctx context.Context, chatID int64, text string, buttons [][]Button) (int, error)
	// Edit правит ранее отправленное сообщение на месте.
	Edit(ctx context.Context, chatID int64, messageID int, text string, buttons [][]Button) error
	// AnswerCallback подтверждает нажатие кнопки.
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Cache используется для простых TTL-хранилищ и межрепличных замков.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
