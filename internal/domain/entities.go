package domain

import "time"

// User описывает пользователя Telegram в системе.
// Создаётся при первом контакте и не удаляется ядром напоминаний.
type User struct {
	ID        int64
	TGUserID  int64
	ChatID    int64
	FirstName string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Prefs хранит настройки уведомлений пользователя.
type Prefs struct {
	UserID                int64
	RemindersEnabled      bool
	NotificationsEnabled  bool
	MetricTrackingEnabled bool
	// ReminderTimes — времена ежедневных чек-инов, формат HH:MM.
	// Дубликаты схлопываются при сохранении, порядок не важен.
	ReminderTimes []ClockTime
}

// DefaultPrefs возвращает настройки по умолчанию: всё включено.
// Отсутствие записи в БД трактуется именно так, а не как запрет.
func DefaultPrefs(userID int64) Prefs {
	return Prefs{
		UserID:                userID,
		RemindersEnabled:      true,
		NotificationsEnabled:  true,
		MetricTrackingEnabled: true,
		ReminderTimes: []ClockTime{
			{Hour: 10}, {Hour: 14}, {Hour: 18},
		},
	}
}

// PlanItem — пункт плана пользователя на календарную дату.
// Создаётся внешней фичей планирования, здесь только читается и закрывается.
type PlanItem struct {
	ID          int64
	UserID      int64
	Date        time.Time
	Title       string
	Description string
	Category    string
	At          *ClockTime
	Completed   bool
	CreatedAt   time.Time
}

// MetricEntry — одно числовое наблюдение (настроение, вес и т.п.).
type MetricEntry struct {
	ID         int64
	UserID     int64
	Kind       MetricKind
	Value      float64
	Unit       string
	RecordedAt time.Time
}

// Goal — числовая цель пользователя по виду метрики.
type Goal struct {
	UserID int64
	Kind   MetricKind
	Target float64
}

// Note — короткая заметка пользователя на дату.
type Note struct {
	ID        int64
	UserID    int64
	Date      time.Time
	Text      string
	CreatedAt time.Time
}

// MetricKind — вид отслеживаемой метрики.
type MetricKind string

const (
	MetricMood   MetricKind = "mood"
	MetricWater  MetricKind = "water"
	MetricSleep  MetricKind = "sleep"
	MetricWeight MetricKind = "weight"
)

// NotificationClass — класс исходящего уведомления.
type NotificationClass string

const (
	ClassWork   NotificationClass = "work"
	ClassPlan   NotificationClass = "plan"
	ClassDaily  NotificationClass = "daily"
	ClassMetric NotificationClass = "metric"
)

// DispatchEvent описывает одну попытку отправки; живёт только в логах.
type DispatchEvent struct {
	ID     string
	UserID int64
	Class  NotificationClass
	Bucket time.Time
}
