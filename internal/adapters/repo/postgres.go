package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-dayplan-bot/internal/domain"
	"tg-dayplan-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo   = (*Postgres)(nil)
	_ domain.PlanRepo   = (*Postgres)(nil)
	_ domain.MetricRepo = (*Postgres)(nil)
	_ domain.NoteRepo   = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// UpsertByTGID реализует domain.UserRepo.
func (p *Postgres) UpsertByTGID(tgUserID, chatID int64, firstName string) (domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		user     domain.User
		firstSQL sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (tg_user_id, chat_id, first_name)
VALUES ($1, $2, NULLIF($3,''))
ON CONFLICT (tg_user_id) DO UPDATE SET chat_id = EXCLUDED.chat_id, first_name = COALESCE(EXCLUDED.first_name, users.first_name), updated_at = now()
RETURNING id, tg_user_id, chat_id, first_name, created_at, updated_at
`, tgUserID, chatID, firstName).Scan(&user.ID, &user.TGUserID, &user.ChatID, &firstSQL, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	if err != nil {
		return domain.User{}, err
	}
	if firstSQL.Valid {
		user.FirstName = firstSQL.String
	}
	return user, nil
}

// GetByTGID возвращает пользователя по Telegram ID.
func (p *Postgres) GetByTGID(tgUserID int64) (domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		user     domain.User
		firstSQL sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, tg_user_id, chat_id, first_name, created_at, updated_at
FROM users WHERE tg_user_id=$1
`, tgUserID).Scan(&user.ID, &user.TGUserID, &user.ChatID, &firstSQL, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get_by_tgid", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("%w: пользователь", domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, err
	}
	if firstSQL.Valid {
		user.FirstName = firstSQL.String
	}
	return user, nil
}

// ListSubscribed возвращает всех пользователей для обхода планировщиком.
// Фильтрация по настройкам происходит уже в гейте, на данных prefs.
func (p *Postgres) ListSubscribed(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, tg_user_id, chat_id, first_name, created_at, updated_at
FROM users
ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "users_list_subscribed", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			u        domain.User
			firstSQL sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.TGUserID, &u.ChatID, &firstSQL, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if firstSQL.Valid {
			u.FirstName = firstSQL.String
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetPrefs возвращает настройки уведомлений; (nil, nil) при отсутствии записи.
func (p *Postgres) GetPrefs(ctx context.Context, userID int64) (*domain.Prefs, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		prefs    domain.Prefs
		rawTimes []string
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT user_id, reminders_enabled, notifications_enabled, metric_tracking_enabled, reminder_times
FROM user_prefs WHERE user_id=$1
`, userID).Scan(&prefs.UserID, &prefs.RemindersEnabled, &prefs.NotificationsEnabled, &prefs.MetricTrackingEnabled, &rawTimes)
	metrics.ObserveNetworkRequest("postgres", "user_prefs_get", "user_prefs", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, raw := range rawTimes {
		t, err := domain.ParseClockTime(raw)
		if err != nil {
			// Битое значение в БД не должно ронять весь тик: пропускаем.
			continue
		}
		prefs.ReminderTimes = append(prefs.ReminderTimes, t)
	}
	prefs.ReminderTimes = domain.CollapseTimes(prefs.ReminderTimes)
	return &prefs, nil
}

// SavePrefs сохраняет настройки уведомлений целиком.
func (p *Postgres) SavePrefs(ctx context.Context, prefs domain.Prefs) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	times := domain.CollapseTimes(prefs.ReminderTimes)
	rawTimes := make([]string, 0, len(times))
	for _, t := range times {
		rawTimes = append(rawTimes, t.String())
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO user_prefs (user_id, reminders_enabled, notifications_enabled, metric_tracking_enabled, reminder_times)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
    reminders_enabled = EXCLUDED.reminders_enabled,
    notifications_enabled = EXCLUDED.notifications_enabled,
    metric_tracking_enabled = EXCLUDED.metric_tracking_enabled,
    reminder_times = EXCLUDED.reminder_times,
    updated_at = now()
`, prefs.UserID, prefs.RemindersEnabled, prefs.NotificationsEnabled, prefs.MetricTrackingEnabled, rawTimes)
	metrics.ObserveNetworkRequest("postgres", "user_prefs_upsert", "user_prefs", start, err)
	return err
}

// ListForDate возвращает пункты плана на календарную дату.
func (p *Postgres) ListForDate(ctx context.Context, userID int64, date time.Time) ([]domain.PlanItem, error) {
	return p.ListForRange(ctx, userID, date, date)
}

// ListForRange возвращает пункты плана на интервал дат [from, to].
func (p *Postgres) ListForRange(ctx context.Context, userID int64, from, to time.Time) ([]domain.PlanItem, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, date, title, description, category, at_time, completed, created_at
FROM plan_items
WHERE user_id=$1 AND date BETWEEN $2 AND $3
ORDER BY date, id
`, userID, dateOnly(from), dateOnly(to))
	metrics.ObserveNetworkRequest("postgres", "plan_items_list", "plan_items", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PlanItem
	for rows.Next() {
		var (
			item        domain.PlanItem
			description sql.NullString
			category    sql.NullString
			atTime      sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.Date, &item.Title, &description, &category, &atTime, &item.Completed, &item.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			item.Description = description.String
		}
		if category.Valid {
			item.Category = category.String
		}
		if atTime.Valid {
			if t, err := domain.ParseClockTime(atTime.String); err == nil {
				item.At = &t
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetCompleted помечает пункт плана; отсутствие строки — ErrNotFound.
func (p *Postgres) SetCompleted(ctx context.Context, userID, itemID int64, completed bool) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
UPDATE plan_items SET completed=$3 WHERE user_id=$1 AND id=$2
`, userID, itemID, completed)
	metrics.ObserveNetworkRequest("postgres", "plan_items_set_completed", "plan_items", start, err)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("%w: пункт плана %d", domain.ErrNotFound, itemID)
	}
	return nil
}

// SaveEntry сохраняет числовое наблюдение.
func (p *Postgres) SaveEntry(ctx context.Context, entry domain.MetricEntry) (domain.MetricEntry, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO metric_entries (user_id, kind, value, unit, recorded_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, entry.UserID, string(entry.Kind), entry.Value, entry.Unit, entry.RecordedAt).Scan(&entry.ID)
	metrics.ObserveNetworkRequest("postgres", "metric_entries_insert", "metric_entries", start, err)
	if err != nil {
		return domain.MetricEntry{}, err
	}
	return entry, nil
}

// ListEntriesForDate возвращает наблюдения за календарную дату.
func (p *Postgres) ListEntriesForDate(ctx context.Context, userID int64, date time.Time) ([]domain.MetricEntry, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, kind, value, unit, recorded_at
FROM metric_entries
WHERE user_id=$1 AND recorded_at >= $2 AND recorded_at < $2 + interval '1 day'
ORDER BY recorded_at
`, userID, dateOnly(date))
	metrics.ObserveNetworkRequest("postgres", "metric_entries_list", "metric_entries", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.MetricEntry
	for rows.Next() {
		var (
			e    domain.MetricEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &kind, &e.Value, &e.Unit, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.MetricKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertGoal сохраняет цель по виду метрики, перезаписывая прежнюю.
func (p *Postgres) UpsertGoal(ctx context.Context, goal domain.Goal) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO goals (user_id, kind, target)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, kind) DO UPDATE SET target = EXCLUDED.target, updated_at = now()
`, goal.UserID, string(goal.Kind), goal.Target)
	metrics.ObserveNetworkRequest("postgres", "goals_upsert", "goals", start, err)
	return err
}

// ListGoals возвращает цели пользователя.
func (p *Postgres) ListGoals(ctx context.Context, userID int64) ([]domain.Goal, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, kind, target FROM goals WHERE user_id=$1 ORDER BY kind
`, userID)
	metrics.ObserveNetworkRequest("postgres", "goals_list", "goals", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		var (
			g    domain.Goal
			kind string
		)
		if err := rows.Scan(&g.UserID, &kind, &g.Target); err != nil {
			return nil, err
		}
		g.Kind = domain.MetricKind(kind)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// AddNote сохраняет заметку.
func (p *Postgres) AddNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO notes (user_id, date, text)
VALUES ($1, $2, $3)
RETURNING id, created_at
`, note.UserID, dateOnly(note.Date), note.Text).Scan(&note.ID, &note.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "notes_insert", "notes", start, err)
	if err != nil {
		return domain.Note{}, err
	}
	return note, nil
}

// ListNotesForDate возвращает заметки на дату.
func (p *Postgres) ListNotesForDate(ctx context.Context, userID int64, date time.Time) ([]domain.Note, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, date, text, created_at
FROM notes WHERE user_id=$1 AND date=$2
ORDER BY id
`, userID, dateOnly(date))
	metrics.ObserveNetworkRequest("postgres", "notes_list", "notes", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Date, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// dateOnly срезает время до календарной даты в локации значения.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
