package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tg-dayplan-bot/internal/domain"
	"tg-dayplan-bot/internal/usecase/notes"
	"tg-dayplan-bot/internal/usecase/plan"
	"tg-dayplan-bot/internal/usecase/track"
)

// State — имя экрана меню.
type State string

const (
	StateMain          State = "main"
	StateSchedule      State = "schedule"
	StateScheduleToday State = "schedule_today"
	StateScheduleWeek  State = "schedule_week"
	StateScheduleMonth State = "schedule_month"
	StateGoals         State = "goals"
	StateMetrics       State = "metrics"
	StateMetricPrompt  State = "metric_prompt"
	StateNotes         State = "notes"
	StateSettings      State = "settings"
	StateHelp          State = "help"
)

// MenuState — экран плюс минимальный контекст для его рендера.
// Эфемерен: восстанавливается из callback-данных, нигде не хранится.
type MenuState struct {
	Name State
	Arg  string
}

// navAction упаковывает переход в callback-данные кнопки:
// nav:<откуда>:<куда>[:<аргумент куда>]. Текущее состояние едет в самой
// кнопке, поэтому обработчику не нужно его нигде хранить.
func navAction(from State, to MenuState) string {
	if to.Arg != "" {
		return fmt.Sprintf("nav:%s:%s:%s", from, to.Name, to.Arg)
	}
	return fmt.Sprintf("nav:%s:%s", from, to.Name)
}

// ParseNav разбирает callback-данные навигации.
func ParseNav(data string) (from MenuState, to MenuState, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) < 3 || parts[0] != "nav" {
		return MenuState{}, MenuState{}, false
	}
	from = MenuState{Name: State(parts[1])}
	to = MenuState{Name: State(parts[2])}
	if len(parts) > 3 {
		to.Arg = parts[3]
	}
	return from, to, true
}

// navTransitions — явная таблица переходов: (состояние, цель) -> допустимо.
// Дерево глубины ≤ 2 с корнем main; из каждого экрана действие «домой»
// возвращает в main за один переход. Пара вне таблицы — неопределённый
// переход: обработчик отвечает пользователю, а не молча проваливается.
var navTransitions = map[State]map[State]struct{}{
	StateMain: {
		StateSchedule: {}, StateGoals: {}, StateMetrics: {},
		StateNotes: {}, StateSettings: {}, StateHelp: {},
	},
	StateSchedule: {
		StateMain: {}, StateScheduleToday: {}, StateScheduleWeek: {}, StateScheduleMonth: {},
	},
	StateScheduleToday: {StateMain: {}, StateSchedule: {}},
	StateScheduleWeek:  {StateMain: {}, StateSchedule: {}},
	StateScheduleMonth: {StateMain: {}, StateSchedule: {}},
	StateGoals:         {StateMain: {}, StateMetrics: {}},
	StateMetrics:       {StateMain: {}, StateGoals: {}, StateMetricPrompt: {}},
	StateMetricPrompt:  {StateMain: {}, StateMetrics: {}},
	StateNotes:         {StateMain: {}},
	StateSettings:      {StateMain: {}},
	StateHelp:          {StateMain: {}},
}

// Transition проверяет переход по таблице и возвращает новое состояние.
func Transition(current MenuState, target MenuState) (MenuState, bool) {
	allowed, ok := navTransitions[current.Name]
	if !ok {
		return MenuState{}, false
	}
	if _, ok := allowed[target.Name]; !ok {
		return MenuState{}, false
	}
	return target, true
}

// Menu рендерит экраны: тянет минимальные данные экрана, форматирует текст
// и собирает кнопки следующих достижимых состояний.
type Menu struct {
	planUC  *plan.Service
	trackUC *track.Service
	notesUC *notes.Service
	users   domain.UserRepo
}

// NewMenu создаёт рендерер меню.
func NewMenu(planUC *plan.Service, trackUC *track.Service, notesUC *notes.Service, users domain.UserRepo) *Menu {
	return &Menu{planUC: planUC, trackUC: trackUC, notesUC: notesUC, users: users}
}

// Render детерминированно строит экран из текущих данных.
func (m *Menu) Render(ctx context.Context, user domain.User, state MenuState, now time.Time) (string, [][]domain.Button, error) {
	switch state.Name {
	case StateMain:
		return m.renderMain(user)
	case StateSchedule:
		return m.renderSchedule()
	case StateScheduleToday:
		return m.renderScheduleToday(ctx, user, now)
	case StateScheduleWeek:
		return m.renderScheduleRange(ctx, user, StateScheduleWeek, now, now.AddDate(0, 0, 6), "📅 План на неделю")
	case StateScheduleMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		last := first.AddDate(0, 1, -1)
		return m.renderScheduleRange(ctx, user, StateScheduleMonth, first, last, "🗓 План на месяц")
	case StateGoals:
		return m.renderGoals(ctx, user)
	case StateMetrics:
		return m.renderMetrics(ctx, user, now)
	case StateMetricPrompt:
		return m.renderMetricPrompt(state.Arg)
	case StateNotes:
		return m.renderNotes(ctx, user, now)
	case StateSettings:
		return m.renderSettings(ctx, user)
	case StateHelp:
		return m.renderHelp()
	}
	return "", nil, fmt.Errorf("%w: экран %q", domain.ErrNotFound, state.Name)
}

func homeRow(from State) []domain.Button {
	return []domain.Button{{Label: "🏠 Главное меню", Action: navAction(from, MenuState{Name: StateMain})}}
}

func (m *Menu) renderMain(user domain.User) (string, [][]domain.Button, error) {
	name := user.FirstName
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf("👋 Привет, %s! Чем займёмся?", name)
	buttons := [][]domain.Button{
		{
			{Label: "📋 Расписание", Action: navAction(StateMain, MenuState{Name: StateSchedule})},
			{Label: "🎯 Цели", Action: navAction(StateMain, MenuState{Name: StateGoals})},
		},
		{
			{Label: "📈 Метрики", Action: navAction(StateMain, MenuState{Name: StateMetrics})},
			{Label: "📝 Заметки", Action: navAction(StateMain, MenuState{Name: StateNotes})},
		},
		{
			{Label: "⚙️ Настройки", Action: navAction(StateMain, MenuState{Name: StateSettings})},
			{Label: "ℹ️ Помощь", Action: navAction(StateMain, MenuState{Name: StateHelp})},
		},
	}
	return text, buttons, nil
}

func (m *Menu) renderSchedule() (string, [][]domain.Button, error) {
	text := "📋 Расписание. Какой срез показать?"
	buttons := [][]domain.Button{
		{
			{Label: "Сегодня", Action: navAction(StateSchedule, MenuState{Name: StateScheduleToday})},
			{Label: "Неделя", Action: navAction(StateSchedule, MenuState{Name: StateScheduleWeek})},
			{Label: "Месяц", Action: navAction(StateSchedule, MenuState{Name: StateScheduleMonth})},
		},
		homeRow(StateSchedule),
	}
	return text, buttons, nil
}

func (m *Menu) renderScheduleToday(ctx context.Context, user domain.User, now time.Time) (string, [][]domain.Button, error) {
	items, err := m.planUC.ListToday(ctx, user.ID, now)
	if err != nil {
		return "", nil, err
	}

	completed := 0
	for _, item := range items {
		if item.Completed {
			completed++
		}
	}

	var b strings.Builder
	if len(items) == 0 {
		b.WriteString("📋 На сегодня планов нет.")
	} else {
		fmt.Fprintf(&b, "📋 План на сегодня (%d/%d выполнено):\n", completed, len(items))
		for i, item := range items {
			mark := "⬜"
			if item.Completed {
				mark = "✅"
			}
			fmt.Fprintf(&b, "%d. %s %s", i+1, mark, item.Title)
			if item.At != nil {
				fmt.Fprintf(&b, " — %s", item.At)
			}
			if item.Category != "" {
				fmt.Fprintf(&b, " [%s]", item.Category)
			}
			b.WriteString("\n")
		}
		b.WriteString("\nЗакрыть пункт можно кнопкой или командой /complete N.")
	}

	var buttons [][]domain.Button
	for i, item := range items {
		if item.Completed {
			continue
		}
		// Кнопка адресует пункт стабильным идентификатором, а не позицией:
		// позиция может уехать между рендером и нажатием.
		buttons = append(buttons, []domain.Button{{
			Label:  fmt.Sprintf("✅ Выполнить %d. %s", i+1, item.Title),
			Action: fmt.Sprintf("done:%d", item.ID),
		}})
	}
	buttons = append(buttons,
		[]domain.Button{{Label: "⬅️ Расписание", Action: navAction(StateScheduleToday, MenuState{Name: StateSchedule})}},
		homeRow(StateScheduleToday),
	)
	return b.String(), buttons, nil
}

func (m *Menu) renderScheduleRange(ctx context.Context, user domain.User, from State, fromDate, toDate time.Time, title string) (string, [][]domain.Button, error) {
	items, err := m.planUC.ListRange(ctx, user.ID, fromDate, toDate)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString(title)
	if len(items) == 0 {
		b.WriteString("\nПока пусто.")
	} else {
		var day string
		for _, item := range items {
			d := item.Date.Format("02.01")
			if d != day {
				day = d
				fmt.Fprintf(&b, "\n\n%s", d)
			}
			mark := "⬜"
			if item.Completed {
				mark = "✅"
			}
			fmt.Fprintf(&b, "\n%s %s", mark, item.Title)
			if item.At != nil {
				fmt.Fprintf(&b, " — %s", item.At)
			}
		}
	}
	buttons := [][]domain.Button{
		{{Label: "⬅️ Расписание", Action: navAction(from, MenuState{Name: StateSchedule})}},
		homeRow(from),
	}
	return b.String(), buttons, nil
}

func (m *Menu) renderGoals(ctx context.Context, user domain.User) (string, [][]domain.Button, error) {
	goals, err := m.trackUC.ListGoals(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("🎯 Ваши цели:")
	if len(goals) == 0 {
		b.WriteString("\nЦелей пока нет. Задайте: /goal water 8")
	} else {
		for _, g := range goals {
			fmt.Fprintf(&b, "\n• %s — %g %s", track.KindTitle(g.Kind), g.Target, track.KindUnit(g.Kind))
		}
		b.WriteString("\n\nИзменить: /goal <метрика> <значение>")
	}
	buttons := [][]domain.Button{
		{{Label: "📈 Метрики", Action: navAction(StateGoals, MenuState{Name: StateMetrics})}},
		homeRow(StateGoals),
	}
	return b.String(), buttons, nil
}

func (m *Menu) renderMetrics(ctx context.Context, user domain.User, now time.Time) (string, [][]domain.Button, error) {
	entries, err := m.trackUC.ListToday(ctx, user.ID, now)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("📈 Метрики за сегодня:")
	if len(entries) == 0 {
		b.WriteString("\nЗаписей пока нет.")
	} else {
		for _, e := range entries {
			fmt.Fprintf(&b, "\n• %s: %s (%s)", track.KindTitle(e.Kind), track.FormatValue(e), e.RecordedAt.Format("15:04"))
		}
	}
	b.WriteString("\n\nВыберите, что записать:")
	metricNav := func(kind domain.MetricKind) string {
		return navAction(StateMetrics, MenuState{Name: StateMetricPrompt, Arg: string(kind)})
	}
	buttons := [][]domain.Button{
		{
			{Label: "Настроение", Action: metricNav(domain.MetricMood)},
			{Label: "Вода", Action: metricNav(domain.MetricWater)},
		},
		{
			{Label: "Сон", Action: metricNav(domain.MetricSleep)},
			{Label: "Вес", Action: metricNav(domain.MetricWeight)},
		},
		{{Label: "🎯 Цели", Action: navAction(StateMetrics, MenuState{Name: StateGoals})}},
		homeRow(StateMetrics),
	}
	return b.String(), buttons, nil
}

func (m *Menu) renderMetricPrompt(kindArg string) (string, [][]domain.Button, error) {
	kind, err := track.ParseKind(kindArg)
	if err != nil {
		return "", nil, err
	}
	text := fmt.Sprintf("Введите значение «%s» ответным сообщением, просто числом.", track.KindTitle(kind))
	buttons := [][]domain.Button{
		{{Label: "⬅️ Метрики", Action: navAction(StateMetricPrompt, MenuState{Name: StateMetrics})}},
		homeRow(StateMetricPrompt),
	}
	return text, buttons, nil
}

func (m *Menu) renderNotes(ctx context.Context, user domain.User, now time.Time) (string, [][]domain.Button, error) {
	list, err := m.notesUC.ListToday(ctx, user.ID, now)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("📝 Заметки за сегодня:")
	if len(list) == 0 {
		b.WriteString("\nПусто. Добавить: /note текст")
	} else {
		for _, n := range list {
			fmt.Fprintf(&b, "\n• %s", n.Text)
		}
	}
	return b.String(), [][]domain.Button{homeRow(StateNotes)}, nil
}

func (m *Menu) renderSettings(ctx context.Context, user domain.User) (string, [][]domain.Button, error) {
	prefs, err := m.users.GetPrefs(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	if prefs == nil {
		defaults := domain.DefaultPrefs(user.ID)
		prefs = &defaults
	}

	onOff := func(v bool) string {
		if v {
			return "вкл"
		}
		return "выкл"
	}
	times := make([]string, 0, len(prefs.ReminderTimes))
	for _, t := range prefs.ReminderTimes {
		times = append(times, t.String())
	}
	timesLine := "не заданы"
	if len(times) > 0 {
		timesLine = strings.Join(times, ", ")
	}
	text := strings.Join([]string{
		"⚙️ Настройки уведомлений:",
		fmt.Sprintf("• Напоминания (рабочие и по плану): %s", onOff(prefs.RemindersEnabled)),
		fmt.Sprintf("• Ежедневные чек-ины: %s", onOff(prefs.NotificationsEnabled)),
		fmt.Sprintf("• Трекинг метрик: %s", onOff(prefs.MetricTrackingEnabled)),
		fmt.Sprintf("• Времена чек-инов: %s", timesLine),
		"",
		"Добавить время: /remind_at 09:30, убрать: /remind_off 09:30",
	}, "\n")

	buttons := [][]domain.Button{
		{{Label: "🔔 Напоминания: " + onOff(prefs.RemindersEnabled), Action: "toggle:reminders"}},
		{{Label: "🗓 Чек-ины: " + onOff(prefs.NotificationsEnabled), Action: "toggle:notifications"}},
		{{Label: "📈 Метрики: " + onOff(prefs.MetricTrackingEnabled), Action: "toggle:tracking"}},
		homeRow(StateSettings),
	}
	return text, buttons, nil
}

func (m *Menu) renderHelp() (string, [][]domain.Button, error) {
	text := strings.Join([]string{
		"📖 Команды бота:",
		"",
		"План:",
		"• /today, /week, /month — срезы расписания.",
		"• /complete 2 — закрыть пункт по номеру в сегодняшнем списке.",
		"",
		"Метрики:",
		"• /mood 8 — настроение от 1 до 10.",
		"• /water 5, /sleep 7.5, /weight 72.4 — вода, сон, вес.",
		"• /goal water 8 — задать цель.",
		"",
		"Заметки и настройки:",
		"• /note купить билеты — заметка на сегодня, /notes — список.",
		"• /settings — управление уведомлениями.",
		"• /remind_at 09:30 — добавить время чек-ина.",
		"",
		"Меню всегда доступно по /menu.",
	}, "\n")
	return text, [][]domain.Button{homeRow(StateHelp)}, nil
}
