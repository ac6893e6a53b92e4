package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"

	"tg-dayplan-bot/internal/domain"
	"tg-dayplan-bot/internal/infra/metrics"
	"tg-dayplan-bot/internal/usecase/notes"
	"tg-dayplan-bot/internal/usecase/plan"
	"tg-dayplan-bot/internal/usecase/track"
)

// Handler маршрутизирует входящие апдейты: команды и нажатия кнопок.
// Апдейты одного чата обрабатываются строго в порядке поступления.
type Handler struct {
	transport domain.Transport
	users     domain.UserRepo
	planUC    *plan.Service
	trackUC   *track.Service
	notesUC   *notes.Service
	menu      *Menu
	clk       clock.Clock
	log       zerolog.Logger

	mu sync.Mutex
	// chatLocks сериализует обработку внутри одного чата.
	chatLocks map[int64]*sync.Mutex
	// pendingMetric — чаты, ждущие числового ответа после выбора метрики.
	pendingMetric map[int64]domain.MetricKind
}

// NewHandler создаёт маршрутизатор.
func NewHandler(
	transport domain.Transport,
	users domain.UserRepo,
	planUC *plan.Service,
	trackUC *track.Service,
	notesUC *notes.Service,
	menu *Menu,
	clk clock.Clock,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		transport:     transport,
		users:         users,
		planUC:        planUC,
		trackUC:       trackUC,
		notesUC:       notesUC,
		menu:          menu,
		clk:           clk,
		log:           log,
		chatLocks:     make(map[int64]*sync.Mutex),
		pendingMetric: make(map[int64]domain.MetricKind),
	}
}

// HandleUpdate — единая точка входа для апдейта из вебхука или long poll.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		h.withChatLock(update.Message.Chat.ID, func() {
			h.handleMessage(ctx, update.Message)
		})
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		h.withChatLock(update.CallbackQuery.Message.Chat.ID, func() {
			h.handleCallback(ctx, update.CallbackQuery)
		})
	}
}

func (h *Handler) withChatLock(chatID int64, fn func()) {
	h.mu.Lock()
	lock, ok := h.chatLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		h.chatLocks[chatID] = lock
	}
	h.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	fn()
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.users.UpsertByTGID(msg.From.ID, msg.Chat.ID, msg.From.FirstName)
	if err != nil {
		h.log.Error().Err(err).Int64("tg_user", msg.From.ID).Msg("не удалось сохранить пользователя")
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	// Текст без команды: либо ответ на запрос метрики, либо подсказка.
	if !strings.HasPrefix(text, "/") {
		h.mu.Lock()
		kind, waiting := h.pendingMetric[msg.Chat.ID]
		delete(h.pendingMetric, msg.Chat.ID)
		h.mu.Unlock()
		if waiting {
			h.recordMetric(ctx, user, msg.Chat.ID, kind, text)
			return
		}
		h.reply(ctx, msg.Chat.ID, "Не понял. Откройте меню: /menu или список команд: /help")
		return
	}

	// Любая команда снимает ожидание числового ответа на запрос метрики.
	h.mu.Lock()
	delete(h.pendingMetric, msg.Chat.ID)
	h.mu.Unlock()

	command, args := splitCommand(text)
	metrics.IncCommand(commandLabel(command))
	h.log.Debug().Str("command", command).Int64("user", user.ID).Msg("команда")

	switch command {
	case "/start":
		h.cmdStart(ctx, user, msg.Chat.ID)
	case "/menu":
		h.sendScreen(ctx, user, msg.Chat.ID, MenuState{Name: StateMain})
	case "/help":
		h.sendScreen(ctx, user, msg.Chat.ID, MenuState{Name: StateHelp})
	case "/today":
		h.sendScreen(ctx, user, msg.Chat.ID, MenuState{Name: StateScheduleToday})
	case "/week":
		h.sendScreen(ctx, user, msg.Chat.ID, MenuState{Name: StateScheduleWeek})
	case "/month":
		h.sendScreen(ctx, user, msg.Chat.ID, MenuState{Name: StateScheduleMonth})
	case "/complete":
		h.cmdComplete(ctx, user, msg.Chat.ID, args)
	case "/mood":
		h.cmdMetric(ctx, user, msg.Chat.ID, domain.MetricMood, args)
	case "/water":
		h.cmdMetric(ctx, user, msg.Chat.ID, domain.MetricWater, args)
	case "/sleep":
		h.cmdMetric(ctx, user, msg.Chat.ID, domain.MetricSleep, args)
	case "/weight":
		h.cmdMetric(ctx, user, msg.Chat.ID, domain.MetricWeight, args)
	case "/goal":
		h.cmdGoal(ctx, user, msg.Chat.ID, args)
	case "/note":
		h.cmdNote(ctx, user, msg.Chat.ID, args)
	case "/notes":
		h.sendScreen(ctx, user, msg.Chat.ID, MenuState{Name: StateNotes})
	case "/settings":
		h.sendScreen(ctx, user, msg.Chat.ID, MenuState{Name: StateSettings})
	case "/remind_at":
		h.cmdRemindAt(ctx, user, msg.Chat.ID, args, true)
	case "/remind_off":
		h.cmdRemindAt(ctx, user, msg.Chat.ID, args, false)
	default:
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf("Неизвестная команда %s. Список команд: /help", command))
	}
}

func (h *Handler) cmdStart(ctx context.Context, user domain.User, chatID int64) {
	prefs, err := h.users.GetPrefs(ctx, user.ID)
	if err == nil && prefs == nil {
		// Первый контакт: фиксируем настройки по умолчанию явно.
		if err := h.users.SavePrefs(ctx, domain.DefaultPrefs(user.ID)); err != nil {
			h.log.Error().Err(err).Int64("user", user.ID).Msg("не удалось сохранить настройки по умолчанию")
		}
	}
	h.sendScreen(ctx, user, chatID, MenuState{Name: StateMain})
}

func (h *Handler) cmdComplete(ctx context.Context, user domain.User, chatID int64, args string) {
	position, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		h.reply(ctx, chatID, "Укажите номер пункта: /complete 2")
		return
	}
	item, err := h.planUC.CompleteByPosition(ctx, user.ID, position, h.clk.Now())
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("✅ Готово: %s", item.Title))
}

func (h *Handler) cmdMetric(ctx context.Context, user domain.User, chatID int64, kind domain.MetricKind, args string) {
	raw := strings.TrimSpace(args)
	if raw == "" {
		h.reply(ctx, chatID, fmt.Sprintf("Укажите значение: например, /%s 8", kind))
		return
	}
	h.recordMetric(ctx, user, chatID, kind, raw)
}

func (h *Handler) recordMetric(ctx context.Context, user domain.User, chatID int64, kind domain.MetricKind, raw string) {
	entry, err := h.trackUC.Record(ctx, user.ID, kind, strings.TrimSpace(raw), h.clk.Now())
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("📈 Записано: %s — %s", track.KindTitle(kind), track.FormatValue(entry)))
}

func (h *Handler) cmdGoal(ctx context.Context, user domain.User, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		h.reply(ctx, chatID, "Формат: /goal <метрика> <значение>, например /goal water 8")
		return
	}
	kind, err := track.ParseKind(fields[0])
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	goal, err := h.trackUC.SetGoal(ctx, user.ID, kind, fields[1])
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("🎯 Цель сохранена: %s — %g %s", track.KindTitle(goal.Kind), goal.Target, track.KindUnit(goal.Kind)))
}

func (h *Handler) cmdNote(ctx context.Context, user domain.User, chatID int64, args string) {
	note, err := h.notesUC.Add(ctx, user.ID, args, h.clk.Now())
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("📝 Заметка сохранена: %s", note.Text))
}

// cmdRemindAt добавляет или убирает время ежедневного чек-ина.
func (h *Handler) cmdRemindAt(ctx context.Context, user domain.User, chatID int64, args string, add bool) {
	at, err := domain.ParseClockTime(strings.TrimSpace(args))
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}

	prefs, err := h.users.GetPrefs(ctx, user.ID)
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	if prefs == nil {
		defaults := domain.DefaultPrefs(user.ID)
		prefs = &defaults
	}

	if add {
		prefs.ReminderTimes = domain.CollapseTimes(append(prefs.ReminderTimes, at))
	} else {
		kept := prefs.ReminderTimes[:0]
		for _, t := range prefs.ReminderTimes {
			if t.Minutes() != at.Minutes() {
				kept = append(kept, t)
			}
		}
		prefs.ReminderTimes = kept
	}

	if err := h.users.SavePrefs(ctx, *prefs); err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	if add {
		h.reply(ctx, chatID, fmt.Sprintf("🔔 Чек-ин в %s добавлен.", at))
	} else {
		h.reply(ctx, chatID, fmt.Sprintf("🔕 Чек-ин в %s убран.", at))
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Подтверждаем нажатие всегда, даже если дальше что-то пойдёт не так.
	defer func() {
		if err := h.transport.AnswerCallback(ctx, cb.ID); err != nil {
			h.log.Warn().Err(err).Msg("не удалось подтвердить callback")
		}
	}()

	user, err := h.users.UpsertByTGID(cb.From.ID, cb.Message.Chat.ID, cb.From.FirstName)
	if err != nil {
		h.log.Error().Err(err).Int64("tg_user", cb.From.ID).Msg("не удалось сохранить пользователя")
		return
	}

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	data := cb.Data
	metrics.IncCommand("callback")

	switch {
	case strings.HasPrefix(data, "nav:"):
		h.cbNav(ctx, user, chatID, messageID, data)
	case strings.HasPrefix(data, "done:"):
		h.cbDone(ctx, user, chatID, messageID, strings.TrimPrefix(data, "done:"))
	case strings.HasPrefix(data, "toggle:"):
		h.cbToggle(ctx, user, chatID, messageID, strings.TrimPrefix(data, "toggle:"))
	default:
		h.reply(ctx, chatID, "Эта кнопка устарела. Откройте меню заново: /menu")
	}
}

// cbNav выполняет переход по таблице. Пара вне таблицы — явный ответ
// пользователю, без смены экрана.
func (h *Handler) cbNav(ctx context.Context, user domain.User, chatID int64, messageID int, data string) {
	from, to, ok := ParseNav(data)
	if !ok {
		h.reply(ctx, chatID, "Эта кнопка устарела. Откройте меню заново: /menu")
		return
	}
	next, ok := Transition(from, to)
	if !ok {
		h.log.Warn().Str("from", string(from.Name)).Str("to", string(to.Name)).Msg("недопустимый переход меню")
		h.reply(ctx, chatID, "Такой переход недоступен. Откройте меню заново: /menu")
		return
	}

	if next.Name == StateMetricPrompt {
		kind, err := track.ParseKind(next.Arg)
		if err != nil {
			h.replyError(ctx, chatID, user.ID, err)
			return
		}
		h.mu.Lock()
		h.pendingMetric[chatID] = kind
		h.mu.Unlock()
	} else {
		// Любой другой переход снимает ожидание числового ответа.
		h.mu.Lock()
		delete(h.pendingMetric, chatID)
		h.mu.Unlock()
	}

	h.editScreen(ctx, user, chatID, messageID, next)
}

// cbDone закрывает пункт плана по стабильному идентификатору и
// перерисовывает сегодняшний экран на месте.
func (h *Handler) cbDone(ctx context.Context, user domain.User, chatID int64, messageID int, rawID string) {
	itemID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		h.reply(ctx, chatID, "Эта кнопка устарела. Откройте меню заново: /menu")
		return
	}
	if err := h.planUC.CompleteByID(ctx, user.ID, itemID); err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	h.editScreen(ctx, user, chatID, messageID, MenuState{Name: StateScheduleToday})
}

// cbToggle переключает один флаг настроек и перерисовывает экран настроек.
func (h *Handler) cbToggle(ctx context.Context, user domain.User, chatID int64, messageID int, flag string) {
	prefs, err := h.users.GetPrefs(ctx, user.ID)
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	if prefs == nil {
		defaults := domain.DefaultPrefs(user.ID)
		prefs = &defaults
	}

	switch flag {
	case "reminders":
		prefs.RemindersEnabled = !prefs.RemindersEnabled
	case "notifications":
		prefs.NotificationsEnabled = !prefs.NotificationsEnabled
	case "tracking":
		prefs.MetricTrackingEnabled = !prefs.MetricTrackingEnabled
	default:
		h.reply(ctx, chatID, "Эта кнопка устарела. Откройте меню заново: /menu")
		return
	}

	if err := h.users.SavePrefs(ctx, *prefs); err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	h.editScreen(ctx, user, chatID, messageID, MenuState{Name: StateSettings})
}

// sendScreen рендерит экран и отправляет его новым сообщением. Так меню
// появляется в чате по команде.
func (h *Handler) sendScreen(ctx context.Context, user domain.User, chatID int64, state MenuState) {
	text, buttons, err := h.menu.Render(ctx, user, state, h.clk.Now())
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	if _, err := h.transport.Send(ctx, chatID, text, buttons); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить экран меню")
	}
}

// editScreen рендерит экран и правит существующее сообщение меню на месте.
func (h *Handler) editScreen(ctx context.Context, user domain.User, chatID int64, messageID int, state MenuState) {
	text, buttons, err := h.menu.Render(ctx, user, state, h.clk.Now())
	if err != nil {
		h.replyError(ctx, chatID, user.ID, err)
		return
	}
	if err := h.transport.Edit(ctx, chatID, messageID, text, buttons); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось обновить экран меню")
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.transport.Send(ctx, chatID, text, nil); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить ответ")
	}
}

// replyError показывает пользователю текст ошибок валидации и «не найдено»,
// остальное прячет за общим сообщением и пишет в лог.
func (h *Handler) replyError(ctx context.Context, chatID, userID int64, err error) {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
		h.reply(ctx, chatID, "⚠️ "+err.Error())
		return
	}
	h.log.Error().Err(err).Int64("user", userID).Msg("ошибка обработки команды")
	h.reply(ctx, chatID, "Что-то пошло не так, попробуйте ещё раз позже.")
}

// knownCommands ограничивает множество меток счётчика команд:
// произвольный пользовательский ввод не должен плодить лейблы.
var knownCommands = map[string]struct{}{
	"/start": {}, "/menu": {}, "/help": {},
	"/today": {}, "/week": {}, "/month": {}, "/complete": {},
	"/mood": {}, "/water": {}, "/sleep": {}, "/weight": {}, "/goal": {},
	"/note": {}, "/notes": {}, "/settings": {},
	"/remind_at": {}, "/remind_off": {},
}

func commandLabel(command string) string {
	if _, ok := knownCommands[command]; ok {
		return command
	}
	return "unknown"
}

// splitCommand отделяет команду от аргументов и срезает @mention бота.
func splitCommand(text string) (string, string) {
	command := text
	args := ""
	if i := strings.IndexAny(text, " \n"); i >= 0 {
		command, args = text[:i], strings.TrimSpace(text[i+1:])
	}
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}
	return strings.ToLower(command), args
}
