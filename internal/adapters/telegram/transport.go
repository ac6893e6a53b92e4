package telegram

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-dayplan-bot/internal/domain"
	"tg-dayplan-bot/internal/infra/metrics"
)

const apiTimeout = 10 * time.Second

// NewBotAPI создаёт клиент Bot API с таймаутом на каждый HTTP-запрос:
// зависший вызов Telegram не должен держать воркера бесконечно.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, apiClient())
}

func apiClient() *http.Client {
	return &http.Client{Timeout: apiTimeout}
}

// Transport реализует domain.Transport поверх Bot API.
type Transport struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

// NewTransport создаёт транспорт.
func NewTransport(bot *tgbotapi.BotAPI, log zerolog.Logger) *Transport {
	return &Transport{bot: bot, log: log}
}

var _ domain.Transport = (*Transport)(nil)

// Send отправляет сообщение, при необходимости разбивая его на части.
// Кнопки прикрепляются к последней части. Возвращает идентификатор
// последнего отправленного сообщения.
func (t *Transport) Send(ctx context.Context, chatID int64, text string, buttons [][]domain.Button) (int, error) {
	parts := SplitMessage(text)
	var lastID int
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 {
			if markup := buildMarkup(buttons); markup != nil {
				msg.ReplyMarkup = markup
			}
		}
		start := time.Now()
		sent, err := t.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			return 0, err
		}
		lastID = sent.MessageID
		if err := ctx.Err(); err != nil {
			return lastID, err
		}
	}
	return lastID, nil
}

// Edit правит ранее отправленное сообщение на месте, чтобы чат не
// зарастал дублями экранов меню. Если исходное сообщение уже недоступно,
// отправляет новое.
func (t *Transport) Edit(ctx context.Context, chatID int64, messageID int, text string, buttons [][]domain.Button) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if markup := buildMarkup(buttons); markup != nil {
		edit.ReplyMarkup = markup
	}
	start := time.Now()
	_, err := t.bot.Send(edit)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", strconv.FormatInt(chatID, 10), start, err)
	if err == nil {
		return nil
	}
	// Повторное нажатие кнопки без смены экрана — это успех, а не повод
	// слать новое сообщение.
	if isNotModified(err) {
		return nil
	}
	if !isMessageGone(err) {
		return err
	}
	t.log.Warn().Err(err).Int64("chat", chatID).Int("message", messageID).Msg("правка недоступна, отправляем новое сообщение")
	_, err = t.Send(ctx, chatID, text, buttons)
	return err
}

// AnswerCallback подтверждает нажатие кнопки, чтобы клиент убрал «часики».
func (t *Transport) AnswerCallback(ctx context.Context, callbackID string) error {
	start := time.Now()
	_, err := t.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", callbackID, start, err)
	return err
}

func buildMarkup(buttons [][]domain.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action))
		}
		rows = append(rows, btns)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// isNotModified распознаёт ответ Bot API о том, что текст и кнопки
// уже совпадают с запрошенными.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

// isMessageGone распознаёт ответы Bot API о том, что сообщение нельзя
// отредактировать (удалено или слишком старое).
func isMessageGone(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "message to edit not found") ||
		strings.Contains(text, "message can't be edited")
}
