package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/workoutbot/internal/format"
	"github.com/hray3182/workoutbot/internal/logging"
	"github.com/hray3182/workoutbot/internal/reminders"
	"github.com/hray3182/workoutbot/internal/trigger"
	"github.com/rs/zerolog"
)

// Messenger sends Telegram calls on behalf of the handlers.
type Messenger interface {
	Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(ctx context.Context, c tgbotapi.Chattable) error
}

type Handlers struct {
	out Messenger
	svc *reminders.Service
	log zerolog.Logger
}

func New(out Messenger, svc *reminders.Service) *Handlers {
	return &Handlers{
		out: out,
		svc: svc,
		log: logging.Component("handlers"),
	}
}

const doneAction = "done"

// DoneData is the callback payload of the "done" button for a rule.
func DoneData(ruleID int64) string {
	return doneAction + ":" + strconv.FormatInt(ruleID, 10)
}

// ParseDoneData extracts the rule id from a "done:<id>" payload.
func ParseDoneData(data string) (int64, bool) {
	action, rest, ok := strings.Cut(data, ":")
	if !ok || action != doneAction {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !h.ensureUser(ctx, msg.From) {
		return
	}

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "add":
		h.handleAdd(ctx, msg)
	case "everyday":
		h.handleEveryday(ctx, msg)
	case "days":
		h.handleDays(ctx, msg)
	case "list":
		h.handleList(ctx, msg)
	case "delete":
		h.handleDelete(ctx, msg)
	case "rename":
		h.handleRename(ctx, msg)
	case "done":
		h.handleDone(ctx, msg)
	case "stats":
		h.handleStats(ctx, msg)
	case "weeks":
		h.handleWeeks(ctx, msg)
	default:
		h.sendText(ctx, msg.Chat.ID, unknownText)
	}
}

// HandleMessage answers plain text, which the bot does not interpret.
func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !h.ensureUser(ctx, msg.From) {
		return
	}
	h.sendText(ctx, msg.Chat.ID, unknownText)
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if !h.ensureUser(ctx, callback.From) {
		return
	}

	ruleID, ok := ParseDoneData(callback.Data)
	if !ok {
		h.answerCallback(ctx, callback.ID, "", false)
		return
	}

	rule, err := h.svc.MarkDone(ctx, callback.From.ID, ruleID)
	switch {
	case errors.Is(err, reminders.ErrNotFound):
		h.answerCallback(ctx, callback.ID, "❌ Напоминание не найдено!", true)
		return
	case err != nil:
		logging.Ctx(ctx, h.log).Error().Err(err).Int64("rule_id", ruleID).Msg("Failed to mark reminder done")
		h.answerCallback(ctx, callback.ID, "❌ Ошибка.", true)
		return
	}

	if callback.Message != nil {
		var b format.Builder
		b.Bold("✅ Тренировка выполнена!").Plain("\n\n" + rule.Text + "\n\n🎉 Отлично! Так держать! 💪")
		r := b.Result()
		edit := tgbotapi.NewEditMessageText(callback.Message.Chat.ID, callback.Message.MessageID, r.Text)
		edit.Entities = r.Entities
		if _, err := h.out.Send(ctx, edit); err != nil {
			logging.Ctx(ctx, h.log).Warn().Err(err).Msg("Failed to edit reminder message")
		}
	}
	h.answerCallback(ctx, callback.ID, "🎉 Отмечено!", false)
}

func (h *Handlers) ensureUser(ctx context.Context, from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	if _, err := h.svc.EnsureUser(ctx, from.ID, from.UserName, from.FirstName); err != nil {
		logging.Ctx(ctx, h.log).Error().Err(err).Int64("user_id", from.ID).Msg("Failed to get/create user")
		return false
	}
	return true
}

func (h *Handlers) answerCallback(ctx context.Context, id, text string, alert bool) {
	answer := tgbotapi.NewCallback(id, text)
	if alert {
		answer = tgbotapi.NewCallbackWithAlert(id, text)
	}
	if err := h.out.Request(ctx, answer); err != nil {
		logging.Ctx(ctx, h.log).Warn().Err(err).Msg("Failed to answer callback")
	}
}

func (h *Handlers) sendText(ctx context.Context, chatID int64, text string) {
	h.send(ctx, format.Message(chatID, format.ParseMarkdown(text)))
}

func (h *Handlers) send(ctx context.Context, msg tgbotapi.MessageConfig) {
	if _, err := h.out.Send(ctx, msg); err != nil {
		logging.Ctx(ctx, h.log).Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send message")
	}
}

// replyError renders err for the user. Unexpected errors are logged.
func (h *Handlers) replyError(ctx context.Context, chatID int64, err error) {
	var (
		verr   *reminders.ValidationError
		serr   *reminders.SchedulingError
		dayErr *trigger.UnknownWeekdayError
	)
	var text string
	switch {
	case errors.As(err, &dayErr):
		text = "❌ Неизвестный день недели: " + dayErr.Token + "\nДни: пн, вт, ср, чт, пт, сб, вс"
	case errors.Is(err, trigger.ErrNoWeekdays):
		text = "❌ Не указаны дни недели.\nДни: пн, вт, ср, чт, пт, сб, вс"
	case errors.Is(err, trigger.ErrInvalidTime):
		text = "❌ Время должно быть в формате HH:MM, напр. 18:00"
	case errors.Is(err, trigger.ErrAlreadyPassed):
		text = "❌ Это время уже прошло сегодня. Укажи более позднее."
	case errors.Is(err, reminders.ErrEmptyText):
		text = "❌ Укажи текст напоминания."
	case errors.As(err, &verr):
		text = "❌ " + verr.Error()
	case errors.As(err, &serr):
		text = "⚠️ Напоминание сохранено (ID " + strconv.FormatInt(serr.RuleID, 10) +
			"), но не запланировано. Оно будет восстановлено при перезапуске."
	case errors.Is(err, reminders.ErrNotFound):
		text = "❌ Напоминание не найдено."
	default:
		logging.Ctx(ctx, h.log).Error().Err(err).Int64("chat_id", chatID).Msg("Command failed")
		text = "❌ Произошла ошибка. Попробуй позже."
	}
	h.send(ctx, tgbotapi.NewMessage(chatID, text))
}

const commandList = "• `/add HH:MM текст` — разовое на сегодня\n" +
	"• `/everyday HH:MM текст` — каждый день\n" +
	"• `/days пн,ср,пт HH:MM текст` — по дням недели\n" +
	"• /list — список активных\n" +
	"• `/delete ID` — удалить\n" +
	"• `/rename ID текст` — переименовать\n" +
	"• `/done ID` — отметить выполненным\n" +
	"• /stats — статистика за 7 дней\n" +
	"• /weeks — итоги по неделям"

const unknownText = "🤔 Не понимаю эту команду.\n\n**Команды:**\n" + commandList + "\n\nНужна помощь? /help 😊"

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	var b format.Builder
	b.Plain("💪 Привет, " + msg.From.FirstName + "!\n\n")
	b.Plain("Я твой помощник-напоминалка о тренировках 🏋️\n\n")
	help := format.ParseMarkdown("**Команды:**\n" + commandList + "\n\nПример: `/add 18:00 Тренировка в спортзале` 💪")
	h.send(ctx, format.Message(msg.Chat.ID, concat(b.Result(), help)))
}

func (h *Handlers) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	h.sendText(ctx, msg.Chat.ID, "📖 **Команды**\n\n"+commandList+
		"\n\nВремя указывается в часовом поясе "+h.svc.Location().String()+".")
}

// concat appends b to a, shifting the entities of b.
func concat(a, b format.ParseResult) format.ParseResult {
	shift := format.UTF16Len(a.Text)
	out := format.ParseResult{Text: a.Text + b.Text, Entities: append([]tgbotapi.MessageEntity(nil), a.Entities...)}
	for _, e := range b.Entities {
		e.Offset += shift
		out.Entities = append(out.Entities, e)
	}
	return out
}
