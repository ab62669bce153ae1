package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/workoutbot/internal/format"
	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/trigger"
)

var errUsage = errors.New("usage")

// splitArgs splits s into n-1 whitespace separated fields and the remainder.
func splitArgs(s string, n int) ([]string, error) {
	parts := make([]string, 0, n)
	rest := strings.TrimSpace(s)
	for len(parts) < n-1 {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i <= 0 {
			return nil, errUsage
		}
		parts = append(parts, rest[:i])
		rest = strings.TrimSpace(rest[i:])
	}
	if rest == "" {
		return nil, errUsage
	}
	return append(parts, rest), nil
}

func parseID(args string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		return 0, errUsage
	}
	return id, nil
}

func (h *Handlers) handleAdd(ctx context.Context, msg *tgbotapi.Message) {
	args, err := splitArgs(msg.CommandArguments(), 2)
	if err != nil {
		h.sendText(ctx, msg.Chat.ID, "❌ Формат: `/add HH:MM текст`\nНапример: `/add 18:00 Тренировка в спортзале`")
		return
	}
	rule, err := h.svc.CreateOnce(ctx, msg.From.ID, args[0], args[1])
	h.replyCreated(ctx, msg.Chat.ID, "✅ Напоминание создано!", rule, err)
}

func (h *Handlers) handleEveryday(ctx context.Context, msg *tgbotapi.Message) {
	args, err := splitArgs(msg.CommandArguments(), 2)
	if err != nil {
		h.sendText(ctx, msg.Chat.ID, "❌ Формат: `/everyday HH:MM текст`\nНапример: `/everyday 07:00 Утренняя пробежка`")
		return
	}
	rule, err := h.svc.CreateDaily(ctx, msg.From.ID, args[0], args[1])
	h.replyCreated(ctx, msg.Chat.ID, "✅ Ежедневное напоминание создано!", rule, err)
}

func (h *Handlers) handleDays(ctx context.Context, msg *tgbotapi.Message) {
	args, err := splitArgs(msg.CommandArguments(), 3)
	if err != nil {
		h.sendText(ctx, msg.Chat.ID, "❌ Формат: `/days дни HH:MM текст`\nНапр.: `/days пн,ср,пт 19:00 Силовая тренировка`\nДоступные дни: пн, вт, ср, чт, пт, сб, вс")
		return
	}
	rule, err := h.svc.CreateWeekdays(ctx, msg.From.ID, args[0], args[1], args[2])
	h.replyCreated(ctx, msg.Chat.ID, "✅ Напоминание по дням создано!", rule, err)
}

func (h *Handlers) replyCreated(ctx context.Context, chatID int64, title string, rule *models.Reminder, err error) {
	if err != nil {
		h.replyError(ctx, chatID, err)
		return
	}
	var b format.Builder
	b.Bold(title).Plain("\n")
	if rule.Kind == trigger.WeekdaySet {
		b.Plain("📅 Дни: " + rule.Weekdays.String() + "\n")
	}
	b.Plain("🕐 " + rule.At.String() + "\n")
	b.Plain("📝 " + rule.Text + "\n")
	b.Plain("🆔 ID: ").Code(strconv.FormatInt(rule.ReminderID, 10))
	h.send(ctx, b.Message(chatID))
}

var kindEmoji = map[trigger.Kind]string{
	trigger.Once:       "🔔",
	trigger.Daily:      "🔄",
	trigger.WeekdaySet: "📅",
}

func (h *Handlers) handleList(ctx context.Context, msg *tgbotapi.Message) {
	rules, err := h.svc.List(ctx, msg.From.ID)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, err)
		return
	}
	if len(rules) == 0 {
		h.sendText(ctx, msg.Chat.ID, "📋 У тебя пока нет активных напоминаний.")
		return
	}

	loc := h.svc.Location()
	var b format.Builder
	b.Bold("📋 Твои активные напоминания:").Plain("\n\n")
	for _, r := range rules {
		b.Plain(kindEmoji[r.Kind] + " ").Bold(fmt.Sprintf("ID %d", r.ReminderID)).Plain("\n")
		b.Plain("📝 " + r.Text + "\n")
		b.Plain("📊 " + r.Trigger(loc).Describe() + "\n")
		b.Plain("📅 Создано: " + r.CreatedAt.In(loc).Format("02.01.2006 15:04") + "\n\n")
	}
	h.send(ctx, b.Message(msg.Chat.ID))
}

func (h *Handlers) handleDelete(ctx context.Context, msg *tgbotapi.Message) {
	id, err := parseID(msg.CommandArguments())
	if err != nil {
		h.sendText(ctx, msg.Chat.ID, "❌ Формат: `/delete ID`")
		return
	}
	if err := h.svc.Delete(ctx, msg.From.ID, id); err != nil {
		h.replyError(ctx, msg.Chat.ID, err)
		return
	}
	h.sendText(ctx, msg.Chat.ID, fmt.Sprintf("✅ Напоминание удалено! ID: %d", id))
}

func (h *Handlers) handleRename(ctx context.Context, msg *tgbotapi.Message) {
	args, err := splitArgs(msg.CommandArguments(), 2)
	if err != nil {
		h.sendText(ctx, msg.Chat.ID, "❌ Формат: `/rename ID текст`")
		return
	}
	id, err := parseID(args[0])
	if err != nil {
		h.sendText(ctx, msg.Chat.ID, "❌ ID должен быть числом.")
		return
	}
	if err := h.svc.Rename(ctx, msg.From.ID, id, args[1]); err != nil {
		h.replyError(ctx, msg.Chat.ID, err)
		return
	}
	var b format.Builder
	b.Plain("✏️ Напоминание ").Code(strconv.FormatInt(id, 10)).Plain(" переименовано:\n📝 " + strings.TrimSpace(args[1]))
	h.send(ctx, b.Message(msg.Chat.ID))
}

func (h *Handlers) handleDone(ctx context.Context, msg *tgbotapi.Message) {
	id, err := parseID(msg.CommandArguments())
	if err != nil {
		h.sendText(ctx, msg.Chat.ID, "❌ Формат: `/done ID`")
		return
	}
	rule, err := h.svc.MarkDone(ctx, msg.From.ID, id)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, err)
		return
	}
	var b format.Builder
	b.Bold("🎉 Отлично! Тренировка выполнена!").Plain("\n💪 " + rule.Text + "\n⭐ Так держать!")
	h.send(ctx, b.Message(msg.Chat.ID))
}
