package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/workoutbot/internal/analytics"
	"github.com/hray3182/workoutbot/internal/format"
	"github.com/hray3182/workoutbot/internal/trigger"
)

// Motivation picks the closing line of /stats from the 7-day done total.
func Motivation(done int) string {
	switch {
	case done == 0:
		return "💪 Время начать тренироваться! Ты можешь это сделать!"
	case done < 3:
		return "🔥 Неплохое начало! Продолжай в том же духе!"
	case done < 7:
		return "⭐ Отлично! Ты на правильном пути к цели!"
	default:
		return "🏆 Невероятно! Ты настоящий чемпион!"
	}
}

func (h *Handlers) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	days, err := h.svc.Last7Days(ctx, msg.From.ID)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, err)
		return
	}
	rules, err := h.svc.List(ctx, msg.From.ID)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, err)
		return
	}
	h.send(ctx, StatsMessage(msg.Chat.ID, days, len(rules)))
}

// StatsMessage renders the 7-day view, most recent day first.
func StatsMessage(chatID int64, days []analytics.DayStat, active int) tgbotapi.MessageConfig {
	done, planned := 0, 0
	var b format.Builder
	b.Bold(fmt.Sprintf("📊 Статистика за %d дней:", len(days))).Plain("\n\n")
	for _, d := range days {
		done += d.Done
		planned += d.Planned
		mark := "▫️"
		switch {
		case d.Planned > 0 && d.Done >= d.Planned:
			mark = "✅"
		case d.Done > 0:
			mark = "☑️"
		}
		b.Plain(fmt.Sprintf("%s %s %s — %d/%d\n", mark, trigger.ShortName(d.Date.Weekday()), d.Date.Format("02.01"), d.Done, d.Planned))
	}
	b.Plain(fmt.Sprintf("\n✅ Выполнено тренировок: %d из %d\n", done, planned))
	b.Plain(fmt.Sprintf("🔔 Активных напоминаний: %d\n\n", active))
	b.Plain(Motivation(done))
	return b.Message(chatID)
}

func (h *Handlers) handleWeeks(ctx context.Context, msg *tgbotapi.Message) {
	if _, err := h.svc.FinalizePastWeeks(ctx, msg.From.ID); err != nil {
		h.replyError(ctx, msg.Chat.ID, err)
		return
	}
	weeks, err := h.svc.WeeklySummaries(ctx, msg.From.ID)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, err)
		return
	}
	if len(weeks) == 0 {
		h.sendText(ctx, msg.Chat.ID, "🗓 Пока нет завершённых недель.")
		return
	}
	h.send(ctx, WeeksMessage(msg.Chat.ID, "🗓 Итоги по неделям", weeks))
}

// WeeksMessage renders finalized weeks under a bold title.
func WeeksMessage(chatID int64, title string, weeks []analytics.WeekReport) tgbotapi.MessageConfig {
	var b format.Builder
	b.Bold(title).Plain("\n\n")
	for _, w := range weeks {
		b.Plain("📅 ").Bold(w.Label).Plain(fmt.Sprintf("\n✅ %d из %d (%d%%)\n\n",
			w.Summary.DoneTotal, w.Summary.PlannedTotal, w.Percent))
	}
	msg := b.Message(chatID)
	msg.Text = strings.TrimRight(msg.Text, "\n")
	return msg
}
