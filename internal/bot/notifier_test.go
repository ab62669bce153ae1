package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/workoutbot/internal/analytics"
	"github.com/hray3182/workoutbot/internal/jobs"
	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/trigger"
	gobreaker "github.com/sony/gobreaker/v2"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []tgbotapi.MessageConfig
	err   error
	calls int
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, m)
	}
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

func (s *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestNotifyAddsDoneButton(t *testing.T) {
	t.Parallel()
	api := &fakeSender{}
	n := NewNotifier(NewOutbox(api, 100))

	err := n.Notify(context.Background(), jobs.Payload{OwnerID: 42, RuleID: 7, Text: "Run", Kind: trigger.WeekdaySet})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages", len(api.sent))
	}
	msg := api.sent[0]
	if msg.ChatID != 42 || !strings.HasSuffix(msg.Text, "\n\nRun") {
		t.Fatalf("message = %+v", msg)
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 {
		t.Fatalf("reply markup = %#v", msg.ReplyMarkup)
	}
	btn := kb.InlineKeyboard[0][0]
	if btn.CallbackData == nil || *btn.CallbackData != "done:7" {
		t.Fatalf("button = %+v", btn)
	}
}

func TestBreakerOpensAfterServerErrors(t *testing.T) {
	t.Parallel()
	api := &fakeSender{err: errors.New("connection reset")}
	n := NewNotifier(NewOutbox(api, 1000))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := n.Notify(ctx, jobs.Payload{OwnerID: 1, RuleID: 1}); err == nil {
			t.Fatal("notify succeeded against a failing api")
		}
	}
	err := n.Notify(ctx, jobs.Payload{OwnerID: 1, RuleID: 1})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open breaker", err)
	}
	if api.calls != 5 {
		t.Fatalf("api called %d times, want 5", api.calls)
	}
}

func TestBlockedChatDoesNotOpenBreaker(t *testing.T) {
	t.Parallel()
	api := &fakeSender{err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}
	n := NewNotifier(NewOutbox(api, 1000))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if err := n.Notify(ctx, jobs.Payload{OwnerID: 1, RuleID: 1}); errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("breaker opened after %d client errors", i)
		}
	}
}

func TestReportWeeks(t *testing.T) {
	t.Parallel()
	api := &fakeSender{}
	n := NewNotifier(NewOutbox(api, 100))
	ctx := context.Background()

	if err := n.ReportWeeks(ctx, 42, nil); err != nil || len(api.sent) != 0 {
		t.Fatalf("empty report sent a message: %v", err)
	}
	weeks := []analytics.WeekReport{{
		Label:   "05.10–11.10.2026",
		Percent: 71,
		Summary: &models.WeeklySummary{DoneTotal: 10, PlannedTotal: 14},
	}}
	if err := n.ReportWeeks(ctx, 42, weeks); err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(api.sent) != 1 || !strings.Contains(api.sent[0].Text, "10 из 14 (71%)") {
		t.Fatalf("sent = %+v", api.sent)
	}
}
