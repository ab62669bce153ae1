package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/workoutbot/internal/analytics"
	"github.com/hray3182/workoutbot/internal/bot/handlers"
	"github.com/hray3182/workoutbot/internal/format"
	"github.com/hray3182/workoutbot/internal/jobs"
	"github.com/hray3182/workoutbot/internal/logging"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Sender is the part of tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Outbox rate limits outgoing messages and stops sending while Telegram keeps
// failing. Every message of the bot goes through it.
type Outbox struct {
	api     Sender
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[tgbotapi.Message]
	log     zerolog.Logger
}

func NewOutbox(api Sender, perSecond float64) *Outbox {
	if perSecond <= 0 {
		perSecond = 25
	}
	burst := max(int(perSecond), 1)
	o := &Outbox{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		log:     logging.Component("outbox"),
	}
	o.breaker = gobreaker.NewCircuitBreaker[tgbotapi.Message](gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A rejection of one chat says nothing about Telegram being up.
		IsSuccessful: func(err error) bool {
			var apiErr *tgbotapi.Error
			return err == nil || (errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
	return o
}

// Send waits for the rate limiter and sends c through the breaker.
func (o *Outbox) Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return o.breaker.Execute(func() (tgbotapi.Message, error) {
		return o.api.Send(c)
	})
}

// Request is used for calls without a message result, such as callback
// answers. It is rate limited but bypasses the breaker.
func (o *Outbox) Request(ctx context.Context, c tgbotapi.Chattable) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := o.api.Request(c)
	return err
}

// Notifier delivers due reminders and weekly reports as Telegram messages.
type Notifier struct {
	out *Outbox
}

func NewNotifier(out *Outbox) *Notifier {
	return &Notifier{out: out}
}

func (n *Notifier) Notify(ctx context.Context, p jobs.Payload) error {
	var b format.Builder
	b.Bold("💪 Время тренировки!").Plain("\n\n" + p.Text)
	msg := b.Message(p.OwnerID)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Выполнено", handlers.DoneData(p.RuleID)),
		),
	)
	if _, err := n.out.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send reminder %d: %w", p.RuleID, err)
	}
	return nil
}

func (n *Notifier) ReportWeeks(ctx context.Context, ownerID int64, weeks []analytics.WeekReport) error {
	if len(weeks) == 0 {
		return nil
	}
	if _, err := n.out.Send(ctx, handlers.WeeksMessage(ownerID, "🗓 Итоги недели", weeks)); err != nil {
		return fmt.Errorf("failed to send weekly report: %w", err)
	}
	return nil
}
