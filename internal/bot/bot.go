package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/workoutbot/internal/bot/handlers"
	"github.com/hray3182/workoutbot/internal/logging"
	"github.com/hray3182/workoutbot/internal/reminders"
	"github.com/rs/zerolog"
)

// UpdateSource is the long polling side of tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	updates  UpdateSource
	handlers *handlers.Handlers
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewAPI connects to Telegram with token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return api, nil
}

func New(updates UpdateSource, out *Outbox, svc *reminders.Service) *Bot {
	return &Bot{
		updates:  updates,
		handlers: handlers.New(out, svc),
		log:      logging.Component("bot"),
	}
}

// Start polls updates until ctx is done and waits for running handlers.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.updates.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.updates.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx = logging.WithCorrelationID(ctx)
	log := logging.Ctx(ctx, b.log).With().Int("update_id", update.UpdateID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		log.Debug().Str("data", update.CallbackQuery.Data).Msg("Callback query")
		b.handlers.HandleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message == nil:
	case update.Message.IsCommand():
		log.Debug().Str("command", update.Message.Command()).Msg("Command")
		b.handlers.HandleCommand(ctx, update.Message)
	default:
		b.handlers.HandleMessage(ctx, update.Message)
	}
}
