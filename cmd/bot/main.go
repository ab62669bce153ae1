package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	"github.com/hray3182/workoutbot/internal/config"
	"github.com/hray3182/workoutbot/internal/logging"
)

var CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Run the bot, the scheduler and the weekly sweep." default:"1"`
	Migrate  MigrateCmd  `cmd:"" help:"Open the store and apply its schema."`
	Restore  RestoreCmd  `cmd:"" help:"Rebuild jobs from active reminders and print them."`
	Finalize FinalizeCmd `cmd:"" help:"Finalize past weeks for every user."`
}

// appContext is passed to every command's Run.
type appContext struct {
	ctx context.Context
	cfg *config.Config
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("workoutbot"),
		kong.Description("Telegram workout reminders with weekly completion stats"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := kctx.Run(&appContext{ctx: ctx, cfg: cfg}); err != nil {
		logging.Logger().Error().Err(err).Str("command", kctx.Command()).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}
