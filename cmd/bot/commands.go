package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hray3182/workoutbot/internal/analytics"
	"github.com/hray3182/workoutbot/internal/bot"
	"github.com/hray3182/workoutbot/internal/jobs"
	"github.com/hray3182/workoutbot/internal/logging"
	"github.com/hray3182/workoutbot/internal/metrics"
	"github.com/hray3182/workoutbot/internal/reminders"
	"github.com/hray3182/workoutbot/internal/scheduler"
)

type ServeCmd struct {
	ShutdownTimeout time.Duration `help:"How long to wait for in-flight reminders on exit." default:"20s"`
}

func (c *ServeCmd) Run(app *appContext) error {
	cfg := app.cfg
	log := logging.Component("main")
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	stores, err := openStores(app.ctx, cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer stores.Close()

	api, err := bot.NewAPI(cfg.TelegramToken)
	if err != nil {
		return err
	}
	log.Info().Str("bot", api.Self.UserName).Msg("Authorized on Telegram")

	out := bot.NewOutbox(api, cfg.SendRate)
	notifier := bot.NewNotifier(out)

	sched := scheduler.New(jobs.NewRegistry(), notifier, stores.Reminders, scheduler.Options{
		Location:        cfg.Location(),
		Workers:         cfg.DispatchWorkers,
		DispatchTimeout: cfg.DispatchTimeout,
	})
	if _, err := sched.Restore(app.ctx, time.Now()); err != nil {
		return err
	}
	sched.Start(app.ctx)

	engine := analytics.NewEngine(stores, cfg.Location())
	sweeper := analytics.NewSweeper(engine, notifier, cfg.FinalizeSchedule)
	if err := sweeper.Start(app.ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	svc := reminders.NewService(stores, sched, engine)
	b := bot.New(api, out, svc)

	ctx, cancel := context.WithCancel(app.ctx)
	defer cancel()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	log.Info().Str("tz", cfg.Location().String()).Msg("Starting bot")
	err = b.Start(ctx)
	cancel()
	log.Info().Msg("Shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer stopCancel()
	if stopErr := sched.Stop(stopCtx); stopErr != nil {
		log.Warn().Err(stopErr).Msg("Scheduler did not drain in time")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(app *appContext) error {
	stores, err := openStores(app.ctx, app.cfg.DatabaseURI)
	if err != nil {
		return err
	}
	stores.Close()
	log := logging.Component("main")
	log.Info().Msg("Schema is up to date")
	return nil
}

type RestoreCmd struct {
	DryRun bool `help:"Only print the jobs, leave the store untouched."`
}

func (c *RestoreCmd) Run(app *appContext) error {
	stores, err := openStores(app.ctx, app.cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer stores.Close()

	sched := scheduler.New(jobs.NewRegistry(), nil, stores.Reminders, scheduler.Options{Location: app.cfg.Location()})
	restore := sched.Restore
	if c.DryRun {
		restore = sched.PlanRestore
	}
	report, err := restore(app.ctx, time.Now())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tOWNER\tKIND\tNEXT FIRE\tTEXT")
	for _, j := range report.Jobs {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", j.ID, j.Payload.OwnerID, j.Payload.Kind,
			j.NextFire.In(app.cfg.Location()).Format("2006-01-02 15:04 Mon"), j.Payload.Text)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nrestored %d, skipped %d, failed %d\n", report.Restored, report.Skipped, report.Failed)
	return nil
}

type FinalizeCmd struct {
	Notify bool `help:"Send newly finalized weeks to their owners on Telegram."`
}

func (c *FinalizeCmd) Run(app *appContext) error {
	stores, err := openStores(app.ctx, app.cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer stores.Close()

	var reporter analytics.Reporter
	if c.Notify {
		if err := app.cfg.RequireToken(); err != nil {
			return err
		}
		api, err := bot.NewAPI(app.cfg.TelegramToken)
		if err != nil {
			return err
		}
		reporter = bot.NewNotifier(bot.NewOutbox(api, app.cfg.SendRate))
	}

	engine := analytics.NewEngine(stores, app.cfg.Location())
	created, err := analytics.NewSweeper(engine, reporter, app.cfg.FinalizeSchedule).Run(app.ctx)
	if err != nil {
		return err
	}
	fmt.Printf("finalized %d week(s)\n", created)
	return nil
}
