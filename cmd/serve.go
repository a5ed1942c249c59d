package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/codecycle/internal/bot"
	"github.com/example/codecycle/internal/scheduler"
	"github.com/example/codecycle/internal/server"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Telegram bot and the daily jobs",
	RunE:  withApp(runServe),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string, a *app) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	api := server.New(server.Services{
		Reviews:  a.engine,
		Auth:     a.auth,
		Syncer:   a.syncer,
		Profiles: a.leetcode,
		History:  a.reviews,
	}, server.Options{
		CORSOrigins:   a.cfg.CORSOrigins,
		SecureCookies: !a.cfg.IsDev(),
	}, a.log)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	var notifier scheduler.Notifier
	if a.cfg.TelegramToken != "" {
		b, err := bot.New(bot.DefaultConfig(a.cfg.TelegramToken), a.engine, a.auth, a.users, a.log)
		if err != nil {
			return err
		}
		notifier = b
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Start(ctx); err != nil {
				a.log.Error("bot error", "error", err)
			}
		}()
	} else {
		a.log.Info("telegram_token is not set, bot disabled")
	}

	var jobs *scheduler.Scheduler
	if a.cfg.SchedulerEnabled {
		jobs = scheduler.New(notifier, a.engine, a.users, a.syncer, scheduler.Options{
			Location:     a.cfg.Location,
			ReminderHour: a.cfg.ReminderHour,
			SyncHour:     a.cfg.SyncHour,
		}, a.log)
		if err := jobs.Start(ctx); err != nil {
			return err
		}
	}

	go func() {
		a.log.Info("http server listening", "addr", a.cfg.ListenAddr())
		if err := api.Start(a.cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		a.log.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	case runErr = <-errCh:
		a.log.Error("http server failed", "error", runErr)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if jobs != nil {
		jobs.Stop()
	}
	if err := api.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("error during shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.log.Warn("timed out waiting for the bot to stop")
	}

	a.log.Info("stopped")
	return runErr
}
