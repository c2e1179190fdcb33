/*
main.go - Leave engine server startup

STARTUP SEQUENCE:
  1. Load configuration (file + environment)
  2. Open the SQLite store (auto-migrates)
  3. Build the organizational calendar, rule table, approval chains
  4. Wire handlers, router, and the cron scheduler
  5. Serve until SIGINT/SIGTERM, then drain

SEE ALSO:
  - config/: Configuration resolution
  - api/:    Router, handlers, scheduler
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cdbl/leave-engine/api"
	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/config"
	"github.com/cdbl/leave-engine/policy"
	"github.com/cdbl/leave-engine/store/sqlite"
	"github.com/cdbl/leave-engine/workflow"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	weekend, err := cfg.Weekend()
	if err != nil {
		return err
	}
	cal, err := calendar.New(cfg.Calendar.Timezone, weekend)
	if err != nil {
		return err
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	rules := policy.DefaultConfig()
	if err := rules.Validate(); err != nil {
		return err
	}
	chains := workflow.DefaultTable()

	handler := api.NewHandler(db, cal, rules, chains, log)
	router := api.NewRouter(handler)

	var sched *api.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = api.NewScheduler(db, cal, rules, api.SchedulerConfig{
			AccrualSpec:  cfg.Scheduler.AccrualSpec,
			LapseSpec:    cfg.Scheduler.LapseSpec,
			OverstaySpec: cfg.Scheduler.OverstaySpec,
		}, log)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("db", cfg.DB.Path),
			zap.String("timezone", cfg.Calendar.Timezone))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
