/*
scheduler.go - Cron scheduler for the periodic policy jobs

PURPOSE:
  Drives the three batch procedures on their statutory cadence:
    - Monthly earned-leave accrual, first day of each month
    - Casual-leave lapse, January 1 (lapses the year just ended)
    - Overstay detection, every morning

AT-MOST-ONCE:
  The accrual job is not idempotent per month; this scheduler is the
  component that owns at-most-once execution per period. Run exactly
  one scheduler instance per deployment.

CRON EXPRESSIONS:
  Standard five-field cron via robfig/cron, evaluated in the org
  timezone so "midnight on the 1st" means local midnight.

SEE ALSO:
  - jobs/: The job implementations
  - cmd/server/main.go: Scheduler startup
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/jobs"
	"github.com/cdbl/leave-engine/policy"
)

// SchedulerConfig carries the cron expressions for each job. Zero
// values fall back to the statutory defaults.
type SchedulerConfig struct {
	AccrualSpec  string // default "0 0 1 * *"  (monthly, 1st at 00:00)
	LapseSpec    string // default "0 0 1 1 *"  (yearly, Jan 1 at 00:00)
	OverstaySpec string // default "0 6 * * *"  (daily at 06:00)
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.AccrualSpec == "" {
		c.AccrualSpec = "0 0 1 * *"
	}
	if c.LapseSpec == "" {
		c.LapseSpec = "0 0 1 1 *"
	}
	if c.OverstaySpec == "" {
		c.OverstaySpec = "0 6 * * *"
	}
	return c
}

// Scheduler runs the periodic policy jobs on their cron cadence.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewScheduler registers the three jobs against the store and rules.
func NewScheduler(s Store, cal *calendar.Calendar, rules policy.Config, cfg SchedulerConfig, log *zap.Logger) (*Scheduler, error) {
	cfg = cfg.withDefaults()
	c := cron.New(cron.WithLocation(cal.Location()))

	accrual := &jobs.AccrualJob{
		Members: s, Balances: s, Leaves: s, Audit: s, Rules: rules, Log: log,
	}
	lapse := &jobs.LapseJob{Balances: s, Audit: s, Rules: rules, Log: log}
	overstay := &jobs.OverstayJob{Leaves: s, Audit: s, Log: log}

	// Accrual targets the month that just started.
	if _, err := c.AddFunc(cfg.AccrualSpec, func() {
		now := time.Now().In(cal.Location())
		if _, err := accrual.Run(context.Background(), now.Year(), now.Month()); err != nil {
			log.Error("scheduled accrual run failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	// Lapse targets the year that just ended.
	if _, err := c.AddFunc(cfg.LapseSpec, func() {
		year := time.Now().In(cal.Location()).Year() - 1
		if _, err := lapse.Run(context.Background(), year); err != nil {
			log.Error("scheduled lapse run failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(cfg.OverstaySpec, func() {
		if _, err := overstay.Run(context.Background(), cal.Today()); err != nil {
			log.Error("scheduled overstay run failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	return &Scheduler{cron: c, log: log}, nil
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}
