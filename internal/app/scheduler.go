/**
 * @description
 * Cron scheduler setup for the ledger audit job.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/transfa/bank-service/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. An empty schedule
// disables the audit.
func (s *Scheduler) Start() error {
	if s.config.LedgerAuditSchedule == "" {
		s.logger.Info("ledger audit job disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.LedgerAuditSchedule, s.jobs.AuditLedger); err != nil {
		s.logger.Error("failed to schedule ledger audit job", "error", err)
		return err
	}
	s.logger.Info("scheduled ledger audit job", "schedule", s.config.LedgerAuditSchedule)

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
