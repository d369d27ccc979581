package core

// scheduler.go runs background maintenance jobs on a cron schedule.
//
// Currently the only job is audit retention: entries older than the
// retention window are deleted from the store. Failed runs are logged and
// retried on the next tick; they never stop the application.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig holds configuration for the audit retention job.
type RetentionConfig struct {
	Schedule      string        // Standard 5-field cron spec, e.g. "0 3 * * *"
	RetentionDays int           // Entries older than this are pruned
	Timeout       time.Duration // Per-run timeout (default: 1m)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// StartAuditRetention schedules the audit retention job. Calling it again
// replaces the previous schedule.
func (s *Service) StartAuditRetention(cfg RetentionConfig) error {
	if cfg.RetentionDays <= 0 {
		return errors.New("audit retention days must be positive")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	l := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(cfg.Schedule, func() { s.runRetentionJob(cfg) }); err != nil {
		return fmt.Errorf("invalid audit retention schedule %q: %w", cfg.Schedule, err)
	}

	s.StopScheduler()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	c.Start()

	s.logger.Info("audit retention scheduled",
		"schedule", cfg.Schedule,
		"retention_days", cfg.RetentionDays,
	)
	return nil
}

// StopScheduler stops the cron scheduler and waits for a running job.
func (s *Service) StopScheduler() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("scheduler stopped")
	}
}

// runRetentionJob performs one prune cycle.
func (s *Service) runRetentionJob(cfg RetentionConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if _, err := s.PruneAudit(ctx, cfg.RetentionDays); err != nil {
		s.logger.Error("audit retention failed", "error", err)
	}
}

// PruneAudit deletes audit entries older than retentionDays.
func (s *Service) PruneAudit(ctx context.Context, retentionDays int) (int, error) {
	start := time.Now()
	cutoff := s.audit.now().AddDate(0, 0, -retentionDays)

	pruned, err := s.audit.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.logger.Info("pruned audit entries",
		"entries_pruned", pruned,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return pruned, nil
}
