package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nudge-planner/internal/metrics"
)

// ScanFunc is one periodic pass over the store.
type ScanFunc func(ctx context.Context) (ScanReport, error)

// Jobs groups the scans the scheduler drives.
type Jobs struct {
	Nudges    *NudgeService
	Reminders *ReminderService
	Digest    *DigestService
}

// Schedule holds the timer settings for each scan.
type Schedule struct {
	EscalationInterval time.Duration
	ReminderInterval   time.Duration
	StreakDigestTime   string
	DailyPromptTime    string
	// AnnounceChatID gates the daily prompt.
	AnnounceChatID int64
	// RunTimeout bounds one tick of a daily scan. Interval scans use their interval.
	RunTimeout time.Duration
}

// RegisterJobs wires every scan into the scheduler. Scans share nothing in memory;
// each tick reads its candidates from the store.
func RegisterJobs(ctx context.Context, scheduler *SchedulerService, jobs Jobs, sched Schedule, logger *zap.Logger) error {
	daily := sched.RunTimeout
	if daily <= 0 {
		daily = 30 * time.Minute
	}

	if _, err := scheduler.ScheduleInterval(sched.EscalationInterval,
		runner(ctx, scanEscalation, sched.EscalationInterval, jobs.Nudges.Scan, logger)); err != nil {
		return fmt.Errorf("schedule escalation scan: %w", err)
	}
	if _, err := scheduler.ScheduleInterval(sched.ReminderInterval,
		runner(ctx, scanReminder, sched.ReminderInterval, jobs.Reminders.Scan, logger)); err != nil {
		return fmt.Errorf("schedule reminder scan: %w", err)
	}
	if _, err := scheduler.ScheduleDaily(sched.StreakDigestTime,
		runner(ctx, scanDigest, daily, jobs.Digest.StreakDigest, logger)); err != nil {
		return fmt.Errorf("schedule streak digest: %w", err)
	}

	if sched.AnnounceChatID != 0 {
		if _, err := scheduler.ScheduleDaily(sched.DailyPromptTime,
			runner(ctx, scanPrompt, daily, jobs.Digest.DailyPrompt, logger)); err != nil {
			return fmt.Errorf("schedule daily prompt: %w", err)
		}
	} else {
		logger.Info("daily prompt disabled, no announce chat configured")
	}
	return nil
}

// runner adapts a scan to a cron job: one run id, one timeout and one log line per tick.
// A failed tick is logged here and never propagates.
func runner(parent context.Context, name string, timeout time.Duration, scan ScanFunc, logger *zap.Logger) func() {
	return func() {
		if parent.Err() != nil {
			return
		}
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		log := logger.With(zap.String("scan", name), zap.String("run_id", uuid.NewString()))
		started := time.Now()
		report, err := scan(ctx)
		elapsed := time.Since(started)

		if err != nil {
			metrics.RecordScan(name, "error", elapsed)
			log.Error("scan failed", append(report.Fields(), zap.Duration("elapsed", elapsed), zap.Error(err))...)
			return
		}
		metrics.RecordScan(name, "ok", elapsed)
		if report.Scanned == 0 {
			log.Debug("scan finished, nothing to do", zap.Duration("elapsed", elapsed))
			return
		}
		log.Info("scan finished", append(report.Fields(), zap.Duration("elapsed", elapsed))...)
	}
}
