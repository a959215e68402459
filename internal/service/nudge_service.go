package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nudge-planner/internal/clock"
	"nudge-planner/internal/metrics"
	"nudge-planner/internal/model"
	"nudge-planner/internal/notify"
	"nudge-planner/internal/policy"
	"nudge-planner/internal/repository"
)

const scanEscalation = "escalation"

// NudgeService runs the escalation scan over open tasks.
type NudgeService struct {
	taskRepo   *repository.TaskRepository
	policy     policy.Escalation
	dispatcher *notify.Dispatcher
	claims     Claimer
	clock      *clock.Clock
	logger     *zap.Logger

	// transientRetries is how many non-fatal delivery failures a task survives.
	// Zero closes the task on the first failure of any kind.
	transientRetries int
}

func NewNudgeService(
	taskRepo *repository.TaskRepository,
	p policy.Escalation,
	dispatcher *notify.Dispatcher,
	claims Claimer,
	clk *clock.Clock,
	transientRetries int,
	logger *zap.Logger,
) *NudgeService {
	if claims == nil {
		claims = NopClaimer{}
	}
	return &NudgeService{
		taskRepo:         taskRepo,
		policy:           p,
		dispatcher:       dispatcher,
		claims:           claims,
		clock:            clk,
		transientRetries: transientRetries,
		logger:           logger.With(zap.String("scan", scanEscalation)),
	}
}

// Scan evaluates every open task once. A failing row is logged and the scan moves on;
// only a failure to load the candidates fails the whole tick.
func (s *NudgeService) Scan(ctx context.Context) (ScanReport, error) {
	var report ScanReport

	tasks, err := s.taskRepo.ListOpen(ctx)
	if err != nil {
		return report, err
	}

	now := s.clock.Now()
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		outcome, err := s.process(ctx, task, now)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		metrics.RecordRow(scanEscalation, outcome)
		switch outcome {
		case "sent":
			report.Sent++
		case "closed":
			report.Closed++
		case "failed":
			report.Failed++
		case "error":
			report.Errors++
			s.logger.Error("escalation row failed", zap.Uint("task_id", task.ID), zap.Error(err))
		default:
			report.Skipped++
		}
	}
	return report, nil
}

func (s *NudgeService) process(ctx context.Context, task model.Task, now time.Time) (string, error) {
	reason := s.policy.Decide(task, now)
	if reason == policy.ReasonMalformed {
		s.logger.Warn("skipping task with unreadable timestamps", zap.Uint("task_id", task.ID))
	}
	if reason != policy.ReasonReady {
		return string(reason), nil
	}

	key := fmt.Sprintf("escalation:%d:%d", task.ID, task.NotificationCount)
	claimed, err := s.claims.Claim(ctx, key, claimTTL(s.policy.Cooldown))
	if err != nil {
		return "error", fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		metrics.RecordClaimConflict(scanEscalation)
		return "claimed", nil
	}

	sendErr := notify.ErrTargetNotFound
	if task.HasTarget() {
		text := s.dispatcher.Phrases().Compose(notify.KindEscalation)
		sendErr = s.dispatcher.Escalate(ctx, task.Target(), text)
	}
	if ctx.Err() != nil || errors.Is(sendErr, notify.ErrThrottled) {
		// Shutdown or no send budget: nothing reached the chat, leave the row for the next run.
		if err := releaseClaim(s.claims, key); err != nil {
			s.logger.Warn("release claim", zap.String("key", key), zap.Error(err))
		}
		return "abandoned", nil
	}

	if sendErr == nil {
		ok, err := s.taskRepo.RecordNotified(ctx, task.ID, task.NotificationCount, now)
		if err != nil {
			return "error", err
		}
		if !ok {
			return "stale", nil
		}
		s.logger.Info("escalation sent",
			zap.Uint("task_id", task.ID),
			zap.Uint("user_id", task.UserID),
			zap.Int("count", task.NotificationCount+1),
		)
		return "sent", nil
	}

	closeTask := s.shouldClose(task, sendErr)
	ok, err := s.taskRepo.RecordFailure(ctx, task.ID, task.NotificationCount, now, closeTask)
	if err != nil {
		return "error", err
	}
	if !ok {
		return "stale", nil
	}
	if closeTask {
		metrics.RecordTaskClosed()
		s.logger.Info("task closed, delivery target unreachable",
			zap.Uint("task_id", task.ID),
			zap.Uint("user_id", task.UserID),
			zap.Error(sendErr),
		)
		return "closed", nil
	}
	s.logger.Warn("escalation failed, will retry after cooldown",
		zap.Uint("task_id", task.ID),
		zap.Int("failed_attempts", task.FailedAttempts+1),
		zap.Error(sendErr),
	)
	return "failed", nil
}

func (s *NudgeService) shouldClose(task model.Task, err error) bool {
	if s.transientRetries <= 0 || errors.Is(err, notify.ErrTargetNotFound) {
		return true
	}
	return task.FailedAttempts+1 > s.transientRetries
}

func claimTTL(cooldown time.Duration) time.Duration {
	if cooldown < time.Minute {
		return time.Minute
	}
	return cooldown
}
