package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nudge-planner/internal/clock"
	"nudge-planner/internal/model"
	"nudge-planner/internal/notify"
	"nudge-planner/internal/repository"
)

// CompletionResult describes what a completion event changed.
type CompletionResult struct {
	Task        *model.Task
	AlreadyDone bool
	DoneToday   int64
	Celebrated  bool
}

// CompletionService handles user-confirmed completions and the daily celebration.
type CompletionService struct {
	taskRepo   *repository.TaskRepository
	awardRepo  *repository.AwardRepository
	dispatcher *notify.Dispatcher
	clock      *clock.Clock
	threshold  int
	logger     *zap.Logger
}

func NewCompletionService(
	taskRepo *repository.TaskRepository,
	awardRepo *repository.AwardRepository,
	dispatcher *notify.Dispatcher,
	clk *clock.Clock,
	threshold int,
	logger *zap.Logger,
) *CompletionService {
	return &CompletionService{
		taskRepo:   taskRepo,
		awardRepo:  awardRepo,
		dispatcher: dispatcher,
		clock:      clk,
		threshold:  threshold,
		logger:     logger,
	}
}

// Complete marks the user's task done by id.
func (s *CompletionService) Complete(ctx context.Context, user *model.User, taskID uint) (CompletionResult, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CompletionResult{}, ErrTaskNotFound
	}
	if err != nil {
		return CompletionResult{}, fmt.Errorf("find task: %w", err)
	}
	return s.complete(ctx, user, task)
}

// CompleteByMessage marks done the task anchored to the given message.
// Only the owner may complete it.
func (s *CompletionService) CompleteByMessage(ctx context.Context, user *model.User, chatID int64, messageID int) (CompletionResult, error) {
	task, err := s.taskRepo.FindByMessage(ctx, chatID, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CompletionResult{}, ErrTaskNotFound
	}
	if err != nil {
		return CompletionResult{}, fmt.Errorf("find task by message: %w", err)
	}
	if task.UserID != user.ID {
		return CompletionResult{}, ErrNotOwner
	}
	return s.complete(ctx, user, task)
}

func (s *CompletionService) complete(ctx context.Context, user *model.User, task *model.Task) (CompletionResult, error) {
	result := CompletionResult{Task: task}
	if task.Done {
		result.AlreadyDone = true
		return result, nil
	}

	now := s.clock.Now()
	won, err := s.taskRepo.MarkDone(ctx, task.ID, now)
	if err != nil {
		return result, err
	}
	if !won {
		result.AlreadyDone = true
		return result, nil
	}
	task.Done = true
	task.CompletedAt = &now

	s.logger.Info("task completed", zap.Uint("task_id", task.ID), zap.Uint("user_id", user.ID))

	// The celebration is best effort: the completion itself already stuck.
	celebrated, count, err := s.maybeCelebrate(ctx, user, task)
	result.DoneToday = count
	result.Celebrated = celebrated
	if err != nil {
		s.logger.Error("celebration check failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return result, nil
}

func (s *CompletionService) maybeCelebrate(ctx context.Context, user *model.User, task *model.Task) (bool, int64, error) {
	today := s.clock.Today()
	start, end := s.clock.DayBounds(today)
	count, err := s.taskRepo.CountCompletedBetween(ctx, user.ID, start, end)
	if err != nil {
		return false, 0, err
	}
	if s.threshold <= 0 || count < int64(s.threshold) {
		return false, count, nil
	}

	recorded, err := s.awardRepo.Record(ctx, user.ID, model.AwardCelebration, s.clock.Date(today), int(count), s.clock.Now())
	if err != nil {
		return false, count, err
	}
	if !recorded {
		return false, count, nil
	}

	text := s.dispatcher.Phrases().Compose(notify.KindCelebration, count)
	var strategies []notify.Strategy
	if task.HasTarget() {
		strategies = append(strategies, notify.Reply(task.Target(), text))
	}
	strategies = append(strategies, notify.Direct(user.TelegramID, text))
	if _, err := s.dispatcher.Deliver(ctx, notify.KindCelebration, strategies...); err != nil {
		// Award already recorded; a lost celebration is not retried.
		return true, count, nil
	}
	s.logger.Info("celebration sent", zap.Uint("user_id", user.ID), zap.Int64("done_today", count))
	return true, count, nil
}
