package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"nudge-planner/internal/clock"
	"nudge-planner/internal/model"
	"nudge-planner/internal/repository"
)

var (
	ErrEmptyTitle   = errors.New("title is required")
	ErrTaskNotFound = errors.New("task not found")
	ErrNotOwner     = errors.New("task belongs to another user")
	ErrDueInPast    = errors.New("due time is in the past")
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title  string
	DueAt  *time.Time
	Anchor model.MessageRef // message the bot posted for this task
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
	clock    *clock.Clock
}

func NewTaskService(taskRepo *repository.TaskRepository, clk *clock.Clock) *TaskService {
	return &TaskService{taskRepo: taskRepo, clock: clk}
}

// ValidateInput checks a task before its anchor message is posted.
func (s *TaskService) ValidateInput(input TaskInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return ErrEmptyTitle
	}
	if input.DueAt != nil && !input.DueAt.After(s.clock.Now()) {
		return ErrDueInPast
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if err := s.ValidateInput(input); err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:    user.ID,
		Title:     strings.TrimSpace(input.Title),
		DueAt:     input.DueAt,
		ChatID:    input.Anchor.ChatID,
		MessageID: input.Anchor.MessageID,
		CreatedAt: s.clock.Now(),
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

// ListToday returns the tasks the user added during the current local day.
func (s *TaskService) ListToday(ctx context.Context, user *model.User) ([]model.Task, error) {
	start, end := s.clock.DayBounds(s.clock.Today())
	return s.taskRepo.ListCreatedBetween(ctx, user.ID, start, end)
}

func (s *TaskService) ListUnfinished(ctx context.Context, user *model.User) ([]model.Task, error) {
	return s.taskRepo.ListUnfinished(ctx, user.ID)
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

// DeleteTask removes a task completely.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	if _, err := s.GetTask(ctx, user, taskID); err != nil {
		return err
	}
	return s.taskRepo.Delete(ctx, user.ID, taskID)
}
