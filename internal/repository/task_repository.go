package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"nudge-planner/internal/model"
)

// TaskRepository handles CRUD for tasks.
//
// State transitions are conditional updates: each one names the state it expects
// and reports whether a row actually changed. Losing such a race is not an error.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	task.CreatedAt = task.CreatedAt.UTC()
	task.DueAt = utcPtr(task.DueAt)
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByMessage looks a task up by the message it is anchored to.
func (r *TaskRepository) FindByMessage(ctx context.Context, chatID int64, messageID int) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("chat_id = ? AND message_id = ?", chatID, messageID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListOpen returns every task that may still be escalated.
func (r *TaskRepository) ListOpen(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("done = ? AND closed = ?", false, false).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	return tasks, nil
}

// ListCreatedBetween returns a user's tasks created in [start, end).
func (r *TaskRepository) ListCreatedBetween(ctx context.Context, userID uint, start, end time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, start.UTC(), end.UTC()).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListUnfinished returns a user's tasks that are neither done nor closed.
func (r *TaskRepository) ListUnfinished(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND done = ? AND closed = ?", userID, false, false).
		Order("due_at NULLS LAST, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list unfinished tasks: %w", err)
	}
	return tasks, nil
}

// MarkDone flips done exactly once. It returns false if the task was already done.
func (r *TaskRepository) MarkDone(ctx context.Context, taskID uint, completedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND done = ?", taskID, false).
		Updates(map[string]interface{}{
			"done":         true,
			"completed_at": completedAt.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete task: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RecordNotified bumps the notification counter after a successful escalation.
// The update only applies if the counter still equals expectedCount and the task is open.
func (r *TaskRepository) RecordNotified(ctx context.Context, taskID uint, expectedCount int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND notification_count = ? AND done = ? AND closed = ?", taskID, expectedCount, false, false).
		Updates(map[string]interface{}{
			"notification_count": gorm.Expr("notification_count + 1"),
			"last_notified_at":   at.UTC(),
			"failed_attempts":    0,
		})
	if res.Error != nil {
		return false, fmt.Errorf("record notification: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RecordFailure stamps a failed escalation attempt. With closeTask the task is
// retired from escalation for good; otherwise only the failure counter grows.
func (r *TaskRepository) RecordFailure(ctx context.Context, taskID uint, expectedCount int, at time.Time, closeTask bool) (bool, error) {
	updates := map[string]interface{}{
		"last_notified_at": at.UTC(),
		"failed_attempts":  gorm.Expr("failed_attempts + 1"),
	}
	if closeTask {
		updates["closed"] = true
	}
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND notification_count = ? AND done = ? AND closed = ?", taskID, expectedCount, false, false).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("record failed notification: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CountCompletedBetween counts a user's tasks completed in [start, end).
func (r *TaskRepository) CountCompletedBetween(ctx context.Context, userID uint, start, end time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND done = ? AND completed_at >= ? AND completed_at < ?", userID, true, start.UTC(), end.UTC()).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count completed tasks: %w", err)
	}
	return count, nil
}

// Delete removes a task for the given user.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
