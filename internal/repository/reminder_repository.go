package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"nudge-planner/internal/model"
)

// ReminderRepository stores one-shot reminders.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	reminder.RemindAt = reminder.RemindAt.UTC()
	reminder.CreatedAt = reminder.CreatedAt.UTC()
	if err := r.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// ListDue returns unsent reminders whose time has come.
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).
		Where("sent = ? AND remind_at <= ?", false, now.UTC()).
		Order("remind_at ASC, id ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return reminders, nil
}

// ListPending returns a user's unsent reminders, soonest first.
func (r *ReminderRepository) ListPending(ctx context.Context, userID uint) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND sent = ?", userID, false).
		Order("remind_at ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list pending reminders: %w", err)
	}
	return reminders, nil
}

// MarkSent flips sent exactly once and reports whether this caller won the flip.
// Only the winner may attempt delivery.
func (r *ReminderRepository) MarkSent(ctx context.Context, reminderID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ? AND sent = ?", reminderID, false).
		Updates(map[string]interface{}{
			"sent":    true,
			"sent_at": at.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark reminder sent: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
