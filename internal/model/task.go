package model

import "time"

// Task is a commitment owned by one user. It is anchored to the chat message
// the bot posted when the task was added; escalations reply to that message.
type Task struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"index"`
	Title  string

	// DueAt is fixed at creation. Without it, escalation waits for the grace period.
	DueAt       *time.Time
	Done        bool       `gorm:"default:false;index"`
	CompletedAt *time.Time `gorm:"index"`

	LastNotifiedAt    *time.Time
	NotificationCount int  `gorm:"default:0"`
	FailedAttempts    int  `gorm:"default:0"`
	Closed            bool `gorm:"default:false"`

	ChatID    int64 `gorm:"index:idx_task_anchor"`
	MessageID int   `gorm:"index:idx_task_anchor"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRef identifies a message inside a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Target returns the delivery target escalations are anchored to.
func (t Task) Target() MessageRef {
	return MessageRef{ChatID: t.ChatID, MessageID: t.MessageID}
}

// HasTarget reports whether the task was anchored to a posted message.
func (t Task) HasTarget() bool {
	return t.ChatID != 0 && t.MessageID != 0
}

// Terminal reports whether the task can never be escalated again.
func (t Task) Terminal() bool {
	return t.Done || t.Closed
}
