package model

import "time"

// Reminder is a one-shot delayed message. Sent flips once, on the first delivery attempt.
type Reminder struct {
	ID        uint  `gorm:"primaryKey"`
	UserID    uint  `gorm:"index"`
	ChatID    int64 // conversation the reminder was requested from, used as fallback
	Text      string
	RemindAt  time.Time `gorm:"index"`
	Sent      bool      `gorm:"default:false;index"`
	SentAt    *time.Time
	CreatedAt time.Time
}
