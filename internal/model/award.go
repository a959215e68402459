package model

import "time"

type AwardKind string

const (
	// AwardCelebration marks the daily completion threshold as celebrated.
	AwardCelebration AwardKind = "celebration"
	// AwardStreak marks a seven-day streak milestone as celebrated.
	AwardStreak AwardKind = "streak"
)

// Award records that a celebration was already sent for a user on a local calendar date.
type Award struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"uniqueIndex:idx_award_user_kind_date,priority:1"`
	Kind      AwardKind `gorm:"uniqueIndex:idx_award_user_kind_date,priority:2"`
	AwardDate string    `gorm:"uniqueIndex:idx_award_user_kind_date,priority:3"` // YYYY-MM-DD, local
	Value     int
	SentAt    time.Time
}
