package model

import (
	"strings"
	"time"
)

// User stores Telegram user metadata.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName picks the friendliest available name.
func (u User) DisplayName() string {
	full := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	switch {
	case full != "":
		return full
	case u.Username != "":
		return "@" + u.Username
	default:
		return "friend"
	}
}
