// Package notify delivers bot notifications through the chat platform.
package notify

import (
	"context"
	"errors"

	"nudge-planner/internal/model"
)

var (
	// ErrTargetNotFound means the conversation or anchor message no longer exists.
	ErrTargetNotFound = errors.New("delivery target not found")
	// ErrExhausted means every delivery strategy failed.
	ErrExhausted = errors.New("all delivery strategies failed")
	// ErrThrottled means the local send budget refused the attempt before anything was sent.
	ErrThrottled = errors.New("send budget exhausted")
)

// Conversation is a resolved chat.
type Conversation struct {
	ChatID int64
	Title  string
}

// Platform is the chat-platform surface the scheduler needs.
type Platform interface {
	PostMessage(ctx context.Context, chatID int64, text string) (model.MessageRef, error)
	ReplyTo(ctx context.Context, ref model.MessageRef, text string) error
	ResolveConversation(ctx context.Context, chatID int64) (Conversation, error)
	SendDirect(ctx context.Context, telegramUserID int64, text string) error
}
