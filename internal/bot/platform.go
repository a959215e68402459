package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nudge-planner/internal/model"
	"nudge-planner/internal/notify"
)

// TelegramPlatform delivers notifications through the Bot API.
type TelegramPlatform struct {
	api *tgbotapi.BotAPI
}

func NewTelegramPlatform(api *tgbotapi.BotAPI) *TelegramPlatform {
	return &TelegramPlatform{api: api}
}

func (p *TelegramPlatform) PostMessage(ctx context.Context, chatID int64, text string) (model.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := p.send(ctx, msg)
	if err != nil {
		return model.MessageRef{}, fmt.Errorf("post to chat %d: %w", chatID, err)
	}
	return model.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// ReplyTo answers ref. A deleted anchor message fails instead of posting unthreaded.
func (p *TelegramPlatform) ReplyTo(ctx context.Context, ref model.MessageRef, text string) error {
	msg := tgbotapi.NewMessage(ref.ChatID, text)
	msg.ReplyToMessageID = ref.MessageID
	msg.AllowSendingWithoutReply = false
	if _, err := p.send(ctx, msg); err != nil {
		return fmt.Errorf("reply to message %d in chat %d: %w", ref.MessageID, ref.ChatID, err)
	}
	return nil
}

func (p *TelegramPlatform) ResolveConversation(ctx context.Context, chatID int64) (notify.Conversation, error) {
	var chat tgbotapi.Chat
	err := call(ctx, func() error {
		var err error
		chat, err = p.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
		return classify(err)
	})
	if err != nil {
		return notify.Conversation{}, err
	}
	title := chat.Title
	if title == "" {
		title = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}
	return notify.Conversation{ChatID: chat.ID, Title: title}, nil
}

// SendDirect writes to the user's private chat, whose id equals the user id.
func (p *TelegramPlatform) SendDirect(ctx context.Context, telegramUserID int64, text string) error {
	if _, err := p.send(ctx, tgbotapi.NewMessage(telegramUserID, text)); err != nil {
		return fmt.Errorf("direct message to %d: %w", telegramUserID, err)
	}
	return nil
}

func (p *TelegramPlatform) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	var sent tgbotapi.Message
	err := call(ctx, func() error {
		var err error
		sent, err = p.api.Send(c)
		return classify(err)
	})
	return sent, err
}

// call runs a blocking Bot API request and gives up when ctx ends.
// The request itself keeps running in the background until the HTTP client returns.
func call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classify maps Bot API answers that mean "this chat or message is gone" to
// notify.ErrTargetNotFound. Everything else is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if isGone(apiErr.Code, apiErr.Message) {
		return fmt.Errorf("%w: %s", notify.ErrTargetNotFound, apiErr.Message)
	}
	return err
}

func isGone(code int, message string) bool {
	lower := strings.ToLower(message)
	switch code {
	case 403:
		// kicked, blocked, deactivated user or a chat the bot left
		return true
	case 400:
		return strings.Contains(lower, "not found") ||
			strings.Contains(lower, "chat_id is empty") ||
			strings.Contains(lower, "group chat was upgraded") ||
			strings.Contains(lower, "peer_id_invalid")
	}
	return false
}
