package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nudge-planner/internal/clock"
	"nudge-planner/internal/model"
	"nudge-planner/internal/notify"
	"nudge-planner/internal/repository"
	"nudge-planner/internal/service"
	"nudge-planner/internal/streak"
)

const cbComplete = "complete"

const (
	btnDone     = "✅ Done"
	iconOpen    = "🟢"
	iconDue     = "⏳"
	iconOverdue = "⚠️"
	iconDone    = "✅"
	iconClosed  = "🔕"
)

// Services bundles what the command surface calls into.
type Services struct {
	Users      *repository.UserRepository
	Tasks      *service.TaskService
	Completion *service.CompletionService
	Reminders  *service.ReminderService
	Streaks    *streak.Calculator
	Dispatcher *notify.Dispatcher
}

// Bot turns Telegram updates into calls on the core services.
type Bot struct {
	api    *tgbotapi.BotAPI
	svc    Services
	clock  *clock.Clock
	logger *zap.Logger
}

// NewAPI authorizes against Telegram with token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

func New(api *tgbotapi.BotAPI, svc Services, clk *clock.Clock, logger *zap.Logger) *Bot {
	logger.Info("bot authorized", zap.String("account", api.Self.UserName))
	return &Bot{api: api, svc: svc, clock: clk, logger: logger}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.logger.Error("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.logger.Error("handle message", zap.Int64("chat_id", update.Message.Chat.ID), zap.Error(err))
			}
		}
	}

	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil || !msg.IsCommand() {
		return nil
	}

	b.logger.Debug("command",
		zap.Int64("from", msg.From.ID),
		zap.String("command", msg.Command()),
		zap.String("args", msg.CommandArguments()),
	)

	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(ctx, msg.Chat.ID, helpText)
	case "addtask":
		return b.handleAddTask(ctx, msg)
	case "mytasks":
		return b.handleMyTasks(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "remind":
		return b.handleRemind(ctx, msg)
	case "reminders":
		return b.handleReminders(ctx, msg)
	case "streak":
		return b.handleStreak(ctx, msg)
	default:
		if msg.Chat.IsPrivate() {
			return b.sendText(ctx, msg.Chat.ID, "Unknown command. See /help.")
		}
		return nil
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /addtask &lt;text&gt; [| YYYY-MM-DD HH:MM] — add a task, optionally with a deadline\n" +
	"• /mytasks — today's tasks and anything still open\n" +
	"• /done &lt;id&gt; — mark a task done (or tap ✅ under it)\n" +
	"• /delete &lt;id&gt; — remove a task\n" +
	"• /remind &lt;minutes|HH:MM&gt; &lt;text&gt; — one-shot reminder\n" +
	"• /reminders — pending reminders\n" +
	"• /streak — your completion streak\n\n" +
	"Open tasks get nudged until they are done. Finish enough in one day and there is a small party."

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("👋 Hello, %s!\n<b>I keep an eye on your tasks so you don't have to.</b>\n\n%s",
		escape(user.DisplayName()), helpText)
	return b.sendText(ctx, msg.Chat.ID, text)
}

func (b *Bot) handleAddTask(ctx context.Context, msg *tgbotapi.Message) error {
	title, due, err := parseAddTask(msg.CommandArguments(), b.clock.Location())
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("%s\nUsage: /addtask Buy milk | 2026-11-30 18:00", escape(err.Error())))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	input := service.TaskInput{Title: title, DueAt: due}
	if err := b.svc.Tasks.ValidateInput(input); err != nil {
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("Could not add the task: %s", escape(err.Error())))
	}

	// The anchor message is what escalations reply to and what the ✅ button completes.
	anchor := tgbotapi.NewMessage(msg.Chat.ID, anchorText(title, 0, due, b.clock.Location()))
	anchor.ParseMode = tgbotapi.ModeHTML
	anchor.ReplyMarkup = doneKeyboard()
	posted, err := b.send(ctx, anchor)
	if err != nil {
		return fmt.Errorf("post anchor: %w", err)
	}
	input.Anchor = model.MessageRef{ChatID: msg.Chat.ID, MessageID: posted.MessageID}

	task, err := b.svc.Tasks.CreateTask(ctx, user, input)
	if err != nil {
		if derr := b.request(ctx, tgbotapi.NewDeleteMessage(msg.Chat.ID, posted.MessageID)); derr != nil {
			b.logger.Warn("remove orphan anchor", zap.Error(derr))
		}
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, posted.MessageID,
		anchorText(task.Title, task.ID, task.DueAt, b.clock.Location()), doneKeyboard())
	edit.ParseMode = tgbotapi.ModeHTML
	if err := b.request(ctx, edit); err != nil {
		b.logger.Debug("label anchor with id", zap.Uint("task_id", task.ID), zap.Error(err))
	}

	b.logger.Info("task created", zap.Uint("task_id", task.ID), zap.Uint("user_id", user.ID), zap.Bool("has_due", task.DueAt != nil))
	return nil
}

func (b *Bot) handleMyTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	today, err := b.svc.Tasks.ListToday(ctx, user)
	if err != nil {
		return err
	}
	open, err := b.svc.Tasks.ListUnfinished(ctx, user)
	if err != nil {
		return err
	}

	seen := make(map[uint]bool, len(today))
	now := b.clock.Now()
	loc := b.clock.Location()

	var text strings.Builder
	text.WriteString("📋 <b>Today</b>\n")
	if len(today) == 0 {
		text.WriteString("Nothing added yet. Try /addtask.\n")
	}
	for _, task := range today {
		seen[task.ID] = true
		text.WriteString(formatTask(task, now, loc))
	}

	var older []model.Task
	for _, task := range open {
		if !seen[task.ID] {
			older = append(older, task)
		}
	}
	if len(older) > 0 {
		text.WriteString("\n🗂 <b>Still open from earlier</b>\n")
		for _, task := range older {
			text.WriteString(formatTask(task, now, loc))
		}
	}

	return b.sendText(ctx, msg.Chat.ID, strings.TrimSpace(text.String()))
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, "Give me the task id: /done 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	res, err := b.svc.Completion.Complete(ctx, user, taskID)
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return b.sendText(ctx, msg.Chat.ID, "Task not found.")
	case err != nil:
		return err
	case res.AlreadyDone:
		return b.sendText(ctx, msg.Chat.ID, "That one is already done.")
	}

	b.clearDoneButton(ctx, res.Task)
	return b.replyTick(ctx, msg.Chat.ID, msg.MessageID, res.Task)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, "Give me the task id: /delete 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.svc.Tasks.GetTask(ctx, user, taskID)
	if errors.Is(err, service.ErrTaskNotFound) {
		return b.sendText(ctx, msg.Chat.ID, "Task not found.")
	}
	if err != nil {
		return err
	}
	if err := b.svc.Tasks.DeleteTask(ctx, user, taskID); err != nil {
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("Could not delete the task: %s", escape(err.Error())))
	}
	b.clearDoneButton(ctx, task)
	return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("🗑 Task \"%s\" deleted.", escape(shortTitle(task.Title, 60))))
}

func (b *Bot) handleRemind(ctx context.Context, msg *tgbotapi.Message) error {
	at, text, err := parseRemind(msg.CommandArguments(), b.clock.Now(), b.clock.Location())
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("%s\nUsage: /remind 30 stretch, or /remind 18:00 call mom", escape(err.Error())))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	reminder, err := b.svc.Reminders.Schedule(ctx, user, msg.Chat.ID, text, at)
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("Could not schedule the reminder: %s", escape(err.Error())))
	}
	return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("⏰ Got it. I'll remind you at %s.",
		reminder.RemindAt.In(b.clock.Location()).Format(dueLayout)))
}

func (b *Bot) handleReminders(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	pending, err := b.svc.Reminders.ListPending(ctx, user)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return b.sendText(ctx, msg.Chat.ID, "No pending reminders.")
	}

	var text strings.Builder
	text.WriteString("⏰ <b>Pending reminders</b>\n")
	for _, r := range pending {
		fmt.Fprintf(&text, "• %s — %s\n", r.RemindAt.In(b.clock.Location()).Format(dueLayout), escape(shortTitle(r.Text, 60)))
	}
	return b.sendText(ctx, msg.Chat.ID, strings.TrimSpace(text.String()))
}

func (b *Bot) handleStreak(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	today := b.clock.Today()
	n, err := b.svc.Streaks.Calculate(ctx, user.ID, today)
	if err != nil {
		return err
	}
	if n > 0 {
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("🔥 %d day(s) in a row, today included.", n))
	}

	// Today is still open; yesterday's streak survives until midnight.
	n, err = b.svc.Streaks.Calculate(ctx, user.ID, today.AddDate(0, 0, -1))
	if err != nil {
		return err
	}
	if n == 0 {
		return b.sendText(ctx, msg.Chat.ID, "No streak yet. Finish one task today to start it.")
	}
	return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("🔥 %d day(s) so far. Finish a task today to keep it alive.", n))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if cb.Data != cbComplete {
		b.answerCallback(ctx, cb.ID, "")
		return nil
	}

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		b.answerCallback(ctx, cb.ID, "")
		return err
	}

	res, err := b.svc.Completion.CompleteByMessage(ctx, user, cb.Message.Chat.ID, cb.Message.MessageID)
	switch {
	case errors.Is(err, service.ErrNotOwner):
		b.answerCallback(ctx, cb.ID, "Only the owner can complete this task.")
		return nil
	case errors.Is(err, service.ErrTaskNotFound):
		b.answerCallback(ctx, cb.ID, "This task no longer exists.")
		return nil
	case err != nil:
		b.answerCallback(ctx, cb.ID, "")
		return err
	case res.AlreadyDone:
		b.answerCallback(ctx, cb.ID, "Already done.")
		return nil
	}

	b.answerCallback(ctx, cb.ID, btnDone)
	b.clearDoneButton(ctx, res.Task)
	return b.replyTick(ctx, cb.Message.Chat.ID, cb.Message.MessageID, res.Task)
}

// replyTick acknowledges a completion under the message that triggered it.
func (b *Bot) replyTick(ctx context.Context, chatID int64, messageID int, task *model.Task) error {
	line := b.svc.Dispatcher.Phrases().Compose(notify.KindTaskTick)
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ <b>%s</b>\n%s", escape(shortTitle(task.Title, 60)), escape(line)))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = messageID
	msg.AllowSendingWithoutReply = true
	_, err := b.send(ctx, msg)
	return err
}

func (b *Bot) clearDoneButton(ctx context.Context, task *model.Task) {
	if task == nil || !task.HasTarget() {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(task.ChatID, task.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if err := b.request(ctx, edit); err != nil {
		b.logger.Debug("clear done button", zap.Uint("task_id", task.ID), zap.Error(err))
	}
}

func (b *Bot) answerCallback(ctx context.Context, id, text string) {
	if err := b.request(ctx, tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Debug("callback ack", zap.Error(err))
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.svc.Users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.send(ctx, msg)
	return err
}

// send and request share the dispatcher's send budget with the scans.
func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.svc.Dispatcher.Throttle(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return b.api.Send(c)
}

func (b *Bot) request(ctx context.Context, c tgbotapi.Chattable) error {
	if err := b.svc.Dispatcher.Throttle(ctx); err != nil {
		return err
	}
	_, err := b.api.Request(c)
	return err
}

func doneKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnDone, cbComplete)),
	)
}
