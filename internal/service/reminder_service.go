package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"nudge-planner/internal/clock"
	"nudge-planner/internal/metrics"
	"nudge-planner/internal/model"
	"nudge-planner/internal/notify"
	"nudge-planner/internal/repository"
)

const scanReminder = "reminder"

var ErrEmptyReminder = errors.New("reminder text is required")

// ReminderService schedules one-shot reminders and delivers them when due.
type ReminderService struct {
	reminderRepo *repository.ReminderRepository
	userRepo     *repository.UserRepository
	dispatcher   *notify.Dispatcher
	clock        *clock.Clock
	logger       *zap.Logger
}

func NewReminderService(
	reminderRepo *repository.ReminderRepository,
	userRepo *repository.UserRepository,
	dispatcher *notify.Dispatcher,
	clk *clock.Clock,
	logger *zap.Logger,
) *ReminderService {
	return &ReminderService{
		reminderRepo: reminderRepo,
		userRepo:     userRepo,
		dispatcher:   dispatcher,
		clock:        clk,
		logger:       logger.With(zap.String("scan", scanReminder)),
	}
}

// Schedule stores a reminder for user. chatID is where the request came from.
func (s *ReminderService) Schedule(ctx context.Context, user *model.User, chatID int64, text string, at time.Time) (*model.Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyReminder
	}
	reminder := model.Reminder{
		UserID:    user.ID,
		ChatID:    chatID,
		Text:      text,
		RemindAt:  at,
		CreatedAt: s.clock.Now(),
	}
	if err := s.reminderRepo.Create(ctx, &reminder); err != nil {
		return nil, err
	}
	return &reminder, nil
}

func (s *ReminderService) ListPending(ctx context.Context, user *model.User) ([]model.Reminder, error) {
	return s.reminderRepo.ListPending(ctx, user.ID)
}

// Scan delivers every due reminder at most once. The sent flag is flipped before
// the attempt, so a reminder that fails to deliver is never retried.
func (s *ReminderService) Scan(ctx context.Context) (ScanReport, error) {
	var report ScanReport

	now := s.clock.Now()
	due, err := s.reminderRepo.ListDue(ctx, now)
	if err != nil {
		return report, err
	}

	for _, reminder := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		won, err := s.reminderRepo.MarkSent(ctx, reminder.ID, now)
		if err != nil {
			report.Errors++
			metrics.RecordRow(scanReminder, "error")
			s.logger.Error("mark reminder sent", zap.Uint("reminder_id", reminder.ID), zap.Error(err))
			continue
		}
		if !won {
			report.Skipped++
			metrics.RecordRow(scanReminder, "stale")
			continue
		}

		if s.deliver(ctx, reminder) {
			report.Sent++
			metrics.RecordRow(scanReminder, "sent")
		} else {
			report.Failed++
			metrics.RecordRow(scanReminder, "dropped")
		}
	}
	return report, nil
}

func (s *ReminderService) deliver(ctx context.Context, reminder model.Reminder) bool {
	text := s.dispatcher.Phrases().Compose(notify.KindReminder, reminder.Text)

	var strategies []notify.Strategy
	var telegramID int64
	user, err := s.userRepo.FindByID(ctx, reminder.UserID)
	if err != nil {
		s.logger.Warn("reminder owner lookup failed", zap.Uint("reminder_id", reminder.ID), zap.Error(err))
	} else {
		telegramID = user.TelegramID
		strategies = append(strategies, notify.Direct(telegramID, text))
	}
	// In a private chat the fallback would hit the same conversation twice.
	if reminder.ChatID != 0 && reminder.ChatID != telegramID {
		strategies = append(strategies, notify.Post(reminder.ChatID, text))
	}

	used, err := s.dispatcher.Deliver(ctx, notify.KindReminder, strategies...)
	if err != nil {
		s.logger.Warn("reminder dropped", zap.Uint("reminder_id", reminder.ID), zap.Error(err))
		return false
	}
	s.logger.Info("reminder sent",
		zap.Uint("reminder_id", reminder.ID),
		zap.Uint("user_id", reminder.UserID),
		zap.String("strategy", used),
	)
	return true
}
