package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nudge-planner/internal/clock"
	"nudge-planner/internal/metrics"
	"nudge-planner/internal/model"
	"nudge-planner/internal/notify"
	"nudge-planner/internal/repository"
	"nudge-planner/internal/streak"
)

const (
	scanDigest = "digest"
	scanPrompt = "daily_prompt"

	digestClaimTTL = 20 * time.Hour
	promptHint     = "\nUse /addtask to register a task."
)

// DigestService sends the daily streak digest and the optional morning prompt.
type DigestService struct {
	userRepo   *repository.UserRepository
	awardRepo  *repository.AwardRepository
	calculator *streak.Calculator
	dispatcher *notify.Dispatcher
	claims     Claimer
	clock      *clock.Clock
	logger     *zap.Logger

	announceChatID int64
}

func NewDigestService(
	userRepo *repository.UserRepository,
	awardRepo *repository.AwardRepository,
	calculator *streak.Calculator,
	dispatcher *notify.Dispatcher,
	claims Claimer,
	clk *clock.Clock,
	announceChatID int64,
	logger *zap.Logger,
) *DigestService {
	if claims == nil {
		claims = NopClaimer{}
	}
	return &DigestService{
		userRepo:       userRepo,
		awardRepo:      awardRepo,
		calculator:     calculator,
		dispatcher:     dispatcher,
		claims:         claims,
		clock:          clk,
		announceChatID: announceChatID,
		logger:         logger,
	}
}

// StreakDigest tells every user who ever added a task how their streak stood
// at the end of yesterday, and celebrates weekly milestones once.
func (s *DigestService) StreakDigest(ctx context.Context) (ScanReport, error) {
	var report ScanReport

	users, err := s.userRepo.ListWithTasks(ctx)
	if err != nil {
		return report, err
	}

	yesterday := s.clock.Today().AddDate(0, 0, -1)
	date := s.clock.Date(yesterday)
	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		outcome, err := s.digestUser(ctx, &users[i], yesterday, date)
		metrics.RecordRow(scanDigest, outcome)
		switch outcome {
		case "sent":
			report.Sent++
		case "dropped":
			report.Failed++
		case "error":
			report.Errors++
			s.logger.Error("streak digest failed", zap.Uint("user_id", users[i].ID), zap.Error(err))
		default:
			report.Skipped++
		}
	}
	return report, nil
}

func (s *DigestService) digestUser(ctx context.Context, user *model.User, day time.Time, date string) (string, error) {
	key := fmt.Sprintf("digest:%d:%s", user.ID, date)
	claimed, err := s.claims.Claim(ctx, key, digestClaimTTL)
	if err != nil {
		return "error", fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		metrics.RecordClaimConflict(scanDigest)
		return "claimed", nil
	}

	outcome, err := s.sendDigest(ctx, user, day, date)
	if outcome == "error" {
		// A rerun of the tick must be able to pick this user up again.
		if rerr := releaseClaim(s.claims, key); rerr != nil {
			s.logger.Warn("release claim", zap.String("key", key), zap.Error(rerr))
		}
	}
	return outcome, err
}

func (s *DigestService) sendDigest(ctx context.Context, user *model.User, day time.Time, date string) (string, error) {
	n, err := s.calculator.Calculate(ctx, user.ID, day)
	if err != nil {
		return "error", err
	}

	phrases := s.dispatcher.Phrases()
	text := phrases.Compose(notify.KindStreakReset)
	kind := notify.KindStreakReset
	if n > 0 {
		text = phrases.Compose(notify.KindStreakContinue, n)
		kind = notify.KindStreakContinue
	}
	outcome := "sent"
	if _, err := s.dispatcher.Deliver(ctx, kind, s.toUser(user, text)...); err != nil {
		outcome = "dropped"
	}

	if streak.IsMilestone(n) {
		recorded, err := s.awardRepo.Record(ctx, user.ID, model.AwardStreak, date, n, s.clock.Now())
		if err != nil {
			return "error", err
		}
		if recorded {
			milestone := phrases.Compose(notify.KindStreakMilestone, n)
			if _, err := s.dispatcher.Deliver(ctx, notify.KindStreakMilestone, s.toUser(user, milestone)...); err == nil {
				s.logger.Info("streak milestone sent", zap.Uint("user_id", user.ID), zap.Int("streak", n))
			}
		}
	}
	return outcome, nil
}

func (s *DigestService) toUser(user *model.User, text string) []notify.Strategy {
	strategies := []notify.Strategy{notify.Direct(user.TelegramID, text)}
	if s.announceChatID != 0 {
		strategies = append(strategies, notify.Post(s.announceChatID, fmt.Sprintf("%s: %s", user.DisplayName(), text)))
	}
	return strategies
}

// DailyPrompt posts the morning prompt to the announce chat. It keeps no state.
func (s *DigestService) DailyPrompt(ctx context.Context) (ScanReport, error) {
	var report ScanReport
	if s.announceChatID == 0 {
		return report, nil
	}
	report.Scanned = 1

	text := s.dispatcher.Phrases().Compose(notify.KindDailyPrompt) + promptHint
	if _, err := s.dispatcher.Deliver(ctx, notify.KindDailyPrompt, notify.Post(s.announceChatID, text)); err != nil {
		report.Failed = 1
		metrics.RecordRow(scanPrompt, "dropped")
		return report, nil
	}
	report.Sent = 1
	metrics.RecordRow(scanPrompt, "sent")
	return report, nil
}
