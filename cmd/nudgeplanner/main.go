package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nudge-planner/internal/bot"
	"nudge-planner/internal/clock"
	"nudge-planner/internal/config"
	"nudge-planner/internal/notify"
	"nudge-planner/internal/observ"
	"nudge-planner/internal/policy"
	"nudge-planner/internal/redis"
	"nudge-planner/internal/repository"
	"nudge-planner/internal/service"
	"nudge-planner/internal/streak"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("nudge planner stopped with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	loc, err := clock.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	clk := clock.New(loc)

	db, err := repository.NewDB(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	awardRepo := repository.NewAwardRepository(db)

	checks := map[string]observ.HealthCheck{"db": sqlDB.PingContext}

	var claims service.Claimer = service.NopClaimer{}
	if cfg.RedisAddr != "" {
		rc, err := redis.New(ctx, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}, logger)
		if err != nil {
			return err
		}
		defer rc.Close()
		claims = redis.NewClaimService(rc, "nudge", logger)
		checks["redis"] = rc.Ping
	} else {
		logger.Info("redis not configured, claims disabled")
	}

	api, err := bot.NewAPI(cfg.TelegramToken)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(
		bot.NewTelegramPlatform(api),
		notify.DefaultPhrasebook(),
		notify.Options{RatePerSecond: cfg.SendRate, AttemptTimeout: cfg.DeliveryTimeout},
		logger.Named("notify"),
	)
	escalation := policy.Escalation{
		Grace:            cfg.Grace,
		Cooldown:         cfg.Cooldown,
		MaxNotifications: cfg.MaxNotifications,
	}
	calculator := streak.NewCalculator(taskRepo, clk)

	taskSvc := service.NewTaskService(taskRepo, clk)
	nudgeSvc := service.NewNudgeService(taskRepo, escalation, dispatcher, claims, clk, cfg.TransientRetries, logger)
	reminderSvc := service.NewReminderService(reminderRepo, userRepo, dispatcher, clk, logger)
	completionSvc := service.NewCompletionService(taskRepo, awardRepo, dispatcher, clk, cfg.CelebrateThreshold, logger)
	digestSvc := service.NewDigestService(userRepo, awardRepo, calculator, dispatcher, claims, clk, cfg.AnnounceChatID, logger)

	scheduler := service.NewSchedulerService(loc, logger)
	err = service.RegisterJobs(ctx, scheduler,
		service.Jobs{Nudges: nudgeSvc, Reminders: reminderSvc, Digest: digestSvc},
		service.Schedule{
			EscalationInterval: cfg.EscalationInterval,
			ReminderInterval:   cfg.ReminderInterval,
			StreakDigestTime:   cfg.StreakDigestTime,
			DailyPromptTime:    cfg.DailyPromptTime,
			AnnounceChatID:     cfg.AnnounceChatID,
		},
		logger,
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.MetricsAddr != "" {
		srv := observ.NewServer(cfg.MetricsAddr, observ.Router(logger, checks))
		go func() {
			logger.Info("metrics server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				srv.Close()
			}
		}()
	}

	telegramBot := bot.New(api, bot.Services{
		Users:      userRepo,
		Tasks:      taskSvc,
		Completion: completionSvc,
		Reminders:  reminderSvc,
		Streaks:    calculator,
		Dispatcher: dispatcher,
	}, clk, logger.Named("bot"))

	logger.Info("nudge planner started",
		zap.String("timezone", loc.String()),
		zap.Duration("grace", cfg.Grace),
		zap.Duration("cooldown", cfg.Cooldown),
		zap.Int("max_notifications", cfg.MaxNotifications),
	)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
