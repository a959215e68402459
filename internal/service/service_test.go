package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nudge-planner/internal/clock"
	"nudge-planner/internal/model"
	"nudge-planner/internal/notify"
	"nudge-planner/internal/policy"
	"nudge-planner/internal/repository"
	"nudge-planner/internal/streak"
)

type sent struct {
	to   int64
	text string
}

type fakePlatform struct {
	mu sync.Mutex

	missingMessages map[model.MessageRef]bool
	replyErr        error
	directErr       error
	postErr         error
	block           bool

	replies []sent
	directs []sent
	posts   []sent
}

func (f *fakePlatform) PostMessage(ctx context.Context, chatID int64, text string) (model.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return model.MessageRef{}, f.postErr
	}
	f.posts = append(f.posts, sent{to: chatID, text: text})
	return model.MessageRef{ChatID: chatID, MessageID: 1000 + len(f.posts)}, nil
}

func (f *fakePlatform) ReplyTo(ctx context.Context, ref model.MessageRef, text string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missingMessages[ref] {
		return notify.ErrTargetNotFound
	}
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, sent{to: ref.ChatID, text: text})
	return nil
}

func (f *fakePlatform) ResolveConversation(ctx context.Context, chatID int64) (notify.Conversation, error) {
	return notify.Conversation{ChatID: chatID}, nil
}

func (f *fakePlatform) SendDirect(ctx context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.directErr != nil {
		return f.directErr
	}
	f.directs = append(f.directs, sent{to: userID, text: text})
	return nil
}

func countPrefix(msgs []sent, prefix string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m.text, prefix) {
			n++
		}
	}
	return n
}

type denyClaimer struct{}

func (denyClaimer) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}

var newYork = mustLocation("America/New_York")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// env is a fully wired service layer over an in-memory database.
type env struct {
	ctx      context.Context
	db       *gorm.DB
	clock    *clock.Clock
	platform *fakePlatform

	users     *repository.UserRepository
	tasks     *repository.TaskRepository
	reminders *repository.ReminderRepository
	awards    *repository.AwardRepository

	dispatcher *notify.Dispatcher
	calculator *streak.Calculator
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zap.NewNop())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	e := &env{
		ctx:       context.Background(),
		db:        db,
		clock:     clock.NewFixed(now, newYork),
		platform:  &fakePlatform{missingMessages: map[model.MessageRef]bool{}},
		users:     repository.NewUserRepository(db),
		tasks:     repository.NewTaskRepository(db),
		reminders: repository.NewReminderRepository(db),
		awards:    repository.NewAwardRepository(db),
	}
	phrases := notify.NewPhrasebook(notify.DefaultLines, func(int) int { return 0 })
	e.dispatcher = notify.NewDispatcher(e.platform, phrases, notify.Options{}, zap.NewNop())
	e.calculator = streak.NewCalculator(e.tasks, e.clock)
	return e
}

func (e *env) user(t *testing.T, telegramID int64) *model.User {
	t.Helper()
	u, err := e.users.UpsertFromTelegram(e.ctx, telegramID, "Ada", "", "ada")
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	return u
}

func (e *env) task(t *testing.T, user *model.User, title string, anchor model.MessageRef) *model.Task {
	t.Helper()
	task := &model.Task{
		UserID:    user.ID,
		Title:     title,
		ChatID:    anchor.ChatID,
		MessageID: anchor.MessageID,
		CreatedAt: e.clock.Now(),
	}
	if err := e.tasks.Create(e.ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (e *env) reload(t *testing.T, task *model.Task) *model.Task {
	t.Helper()
	got, err := e.tasks.FindByID(e.ctx, task.UserID, task.ID)
	if err != nil {
		t.Fatalf("reload task %d: %v", task.ID, err)
	}
	return got
}

func (e *env) nudges(retries int, claims Claimer) *NudgeService {
	p := policy.Escalation{Grace: 360 * time.Minute, Cooldown: 180 * time.Minute, MaxNotifications: 5}
	return NewNudgeService(e.tasks, p, e.dispatcher, claims, e.clock, retries, zap.NewNop())
}
