package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"nudge-planner/internal/model"
)

type fakePlatform struct {
	mu sync.Mutex

	missingChats    map[int64]bool
	missingMessages map[model.MessageRef]bool
	directErr       error
	postErr         error
	block           bool

	replies []string
	directs []string
	posts   []string
}

func (f *fakePlatform) PostMessage(ctx context.Context, chatID int64, text string) (model.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return model.MessageRef{}, f.postErr
	}
	f.posts = append(f.posts, text)
	return model.MessageRef{ChatID: chatID, MessageID: len(f.posts)}, nil
}

func (f *fakePlatform) ReplyTo(ctx context.Context, ref model.MessageRef, text string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missingMessages[ref] {
		return ErrTargetNotFound
	}
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakePlatform) ResolveConversation(ctx context.Context, chatID int64) (Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missingChats[chatID] {
		return Conversation{}, ErrTargetNotFound
	}
	return Conversation{ChatID: chatID}, nil
}

func (f *fakePlatform) SendDirect(ctx context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.directErr != nil {
		return f.directErr
	}
	f.directs = append(f.directs, text)
	return nil
}

func firstPick(int) int { return 0 }

func TestPhrasebookCompose(t *testing.T) {
	book := NewPhrasebook(map[Kind][]string{
		KindCelebration: {"%d done"},
		KindTaskTick:    {"first", "second"},
	}, func(n int) int { return n - 1 })

	if got := book.Compose(KindCelebration, 6); got != "6 done" {
		t.Fatalf("Compose(celebration) = %q", got)
	}
	if got := book.Compose(KindTaskTick); got != "second" {
		t.Fatalf("Compose(task_tick) = %q", got)
	}
	if got := book.Compose(KindDailyPrompt); got != string(KindDailyPrompt) {
		t.Fatalf("Compose(unknown) = %q, want kind name", got)
	}
}

func TestDefaultLinesCoverEveryKind(t *testing.T) {
	book := NewPhrasebook(DefaultLines, firstPick)
	withCount := map[Kind]bool{KindCelebration: true, KindStreakContinue: true, KindStreakMilestone: true}
	for _, kind := range []Kind{KindTaskTick, KindEscalation, KindCelebration, KindStreakContinue, KindStreakReset, KindStreakMilestone, KindDailyPrompt, KindReminder} {
		if len(DefaultLines[kind]) == 0 {
			t.Fatalf("no lines for %s", kind)
		}
		for _, line := range DefaultLines[kind] {
			hasVerb := strings.Contains(line, "%d") || strings.Contains(line, "%s")
			if withCount[kind] && !strings.Contains(line, "%d") {
				t.Fatalf("%s line %q must take a count", kind, line)
			}
			if !withCount[kind] && kind != KindReminder && hasVerb {
				t.Fatalf("%s line %q must not take arguments", kind, line)
			}
		}
	}
	if got := book.Compose(KindReminder, "drink water"); !strings.Contains(got, "drink water") {
		t.Fatalf("reminder line %q lost its text", got)
	}
}

func TestEscalateMissingTarget(t *testing.T) {
	target := model.MessageRef{ChatID: 5, MessageID: 9}
	tests := []struct {
		name     string
		platform *fakePlatform
	}{
		{name: "chat deleted", platform: &fakePlatform{missingChats: map[int64]bool{5: true}}},
		{name: "message deleted", platform: &fakePlatform{missingMessages: map[model.MessageRef]bool{target: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(tt.platform, nil, Options{}, zap.NewNop())
			err := d.Escalate(context.Background(), target, "finish it")
			if !errors.Is(err, ErrTargetNotFound) {
				t.Fatalf("Escalate() = %v, want ErrTargetNotFound", err)
			}
			if len(tt.platform.replies) != 0 {
				t.Fatalf("unexpected replies: %v", tt.platform.replies)
			}
		})
	}
}

func TestEscalateTimeout(t *testing.T) {
	p := &fakePlatform{block: true}
	d := NewDispatcher(p, nil, Options{AttemptTimeout: 20 * time.Millisecond}, zap.NewNop())
	err := d.Escalate(context.Background(), model.MessageRef{ChatID: 1, MessageID: 1}, "tick tock")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Escalate() = %v, want deadline exceeded", err)
	}
}

func TestDeliverFallsBack(t *testing.T) {
	p := &fakePlatform{directErr: errors.New("Forbidden: bot can't initiate conversation with a user")}
	d := NewDispatcher(p, nil, Options{RatePerSecond: 1000}, zap.NewNop())

	used, err := d.Deliver(context.Background(), KindReminder,
		Direct(42, "stretch"),
		Post(7, "stretch"),
	)
	if err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if used != "post" {
		t.Fatalf("Deliver() used %q, want post", used)
	}
	if len(p.posts) != 1 || p.posts[0] != "stretch" {
		t.Fatalf("posts = %v", p.posts)
	}
}

func TestDeliverStopsAtFirstSuccess(t *testing.T) {
	p := &fakePlatform{}
	d := NewDispatcher(p, nil, Options{}, zap.NewNop())

	used, err := d.Deliver(context.Background(), KindStreakContinue, Direct(42, "3 days"), Post(7, "3 days"))
	if err != nil || used != "direct" {
		t.Fatalf("Deliver() = %q, %v", used, err)
	}
	if len(p.posts) != 0 {
		t.Fatalf("fallback should not run, posts = %v", p.posts)
	}
}

func TestDeliverExhausted(t *testing.T) {
	p := &fakePlatform{directErr: errors.New("blocked"), postErr: errors.New("chat not found")}
	d := NewDispatcher(p, nil, Options{}, zap.NewNop())

	_, err := d.Deliver(context.Background(), KindReminder, Direct(1, "x"), Post(2, "x"))
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Deliver() = %v, want ErrExhausted", err)
	}
}

func TestDeliverThrottled(t *testing.T) {
	p := &fakePlatform{}
	d := NewDispatcher(p, nil, Options{RatePerSecond: 0.01}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := d.Deliver(ctx, KindReminder, Direct(42, "first")); err != nil {
		t.Fatalf("first Deliver() error: %v", err)
	}
	_, err := d.Deliver(ctx, KindReminder, Direct(42, "second"), Post(7, "second"))
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("Deliver() = %v, want ErrThrottled", err)
	}
	if ctx.Err() != nil {
		t.Fatal("limiter should refuse without waiting out the deadline")
	}
	if len(p.directs) != 1 || len(p.posts) != 0 {
		t.Fatalf("directs = %v, posts = %v", p.directs, p.posts)
	}
}

func TestThrottleSharesDeliveryBudget(t *testing.T) {
	p := &fakePlatform{}
	d := NewDispatcher(p, nil, Options{RatePerSecond: 0.01}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := d.Throttle(ctx); err != nil {
		t.Fatalf("Throttle() error: %v", err)
	}
	if _, err := d.Deliver(ctx, KindReminder, Direct(42, "late")); !errors.Is(err, ErrThrottled) {
		t.Fatalf("Deliver() = %v, want ErrThrottled", err)
	}
	if len(p.directs) != 0 {
		t.Fatalf("directs = %v, want none", p.directs)
	}

	unlimited := NewDispatcher(p, nil, Options{}, zap.NewNop())
	if err := unlimited.Throttle(ctx); err != nil {
		t.Fatalf("Throttle() without limiter = %v", err)
	}
}
