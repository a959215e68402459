package policy

import (
	"testing"
	"time"

	"nudge-planner/internal/model"
)

var t0 = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestDecide(t *testing.T) {
	t.Parallel()
	p := Escalation{Grace: 360 * time.Minute, Cooldown: 180 * time.Minute, MaxNotifications: 5}
	due := t0.Add(2 * time.Hour)

	tests := []struct {
		name string
		task model.Task
		now  time.Time
		want Reason
	}{
		{name: "done", task: model.Task{CreatedAt: t0, Done: true}, now: t0.Add(24 * time.Hour), want: ReasonTerminal},
		{name: "closed", task: model.Task{CreatedAt: t0, Closed: true}, now: t0.Add(24 * time.Hour), want: ReasonTerminal},
		{name: "capped", task: model.Task{CreatedAt: t0, NotificationCount: 5}, now: t0.Add(48 * time.Hour), want: ReasonCapped},
		{name: "inside grace", task: model.Task{CreatedAt: t0}, now: t0.Add(359 * time.Minute), want: ReasonGrace},
		{name: "grace elapsed exactly", task: model.Task{CreatedAt: t0}, now: t0.Add(360 * time.Minute), want: ReasonReady},
		{name: "before due", task: model.Task{CreatedAt: t0, DueAt: &due}, now: due.Add(-time.Second), want: ReasonNotDue},
		{name: "at due ignores grace", task: model.Task{CreatedAt: t0, DueAt: &due}, now: due, want: ReasonReady},
		{name: "cooldown", task: model.Task{CreatedAt: t0, LastNotifiedAt: ptr(t0.Add(7 * time.Hour))}, now: t0.Add(8 * time.Hour), want: ReasonCooldown},
		{name: "cooldown over", task: model.Task{CreatedAt: t0, LastNotifiedAt: ptr(t0.Add(7 * time.Hour))}, now: t0.Add(10 * time.Hour), want: ReasonReady},
		{name: "malformed created_at", task: model.Task{}, now: t0, want: ReasonMalformed},
		{name: "malformed due_at", task: model.Task{CreatedAt: t0, DueAt: &time.Time{}}, now: t0.Add(24 * time.Hour), want: ReasonMalformed},
		{name: "malformed last_notified_at", task: model.Task{CreatedAt: t0, LastNotifiedAt: &time.Time{}}, now: t0.Add(24 * time.Hour), want: ReasonMalformed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := p.Decide(tt.task, tt.now); got != tt.want {
				t.Fatalf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}
}

// Created at T0 without a due date, grace 360m, cooldown 180m.
func TestEscalationTimeline(t *testing.T) {
	t.Parallel()
	p := Escalation{Grace: 360 * time.Minute, Cooldown: 180 * time.Minute, MaxNotifications: 5}
	task := model.Task{CreatedAt: t0}

	if p.Ready(task, t0.Add(359*time.Minute)) {
		t.Fatal("ready at T0+359m")
	}
	first := t0.Add(361 * time.Minute)
	if !p.Ready(task, first) {
		t.Fatal("not ready at T0+361m")
	}
	task.NotificationCount++
	task.LastNotifiedAt = &first

	if p.Ready(task, t0.Add(400*time.Minute)) {
		t.Fatal("ready at T0+400m, cooldown should hold")
	}
	if p.Ready(task, t0.Add(540*time.Minute)) {
		t.Fatal("ready at T0+540m, cooldown ends at T0+541m")
	}
	if !p.Ready(task, t0.Add(542*time.Minute)) {
		t.Fatal("not ready at T0+542m")
	}
}

func TestTerminalTasksNeverReady(t *testing.T) {
	t.Parallel()
	p := Default()
	for _, task := range []model.Task{
		{CreatedAt: t0, Done: true},
		{CreatedAt: t0, Closed: true},
		{CreatedAt: t0, Done: true, Closed: true, DueAt: ptr(t0)},
	} {
		for h := 0; h < 24*30; h += 7 {
			if p.Ready(task, t0.Add(time.Duration(h)*time.Hour)) {
				t.Fatalf("terminal task %+v ready after %dh", task, h)
			}
		}
	}
}

func TestCapStopsEscalation(t *testing.T) {
	t.Parallel()
	p := Escalation{Grace: time.Hour, Cooldown: time.Hour, MaxNotifications: 3}
	task := model.Task{CreatedAt: t0}
	now := t0
	sent := 0
	for i := 0; i < 100; i++ {
		now = now.Add(30 * time.Minute)
		if p.Ready(task, now) {
			sent++
			at := now
			task.NotificationCount++
			task.LastNotifiedAt = &at
		}
	}
	if sent != 3 || task.NotificationCount != 3 {
		t.Fatalf("sent %d escalations, want 3", sent)
	}
}
