// Package policy decides when an open task deserves another nudge.
package policy

import (
	"time"

	"nudge-planner/internal/model"
)

const (
	DefaultGrace            = 6 * time.Hour
	DefaultCooldown         = 3 * time.Hour
	DefaultMaxNotifications = 5
)

// Reason explains a Decide result. It only feeds logs and metrics.
type Reason string

const (
	ReasonReady     Reason = "ready"
	ReasonTerminal  Reason = "terminal"
	ReasonCapped    Reason = "capped"
	ReasonMalformed Reason = "malformed"
	ReasonNotDue    Reason = "not-due"
	ReasonGrace     Reason = "grace"
	ReasonCooldown  Reason = "cooldown"
)

// Escalation holds the timing knobs for escalating nudges.
type Escalation struct {
	Grace            time.Duration
	Cooldown         time.Duration
	MaxNotifications int
}

func Default() Escalation {
	return Escalation{
		Grace:            DefaultGrace,
		Cooldown:         DefaultCooldown,
		MaxNotifications: DefaultMaxNotifications,
	}
}

// Ready reports whether an escalation should be sent for task at now.
func (p Escalation) Ready(task model.Task, now time.Time) bool {
	return p.Decide(task, now) == ReasonReady
}

// Decide evaluates the gates in order: terminal state, cap, readiness, cooldown.
//
// With a due date the task becomes ready once the deadline passes; without one it
// becomes ready after Grace has elapsed since creation. A zero timestamp on a
// loaded row means the stored value could not be parsed, and the row is left alone.
func (p Escalation) Decide(task model.Task, now time.Time) Reason {
	if task.Terminal() {
		return ReasonTerminal
	}
	if task.NotificationCount >= p.MaxNotifications {
		return ReasonCapped
	}
	if task.CreatedAt.IsZero() || isMalformed(task.DueAt) || isMalformed(task.LastNotifiedAt) {
		return ReasonMalformed
	}

	if task.DueAt != nil {
		if now.Before(*task.DueAt) {
			return ReasonNotDue
		}
	} else if now.Sub(task.CreatedAt) < p.Grace {
		return ReasonGrace
	}

	if task.LastNotifiedAt != nil && now.Sub(*task.LastNotifiedAt) < p.Cooldown {
		return ReasonCooldown
	}
	return ReasonReady
}

func isMalformed(t *time.Time) bool {
	return t != nil && t.IsZero()
}
