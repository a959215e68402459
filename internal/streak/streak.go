// Package streak counts consecutive local calendar days with at least one completed task.
package streak

import (
	"context"
	"fmt"
	"time"
)

// MaxLookback bounds the backward walk.
const MaxLookback = 365

// CompletionCounter counts a user's completions in the half-open interval [start, end).
type CompletionCounter interface {
	CountCompletedBetween(ctx context.Context, userID uint, start, end time.Time) (int64, error)
}

// Days maps instants to local calendar days.
type Days interface {
	DayOf(t time.Time) time.Time
	DayBounds(day time.Time) (time.Time, time.Time)
}

type Calculator struct {
	counter CompletionCounter
	days    Days
}

func NewCalculator(counter CompletionCounter, days Days) *Calculator {
	return &Calculator{counter: counter, days: days}
}

// Calculate walks backward from endDay and returns how many consecutive days,
// endDay included, have a completion. A day without one ends the streak.
func (c *Calculator) Calculate(ctx context.Context, userID uint, endDay time.Time) (int, error) {
	day := c.days.DayOf(endDay)
	count := 0
	for count < MaxLookback {
		start, end := c.days.DayBounds(day)
		n, err := c.counter.CountCompletedBetween(ctx, userID, start, end)
		if err != nil {
			return 0, fmt.Errorf("streak day %s: %w", start.Format("2006-01-02"), err)
		}
		if n == 0 {
			break
		}
		count++
		// AddDate on local midnight keeps DST days on their calendar date.
		day = day.AddDate(0, 0, -1)
	}
	return count, nil
}

// IsMilestone reports whether a streak deserves the weekly celebration.
func IsMilestone(n int) bool {
	return n > 0 && n%7 == 0
}
