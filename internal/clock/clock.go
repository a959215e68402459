package clock

import (
	"fmt"
	"sync"
	"time"
)

// DateLayout is the storage format of local calendar dates.
const DateLayout = "2006-01-02"

// Clock supplies the current instant and local calendar days for one time zone.
type Clock struct {
	loc *time.Location

	mu    sync.Mutex
	fixed *time.Time
}

func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// NewFixed returns a clock frozen at t. Use Set or Advance to move it.
func NewFixed(t time.Time, loc *time.Location) *Clock {
	c := New(loc)
	c.Set(t)
	return c
}

// LoadLocation resolves an IANA zone name, treating "" as UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

// Now returns the current instant in UTC.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fixed != nil {
		return *c.fixed
	}
	return time.Now().UTC()
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	utc := t.UTC()
	c.fixed = &utc
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// Today returns local midnight of the current local calendar day.
func (c *Clock) Today() time.Time {
	return c.DayOf(c.Now())
}

// DayOf returns local midnight of the calendar day containing t.
func (c *Clock) DayOf(t time.Time) time.Time {
	local := t.In(c.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// DayBounds returns the half-open UTC interval [start, end) covering the local day of day.
// AddDate keeps the bounds correct across DST shifts (23h and 25h days).
func (c *Clock) DayBounds(day time.Time) (time.Time, time.Time) {
	start := c.DayOf(day)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

// Date formats the local calendar date of t.
func (c *Clock) Date(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}
