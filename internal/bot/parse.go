package bot

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"nudge-planner/internal/model"
)

const dueLayout = "2006-01-02 15:04"

var (
	errNoTitle     = errors.New("task title is empty")
	errBadDue      = errors.New("due date must look like 2026-11-30 18:00")
	errBadWhen     = errors.New("time must be minutes (e.g. 30) or HH:MM")
	errNoRemindTxt = errors.New("reminder text is empty")
)

// parseAddTask splits "/addtask" arguments of the form "title [| YYYY-MM-DD HH:MM]".
// The due time is read in loc.
func parseAddTask(args string, loc *time.Location) (string, *time.Time, error) {
	title, rawDue, hasDue := strings.Cut(args, "|")
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil, errNoTitle
	}
	if !hasDue || strings.TrimSpace(rawDue) == "" {
		return title, nil, nil
	}
	due, err := time.ParseInLocation(dueLayout, strings.TrimSpace(rawDue), loc)
	if err != nil {
		return "", nil, errBadDue
	}
	due = due.UTC()
	return title, &due, nil
}

// parseRemind splits "/remind" arguments of the form "<minutes|HH:MM> text".
// A bare HH:MM that already passed today means tomorrow.
func parseRemind(args string, now time.Time, loc *time.Location) (time.Time, string, error) {
	when, text, _ := strings.Cut(strings.TrimSpace(args), " ")
	text = strings.TrimSpace(text)
	if when == "" {
		return time.Time{}, "", errBadWhen
	}

	var at time.Time
	if minutes, err := strconv.Atoi(when); err == nil {
		if minutes <= 0 || minutes > 7*24*60 {
			return time.Time{}, "", errBadWhen
		}
		at = now.Add(time.Duration(minutes) * time.Minute)
	} else {
		clock, err := time.Parse("15:04", when)
		if err != nil {
			return time.Time{}, "", errBadWhen
		}
		local := now.In(loc)
		at = time.Date(local.Year(), local.Month(), local.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
	}

	if text == "" {
		return time.Time{}, "", errNoRemindTxt
	}
	return at.UTC(), text, nil
}

func parseTaskID(args string) (uint, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(args), "#")
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("task id must be a positive number")
	}
	return uint(value), nil
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.Join(strings.Fields(title), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// formatTask renders one task line for lists.
func formatTask(task model.Task, now time.Time, loc *time.Location) string {
	icon := iconOpen
	switch {
	case task.Done:
		icon = iconDone
	case task.Closed:
		icon = iconClosed
	case task.DueAt != nil && now.After(*task.DueAt):
		icon = iconOverdue
	case task.DueAt != nil:
		icon = iconDue
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>#%d</b> %s", icon, task.ID, escape(shortTitle(task.Title, 60)))
	if task.DueAt != nil && !task.Done {
		fmt.Fprintf(&b, " · due %s", task.DueAt.In(loc).Format(dueLayout))
	}
	if task.NotificationCount > 0 && !task.Done {
		fmt.Fprintf(&b, " · nudged %d×", task.NotificationCount)
	}
	b.WriteByte('\n')
	return b.String()
}

func anchorText(title string, id uint, due *time.Time, loc *time.Location) string {
	var b strings.Builder
	if id > 0 {
		fmt.Fprintf(&b, "📌 <b>#%d</b> %s", id, escape(title))
	} else {
		fmt.Fprintf(&b, "📌 %s", escape(title))
	}
	if due != nil {
		fmt.Fprintf(&b, "\n⏳ Due %s", due.In(loc).Format(dueLayout))
	}
	b.WriteString("\nTap ✅ when it's done.")
	return b.String()
}
