package notify

import (
	"fmt"
	"math/rand"
	"sync"
)

// Kind tags a notification. The caller picks the kind; the phrasebook picks the words.
type Kind string

const (
	KindTaskTick        Kind = "task_tick"
	KindEscalation      Kind = "escalation"
	KindCelebration     Kind = "celebration"
	KindStreakContinue  Kind = "streak_continue"
	KindStreakReset     Kind = "streak_reset"
	KindStreakMilestone Kind = "streak_milestone"
	KindDailyPrompt     Kind = "daily_prompt"
	KindReminder        Kind = "reminder"
)

// Phrasebook maps each kind to its template set. Templates may carry fmt verbs;
// every template of a kind must accept the same arguments.
type Phrasebook struct {
	lines map[Kind][]string

	mu   sync.Mutex
	pick func(n int) int
}

// NewPhrasebook builds a phrasebook. pick chooses an index in [0, n); nil means random.
func NewPhrasebook(lines map[Kind][]string, pick func(n int) int) *Phrasebook {
	if pick == nil {
		rng := rand.New(rand.NewSource(rand.Int63()))
		pick = rng.Intn
	}
	return &Phrasebook{lines: lines, pick: pick}
}

// Compose picks a template for kind and fills it with args.
func (p *Phrasebook) Compose(kind Kind, args ...interface{}) string {
	set := p.lines[kind]
	if len(set) == 0 {
		return string(kind)
	}
	p.mu.Lock()
	line := set[p.pick(len(set))]
	p.mu.Unlock()
	if len(args) == 0 {
		return line
	}
	return fmt.Sprintf(line, args...)
}

// DefaultPhrasebook returns the stock lines with random selection.
func DefaultPhrasebook() *Phrasebook {
	return NewPhrasebook(DefaultLines, nil)
}

// DefaultLines is the stock content.
var DefaultLines = map[Kind][]string{
	KindTaskTick: {
		"One down. Understated excellence.",
		"Neat work. Don’t let it go to your head.",
		"Progress suits you.",
		"A clean strike. The kind that scares paperwork.",
		"Good. Now keep moving.",
		"Tidy work. It almost looks easy.",
		"A win, however small, is still a win.",
		"Nicely done.",
		"A quiet victory. The best kind.",
		"Well struck.",
		"Steady hands. Keep them that way.",
		"Done without drama. Excellent.",
	},
	KindEscalation: {
		"You’ve left something undone. It watches. I do as well.",
		"The list is incomplete. Loose ends unsettle me.",
		"Do you know what happens to half-cooked things? They spoil.",
		"The day is bleeding time. You could stop it.",
		"The task is waiting. It prefers not to wait long.",
		"Leaving work unfinished is uncivilised. Correct it.",
		"You’re so close I can almost taste the finish.",
		"A symphony without its final note is an irritation. Resolve it.",
		"You could end this now. That would be wisest.",
		"I’m patient. Hunger rarely is.",
		"Do finish. It’s far more pleasant than being finished with.",
	},
	KindCelebration: {
		"🎉 %d tasks finished today. Exquisite discipline.",
		"🎉 %d down today. Take a bow, briefly.",
		"🎉 %d completions in one day. I’m almost impressed.",
	},
	KindStreakContinue: {
		"🔥 Streak: %d day(s) in a row. Keep the chain unbroken.",
		"🔥 %d consecutive day(s) of finished work. Don’t stop now.",
	},
	KindStreakReset: {
		"Streak reset to zero. Yesterday slipped away. Today needn’t.",
		"No completions yesterday. The streak begins again with one task.",
	},
	KindStreakMilestone: {
		"🏆 %d days straight. A milestone worth savouring.",
		"🏆 %d-day streak. Remarkable consistency.",
	},
	KindDailyPrompt: {
		"Morning. Add your tasks one by one. Keep them sharp.",
		"Today likes precision. Begin with a single task.",
		"Plan it now, or the day will plan itself for you.",
		"Three good cuts beat twelve dull ones.",
		"If everything matters, nothing does. Declare your first task.",
		"Discipline starts with a single line. Add it.",
		"Write it before it escapes you.",
		"A tidy list is a courteous future.",
	},
	KindReminder: {
		"⏰ Reminder: %s",
	},
}
