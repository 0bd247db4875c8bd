package rules

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lazypower/nudge/internal/signal"
)

// Built-in rule ids.
const (
	RuleDeadline        = "deadline"
	RuleMeetingSoon     = "meeting-soon"
	RuleRoutineEvening  = "routine-evening"
	RuleFocusPeak       = "focus-peak"
	RuleLowEnergy       = "low-energy"
	RuleMorningBriefing = "morning-briefing"
	RuleDayType         = "day-type"
	RuleMoment          = "moment"
	RuleAvoidOne        = "avoid-one"
)

// Deadline emits one candidate per open task due today (tier 1) or
// tomorrow (tier 2).
func Deadline() Rule {
	return Rule{
		ID:        RuleDeadline,
		Category:  "deadline",
		Tier:      1,
		Cooldown:  2 * time.Hour,
		MaxPerDay: 10,
		Evaluate: func(ctx *signal.Context) []Candidate {
			var out []Candidate
			for _, t := range ctx.OpenTasks() {
				if t.Deadline == nil {
					continue
				}
				until := t.Deadline.Sub(ctx.Now)
				if until < 0 {
					until = 0
				}
				action := &Action{
					Label:   "Start now",
					Type:    "start-task",
					Payload: map[string]string{"task_id": t.ID, "title": t.Title},
				}
				switch signal.DaysBetween(ctx.Now, *t.Deadline) {
				case 0:
					out = append(out, Candidate{
						ID:      "deadline-today-" + t.ID,
						Tier:    1,
						Icon:    "alarm",
						Title:   "Due today",
						Message: fmt.Sprintf("%s is due today.", t.Title),
						Action:  action,
						Kind:    KindDeadline,
						Until:   until,
					})
				case 1:
					out = append(out, Candidate{
						ID:      "deadline-tomorrow-" + t.ID,
						Tier:    2,
						Icon:    "calendar",
						Title:   "Due tomorrow",
						Message: fmt.Sprintf("%s is due tomorrow.", t.Title),
						Action:  action,
						Kind:    KindDeadline,
						Until:   until,
					})
				}
			}
			return out
		},
		FollowUp: func(c Candidate, actionID string) *Candidate {
			if actionID != "start-task" || c.Action == nil {
				return nil
			}
			taskID := c.Action.Payload["task_id"]
			return &Candidate{
				ID:      "deadline-started-" + taskID,
				Tier:    3,
				Icon:    "play",
				Title:   "Good start",
				Message: fmt.Sprintf("Focus on %s. Other nudges will wait.", c.Action.Payload["title"]),
			}
		},
	}
}

// MeetingSoon warns about timed events starting within the soon window.
// The same event re-keys from the 30 minute id to the 10 minute id as it
// gets closer, so both warnings are tracked independently.
func MeetingSoon(th Thresholds) Rule {
	return Rule{
		ID:        RuleMeetingSoon,
		Category:  "meeting",
		Tier:      2,
		Cooldown:  time.Hour,
		MaxPerDay: 20,
		Evaluate: func(ctx *signal.Context) []Candidate {
			var out []Candidate
			for _, e := range ctx.EventsToday() {
				if e.AllDay {
					continue
				}
				until := e.Start.Sub(ctx.Now)
				if until <= 0 || until > th.MeetingSoon {
					continue
				}
				minutes := int(math.Ceil(until.Minutes()))
				msg := fmt.Sprintf("%s starts in %d min.", e.Title, minutes)
				if e.Location != "" {
					msg = fmt.Sprintf("%s starts in %d min at %s.", e.Title, minutes, e.Location)
				}
				c := Candidate{
					ID:      "meeting-30min-" + e.ID,
					Tier:    2,
					Icon:    "clock",
					Title:   "Meeting soon",
					Message: msg,
					Action:  &Action{Label: "Open", Type: "open-event", Payload: map[string]string{"event_id": e.ID}},
					Kind:    KindMeeting,
					Until:   until,
				}
				if until <= th.MeetingImminent {
					c.ID = "meeting-10min-" + e.ID
					c.Tier = 1
					c.Title = "Meeting starting"
				}
				out = append(out, c)
			}
			return out
		},
	}
}

// RoutineEvening reminds about routines scheduled today that are still
// short of target, during the evening window.
func RoutineEvening(th Thresholds) Rule {
	return Rule{
		ID:        RuleRoutineEvening,
		Category:  "routine",
		Tier:      3,
		Cooldown:  90 * time.Minute,
		MaxPerDay: 2,
		Evaluate: func(ctx *signal.Context) []Candidate {
			if !th.EveningWindow.Contains(ctx.Now) {
				return nil
			}
			pending := 0
			for _, r := range ctx.Routines {
				if r.AppliesOn(ctx.Now.Weekday()) && r.Pending() {
					pending++
				}
			}
			if pending == 0 {
				return nil
			}
			msg := "1 routine is still open today."
			if pending > 1 {
				msg = fmt.Sprintf("%d routines are still open today.", pending)
			}
			return []Candidate{{
				ID:      "routine-evening-" + ctx.DayKey(),
				Icon:    "repeat",
				Title:   "Evening check-in",
				Message: msg,
				Action:  &Action{Label: "Review", Type: "open-routines"},
			}}
		},
	}
}

// FocusPeak suggests the most pressing important task during a
// peak-productivity window when energy is high.
func FocusPeak(th Thresholds) Rule {
	return Rule{
		ID:        RuleFocusPeak,
		Category:  "focus",
		Tier:      3,
		Cooldown:  3 * time.Hour,
		MaxPerDay: 2,
		Evaluate: func(ctx *signal.Context) []Candidate {
			if ctx.EnergyLevel < th.FocusEnergyMin || !inAny(th.PeakWindows, ctx.Now) {
				return nil
			}
			var important []signal.Task
			for _, t := range ctx.OpenTasks() {
				if t.Importance == signal.ImportanceHigh {
					important = append(important, t)
				}
			}
			if len(important) == 0 {
				return nil
			}
			sort.SliceStable(important, func(i, j int) bool {
				a, b := important[i].Deadline, important[j].Deadline
				switch {
				case a == nil:
					return false
				case b == nil:
					return true
				default:
					return a.Before(*b)
				}
			})
			t := important[0]
			c := Candidate{
				ID:      "focus-peak-" + t.ID,
				Icon:    "bolt",
				Title:   "Peak focus time",
				Message: fmt.Sprintf("Energy is high. A good window for %s.", t.Title),
				Action: &Action{
					Label:   "Start focus",
					Type:    "start-focus",
					Payload: map[string]string{"task_id": t.ID, "title": t.Title},
				},
			}
			if t.Deadline != nil && t.Deadline.After(ctx.Now) {
				c.Until = t.Deadline.Sub(ctx.Now)
			}
			return []Candidate{c}
		},
		FollowUp: func(c Candidate, actionID string) *Candidate {
			if actionID != "start-focus" || c.Action == nil {
				return nil
			}
			return &Candidate{
				ID:      "focus-started-" + c.Action.Payload["task_id"],
				Icon:    "timer",
				Title:   "Focus block on",
				Message: fmt.Sprintf("Heads down on %s. Check back when you surface.", c.Action.Payload["title"]),
			}
		},
	}
}

// LowEnergy suggests a break when reported energy is low during the day.
func LowEnergy(th Thresholds) Rule {
	return Rule{
		ID:        RuleLowEnergy,
		Category:  "energy",
		Tier:      4,
		Cooldown:  3 * time.Hour,
		MaxPerDay: 2,
		Evaluate: func(ctx *signal.Context) []Candidate {
			if ctx.EnergyLevel == 0 || ctx.EnergyLevel > th.LowEnergyMax || !th.DaytimeWindow.Contains(ctx.Now) {
				return nil
			}
			return []Candidate{{
				ID:      "low-energy-" + ctx.DayKey(),
				Icon:    "battery-low",
				Title:   "Running low",
				Message: "Energy is low. A short break now will pay off later.",
				Action:  &Action{Label: "Take a break", Type: "take-break"},
			}}
		},
		FollowUp: func(c Candidate, actionID string) *Candidate {
			if actionID != "take-break" {
				return nil
			}
			return &Candidate{
				ID:      "break-started-" + c.ID,
				Icon:    "coffee",
				Title:   "Break time",
				Message: "Enjoy the break. Back in ten minutes.",
			}
		},
	}
}

// MorningBriefing summarizes the day once, early in the morning.
func MorningBriefing(th Thresholds) Rule {
	return Rule{
		ID:        RuleMorningBriefing,
		Category:  "briefing",
		Tier:      4,
		Cooldown:  24 * time.Hour,
		MaxPerDay: 1,
		Evaluate: func(ctx *signal.Context) []Candidate {
			if !th.MorningWindow.Contains(ctx.Now) {
				return nil
			}
			tasks := len(ctx.OpenTasks())
			events := len(ctx.EventsToday())
			return []Candidate{{
				ID:      "morning-briefing-" + ctx.DayKey(),
				Icon:    "sunrise",
				Title:   "Good morning",
				Message: fmt.Sprintf("%s and %s today.", plural(tasks, "open task"), plural(events, "event")),
				Action:  &Action{Label: "Plan my day", Type: "plan-day"},
			}}
		},
	}
}

func inAny(windows []Window, t time.Time) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
