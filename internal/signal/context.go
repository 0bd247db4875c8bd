// Package signal assembles the immutable snapshot of user signals that every
// rule evaluates against: tasks, calendar events, routines, energy, visit
// history and calendar integration state.
package signal

import (
	"time"
)

// TaskStatus is the completion state of a task.
type TaskStatus string

const (
	StatusTodo TaskStatus = "todo"
	StatusDone TaskStatus = "done"
)

// Importance ranks a task. Empty means unspecified.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Task is a to-do item with an optional deadline.
type Task struct {
	ID         string     `json:"id" yaml:"id"`
	Title      string     `json:"title" yaml:"title"`
	Status     TaskStatus `json:"status" yaml:"status"`
	Deadline   *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Importance Importance `json:"importance,omitempty" yaml:"importance,omitempty"`
}

// Open reports whether the task still needs doing.
func (t Task) Open() bool {
	return t.Status != StatusDone
}

// Event is a calendar entry.
type Event struct {
	ID       string    `json:"id" yaml:"id"`
	Title    string    `json:"title" yaml:"title"`
	Start    time.Time `json:"start" yaml:"start"`
	End      time.Time `json:"end" yaml:"end"`
	AllDay   bool      `json:"all_day,omitempty" yaml:"all_day,omitempty"`
	Location string    `json:"location,omitempty" yaml:"location,omitempty"`
}

// RepeatType is the schedule a routine repeats on.
type RepeatType string

const (
	RepeatDaily    RepeatType = "daily"
	RepeatWeekdays RepeatType = "weekdays"
	RepeatCustom   RepeatType = "custom"
)

// Routine is a habit with a per-day target.
// RepeatDays uses time.Weekday numbering (0 = Sunday) and only applies to
// RepeatCustom.
type Routine struct {
	ID         string     `json:"id" yaml:"id"`
	Title      string     `json:"title,omitempty" yaml:"title,omitempty"`
	Current    int        `json:"current" yaml:"current"`
	Target     int        `json:"target" yaml:"target"`
	RepeatType RepeatType `json:"repeat_type" yaml:"repeat_type"`
	RepeatDays []int      `json:"repeat_days,omitempty" yaml:"repeat_days,omitempty"`
}

// AppliesOn reports whether the routine is scheduled for the given weekday.
func (r Routine) AppliesOn(day time.Weekday) bool {
	switch r.RepeatType {
	case RepeatWeekdays:
		return day >= time.Monday && day <= time.Friday
	case RepeatCustom:
		for _, d := range r.RepeatDays {
			if time.Weekday(d) == day {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Pending reports whether the routine has not reached its target.
func (r Routine) Pending() bool {
	return r.Current < r.Target
}

// IntegrationState describes which calendar data sources are connected.
type IntegrationState string

const (
	IntegrationNone         IntegrationState = "NONE"
	IntegrationCalendarOnly IntegrationState = "CALENDAR_ONLY"
	IntegrationCalendarPlus IntegrationState = "CALENDAR_PLUS"
)

// HasCalendar reports whether a real calendar signal is available.
func (s IntegrationState) HasCalendar() bool {
	return s == IntegrationCalendarOnly || s == IntegrationCalendarPlus
}

// ParseIntegrationState maps a wire value onto an IntegrationState.
// Unknown values degrade to IntegrationNone.
func ParseIntegrationState(s string) IntegrationState {
	switch IntegrationState(s) {
	case IntegrationCalendarOnly, IntegrationCalendarPlus:
		return IntegrationState(s)
	default:
		return IntegrationNone
	}
}

// Reading is a self-reported energy and condition pair on a 1-5 scale.
// Zero means not reported.
type Reading struct {
	Energy    int `json:"energy" yaml:"energy"`
	Condition int `json:"condition" yaml:"condition"`
}

// Visit summarizes how the user has been opening the app today.
type Visit struct {
	IsFirstToday          bool `json:"is_first_today" yaml:"is_first_today"`
	SecondsSinceLastVisit int  `json:"seconds_since_last_visit" yaml:"seconds_since_last_visit"`
	VisitsToday           int  `json:"visits_today" yaml:"visits_today"`
}

// Context is one evaluation pass's view of the world. It is built fresh by
// Builder.Build and must be treated as read-only by everything that sees it.
type Context struct {
	Now              time.Time
	Tasks            []Task
	Events           []Event
	Routines         []Routine
	EnergyLevel      int
	Condition        int
	Integration      IntegrationState
	Visit            Visit
	SessionDismissed map[string]struct{}
}

// DayKey is the calendar day of Now as YYYY-MM-DD.
func (c *Context) DayKey() string {
	return DayKey(c.Now)
}

// IsDismissed reports whether id was dismissed earlier in this session.
func (c *Context) IsDismissed(id string) bool {
	_, ok := c.SessionDismissed[id]
	return ok
}

// OpenTasks returns the tasks that are not done, in input order.
func (c *Context) OpenTasks() []Task {
	var out []Task
	for _, t := range c.Tasks {
		if t.Open() {
			out = append(out, t)
		}
	}
	return out
}

// EventsToday returns timed and all-day events whose start falls on Now's day.
func (c *Context) EventsToday() []Event {
	var out []Event
	for _, e := range c.Events {
		if SameDay(e.Start.In(c.Now.Location()), c.Now) {
			out = append(out, e)
		}
	}
	return out
}

// DayKey formats t's calendar day in t's location.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween counts calendar days from from's day to to's day in from's
// location. Negative when to is on an earlier day.
func DaysBetween(from, to time.Time) int {
	to = to.In(from.Location())
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	// Civil dates compared in UTC so DST transitions cannot skew the count.
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
