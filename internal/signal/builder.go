package signal

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// TaskProvider lists the user's tasks.
type TaskProvider interface {
	ListTasks() ([]Task, error)
}

// EventProvider lists today's calendar events and reports which calendar
// integrations are connected.
type EventProvider interface {
	ListToday() ([]Event, error)
	IntegrationState() (IntegrationState, error)
}

// RoutineProvider lists the user's routines.
type RoutineProvider interface {
	ListRoutines() ([]Routine, error)
}

// ConditionProvider returns the latest energy/condition reading.
type ConditionProvider interface {
	Current() (Reading, error)
}

// VisitProvider summarizes today's visits.
type VisitProvider interface {
	Today() (Visit, error)
}

// SessionSource exposes the ids dismissed during the running session.
type SessionSource interface {
	DismissedIDs() []string
}

// Builder assembles a Context from its collaborators. Every collaborator is
// optional; a nil, failing or panicking one contributes its zero value.
// Collaborators must answer from already-fetched state; Build never waits on
// network I/O.
type Builder struct {
	Tasks     TaskProvider
	Events    EventProvider
	Routines  RoutineProvider
	Condition ConditionProvider
	Visits    VisitProvider
	Session   SessionSource

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Build returns a fresh Context. It never fails.
func (b *Builder) Build() *Context {
	now := time.Now()
	if b.Clock != nil {
		now = b.Clock()
	}

	ctx := &Context{
		Now:              now,
		Integration:      IntegrationNone,
		SessionDismissed: make(map[string]struct{}),
	}

	if b.Tasks != nil {
		collect("tasks", func() error {
			tasks, err := b.Tasks.ListTasks()
			if err != nil {
				return err
			}
			ctx.Tasks = append([]Task(nil), tasks...)
			return nil
		})
	}

	if b.Events != nil {
		collect("events", func() error {
			events, err := b.Events.ListToday()
			if err != nil {
				return err
			}
			ctx.Events = append([]Event(nil), events...)
			return nil
		})
		collect("integration", func() error {
			state, err := b.Events.IntegrationState()
			if err != nil {
				return err
			}
			ctx.Integration = ParseIntegrationState(string(state))
			return nil
		})
	}

	if b.Routines != nil {
		collect("routines", func() error {
			routines, err := b.Routines.ListRoutines()
			if err != nil {
				return err
			}
			ctx.Routines = make([]Routine, len(routines))
			for i, r := range routines {
				r.RepeatDays = append([]int(nil), r.RepeatDays...)
				ctx.Routines[i] = r
			}
			return nil
		})
	}

	if b.Condition != nil {
		collect("condition", func() error {
			r, err := b.Condition.Current()
			if err != nil {
				return err
			}
			ctx.EnergyLevel = clampScale(r.Energy)
			ctx.Condition = clampScale(r.Condition)
			return nil
		})
	}

	if b.Visits != nil {
		collect("visits", func() error {
			v, err := b.Visits.Today()
			if err != nil {
				return err
			}
			ctx.Visit = v
			return nil
		})
	}

	if b.Session != nil {
		collect("session", func() error {
			for _, id := range b.Session.DismissedIDs() {
				ctx.SessionDismissed[id] = struct{}{}
			}
			return nil
		})
	}

	return ctx
}

// collect runs fn and absorbs any error or panic. A collaborator that fails
// to answer leaves its part of the Context at the default.
func collect(provider string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("provider", provider).Str("panic", fmt.Sprint(r)).Msg("signal provider panicked")
		}
	}()
	if err := fn(); err != nil {
		log.Debug().Err(err).Str("provider", provider).Msg("signal provider unavailable")
	}
}

// clampScale keeps a reading inside 0-5. Zero stays "not reported".
func clampScale(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 5:
		return 5
	default:
		return v
	}
}
