package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lazypower/nudge/internal/config"
	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/rules"
	"github.com/lazypower/nudge/internal/scheduler"
	"github.com/lazypower/nudge/internal/signal"
	"github.com/lazypower/nudge/internal/store"
)

// auditedActions are the action types the built-in rules emit.
var auditedActions = []string{"start-task", "open-event", "open-routines", "start-focus", "take-break", "plan-day"}

// app is one wired nudge session.
type app struct {
	state     *signal.State
	visits    *signal.VisitLog
	cooldowns *cooldown.Store
	builder   *signal.Builder
	host      *scheduler.Host
}

// wire assembles a session over kv. db may be nil, in which case actions are
// not recorded. visits overrides the persisted visit log when non-nil.
func wire(cfg *config.Config, kv store.KV, db *store.DB, clock func() time.Time, visits signal.VisitProvider) (*app, error) {
	th, err := cfg.Thresholds.Resolve()
	if err != nil {
		return nil, err
	}

	a := &app{
		state:     signal.NewState(clock),
		visits:    signal.NewVisitLog(kv, clock),
		cooldowns: cooldown.New(kv),
	}
	if visits == nil {
		visits = a.visits
	}
	a.builder = &signal.Builder{
		Tasks:     a.state,
		Events:    a.state,
		Routines:  a.state,
		Condition: a.state,
		Visits:    visits,
		Session:   a.cooldowns,
		Clock:     clock,
	}

	all := rules.Default(th)
	for id, o := range cfg.Rules {
		if err := all.Override(id, o.CooldownMinutes, o.MaxPerDay); err != nil {
			return nil, fmt.Errorf("rule override: %w", err)
		}
	}

	opts := engine.Options{
		Hub:      engine.NewHub(),
		Metrics:  engine.DefaultMetrics(),
		Handlers: actionHandlers(db),
	}
	a.host = scheduler.New(a.builder, cfg.SchedulerInterval())
	for _, sc := range cfg.Surfaces {
		sub, err := all.Subset(sc.Rules)
		if err != nil {
			return nil, fmt.Errorf("surface %s: %w", sc.Name, err)
		}
		opts.Surface = sc.Name
		a.host.Add(engine.New(a.builder, sub, a.cooldowns, opts), sc.MaxResults)
	}
	return a, nil
}

// actionHandlers records every built-in action in the actions table.
func actionHandlers(db *store.DB) map[string]engine.ActionHandler {
	if db == nil {
		return nil
	}
	record := func(c rules.Candidate, actionID string) error {
		payload := ""
		if c.Action != nil && len(c.Action.Payload) > 0 {
			data, err := json.Marshal(c.Action.Payload)
			if err != nil {
				return fmt.Errorf("encode payload: %w", err)
			}
			payload = string(data)
		}
		if err := db.AddAction(c.ID, c.RuleID, actionID, payload); err != nil {
			return err
		}
		log.Info().Str("candidate", c.ID).Str("action", actionID).Msg("action recorded")
		return nil
	}
	handlers := make(map[string]engine.ActionHandler, len(auditedActions))
	for _, a := range auditedActions {
		handlers[a] = record
	}
	return handlers
}

// wireFixture wires a session and seeds it from f, which may be nil. A
// fixture visit block pins the visit summary in place of the visit log.
func wireFixture(cfg *config.Config, kv store.KV, db *store.DB, clock func() time.Time, f *signal.Fixture) (*app, error) {
	var visits signal.VisitProvider
	if f != nil && f.Visit != nil {
		visits = staticVisit(*f.Visit)
	}
	a, err := wire(cfg, kv, db, clock, visits)
	if err != nil {
		return nil, err
	}
	if f != nil {
		f.Apply(a.state)
	}
	return a, nil
}

// staticVisit reports a fixed visit summary.
type staticVisit signal.Visit

func (v staticVisit) Today() (signal.Visit, error) { return signal.Visit(v), nil }

// loadFixture reads the fixture at path, or returns nil when path is empty.
func loadFixture(path string) (*signal.Fixture, error) {
	if path == "" {
		return nil, nil
	}
	return signal.LoadFixture(path)
}
