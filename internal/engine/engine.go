// Package engine turns a signal.Context into the few candidates a surface
// should show: rules run, candidates are annotated, ranked and capped, and
// only what is emitted is committed to the cooldown store.
//
// Nothing here returns an error to the caller. Rule panics, action handler
// failures and persistence faults are logged and counted; the worst case is
// an empty Result.
package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/rules"
	"github.com/lazypower/nudge/internal/signal"
)

// ContextBuilder produces a fresh Context for one pass.
type ContextBuilder interface {
	Build() *signal.Context
}

// ActionHandler performs a candidate's action on behalf of the host.
type ActionHandler func(c rules.Candidate, actionID string) error

// Options configure an Engine. Zero values are usable.
type Options struct {
	// Surface names the engine in results, logs and metrics.
	Surface string
	// Hub is shared by every surface of a session. New creates a private
	// one when nil.
	Hub      *Hub
	Metrics  *Metrics
	Handlers map[string]ActionHandler
}

// Engine evaluates one surface's rule subset.
type Engine struct {
	surface  string
	builder  ContextBuilder
	rules    *rules.Registry
	store    *cooldown.Store
	hub      *Hub
	metrics  *Metrics
	handlers map[string]ActionHandler
}

// New creates an Engine for one surface.
func New(builder ContextBuilder, reg *rules.Registry, st *cooldown.Store, opts Options) *Engine {
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.Handlers == nil {
		opts.Handlers = make(map[string]ActionHandler)
	}
	return &Engine{
		surface:  opts.Surface,
		builder:  builder,
		rules:    reg,
		store:    st,
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		handlers: opts.Handlers,
	}
}

// Surface returns the surface name.
func (e *Engine) Surface() string { return e.surface }

// Rules returns the engine's rule subset.
func (e *Engine) Rules() *rules.Registry { return e.rules }

// Evaluate builds a fresh Context and runs one pass.
func (e *Engine) Evaluate(limit int) Result {
	return e.EvaluateContext(e.builder.Build(), limit)
}

// EvaluateContext runs one pass against sc. Passes of every engine sharing a
// Hub are serialized, so a pass never reads cooldowns another pass is still
// writing.
func (e *Engine) EvaluateContext(sc *signal.Context, limit int) Result {
	e.hub.pass.Lock()
	defer e.hub.pass.Unlock()

	start := time.Now()
	e.metrics.SetPending(e.store.Flush())

	if limit <= 0 {
		return Result{Surface: e.surface, Candidates: []rules.Candidate{}, EvaluatedAt: sc.Now}
	}

	policies := make(map[string]cooldown.Policy)
	byRule := make(map[string]rules.Rule)
	var candidates []rules.Candidate
	for _, r := range e.rules.All() {
		policies[r.ID] = r.Policy()
		byRule[r.ID] = r
		candidates = append(candidates, e.run(r, sc)...)
	}

	queued := e.hub.queuedSnapshot()
	followUps := make(map[string]cooldown.Policy, len(queued))
	for _, q := range queued {
		followUps[q.candidate.ID] = q.policy
		candidates = append(candidates, q.candidate)
	}

	ranked := Rank(Annotate(candidates))
	res := Select(ranked, limit, e.store, func(c rules.Candidate) cooldown.Policy {
		if p, ok := followUps[c.ID]; ok {
			return p
		}
		return policies[c.RuleID]
	}, sc)
	res.Surface = e.surface

	shown := make(map[string]struct{}, len(res.Candidates))
	for _, c := range res.Candidates {
		shown[c.ID] = struct{}{}
		r, ok := byRule[c.RuleID]
		if _, isFollowUp := followUps[c.ID]; isFollowUp || !ok {
			// Follow-ups are terminal.
			r = rules.Rule{ID: c.RuleID}
		}
		e.hub.remember(c, r)
		e.metrics.IncEmitted(e.surface, c.RuleID)
	}
	e.hub.drop(shown)

	e.metrics.ObservePass(e.surface, len(res.Candidates), res.Rejected, time.Since(start))
	log.Debug().
		Str("surface", e.surface).
		Int("emitted", len(res.Candidates)).
		Int("rejected", res.Rejected).
		Msg("evaluation pass")
	return res
}

// run evaluates one rule, treating a panic as no output.
func (e *Engine) run(r rules.Rule, sc *signal.Context) (out []rules.Candidate) {
	defer func() {
		if p := recover(); p != nil {
			log.Warn().Str("rule", r.ID).Interface("panic", p).Msg("rule evaluation failed")
			e.metrics.IncRuleFault(r.ID)
			out = nil
		}
	}()
	for _, c := range r.Evaluate(sc) {
		if c.ID == "" {
			log.Warn().Str("rule", r.ID).Msg("rule produced a candidate without an id")
			continue
		}
		out = append(out, r.Stamp(c))
	}
	return out
}

// Dismiss hides id for the rest of the session.
func (e *Engine) Dismiss(id string) {
	e.store.Dismiss(id)
	e.hub.drop(map[string]struct{}{id: {}})
	e.metrics.IncDismissal()
}

// Act forwards actionID for a recently emitted candidate to its handler,
// dismisses the candidate for the session, and queues the emitting rule's
// follow-up if it has one. It reports false when id is not a recently
// emitted candidate.
func (e *Engine) Act(id, actionID string) bool {
	em, ok := e.hub.lookup(id)
	if !ok {
		log.Debug().Str("candidate", id).Str("action", actionID).Msg("act on unknown candidate")
		e.metrics.IncAction(actionID, "unknown")
		return false
	}

	outcome := "ok"
	if h, ok := e.handlers[actionID]; ok {
		if err := e.handle(h, em.candidate, actionID); err != nil {
			log.Warn().Err(err).Str("candidate", id).Str("action", actionID).Msg("action handler failed")
			outcome = "error"
		}
	} else {
		outcome = "unhandled"
	}
	e.metrics.IncAction(actionID, outcome)

	e.Dismiss(id)

	if em.rule.FollowUp != nil {
		if f := em.rule.FollowUp(em.candidate, actionID); f != nil && f.ID != "" {
			e.hub.enqueue(em.rule.Stamp(*f), em.rule.Policy())
		}
	}
	return true
}

func (e *Engine) handle(h ActionHandler, c rules.Candidate, actionID string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("action handler panicked: %v", p)
		}
	}()
	return h(c, actionID)
}
