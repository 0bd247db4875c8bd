// Package scheduler hosts the surface engines of one session. A single
// ticker drives every surface from one Context per tick, and evaluation is
// single-flight: a tick that fires while the previous one is still running is
// skipped.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lazypower/nudge/internal/engine"
)

// SurfaceStatus describes one registered surface.
type SurfaceStatus struct {
	Name       string         `json:"name"`
	MaxResults int            `json:"maxResults"`
	Rules      []string       `json:"rules"`
	Last       *engine.Result `json:"last,omitempty"`
}

type surface struct {
	engine     *engine.Engine
	maxResults int
}

// Host owns the scheduler loop and the latest result of every surface.
type Host struct {
	SessionID string

	builder  engine.ContextBuilder
	interval time.Duration
	started  time.Time

	surfaces []surface
	byName   map[string]int

	pass sync.Mutex

	mu   sync.RWMutex
	last map[string]engine.Result

	trigger  chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New returns a Host that ticks every interval.
func New(builder engine.ContextBuilder, interval time.Duration) *Host {
	return &Host{
		SessionID: uuid.NewString(),
		builder:   builder,
		interval:  interval,
		started:   time.Now(),
		byName:    make(map[string]int),
		last:      make(map[string]engine.Result),
		trigger:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Add registers a surface engine with its result cap. Surfaces are evaluated
// in registration order on every tick.
func (h *Host) Add(e *engine.Engine, maxResults int) {
	h.byName[e.Surface()] = len(h.surfaces)
	h.surfaces = append(h.surfaces, surface{engine: e, maxResults: maxResults})
}

// Engine returns the named surface's engine.
func (h *Host) Engine(name string) (*engine.Engine, bool) {
	i, ok := h.byName[name]
	if !ok {
		return nil, false
	}
	return h.surfaces[i].engine, true
}

// Any returns the first registered engine, for operations that are not tied
// to one surface such as Dismiss and Act.
func (h *Host) Any() (*engine.Engine, bool) {
	if len(h.surfaces) == 0 {
		return nil, false
	}
	return h.surfaces[0].engine, true
}

// Uptime reports how long the host has existed.
func (h *Host) Uptime() time.Duration {
	return time.Since(h.started)
}

// Tick builds one Context and evaluates every surface against it. It reports
// false, doing nothing, when another pass is still running.
func (h *Host) Tick() bool {
	if !h.pass.TryLock() {
		log.Debug().Msg("tick skipped, previous pass still running")
		return false
	}
	defer h.pass.Unlock()

	sc := h.builder.Build()
	for _, s := range h.surfaces {
		res := s.engine.EvaluateContext(sc, s.maxResults)
		h.store(res)
	}
	return true
}

// Evaluate runs one surface now, waiting for any running pass. A zero limit
// uses the surface's configured cap; a negative one yields an empty result.
func (h *Host) Evaluate(name string, limit int) (engine.Result, bool) {
	i, ok := h.byName[name]
	if !ok {
		return engine.Result{}, false
	}
	s := h.surfaces[i]
	if limit == 0 {
		limit = s.maxResults
	}

	h.pass.Lock()
	defer h.pass.Unlock()
	res := s.engine.EvaluateContext(h.builder.Build(), limit)
	h.store(res)
	return res, true
}

func (h *Host) store(res engine.Result) {
	h.mu.Lock()
	h.last[res.Surface] = res
	h.mu.Unlock()
}

// Last returns the named surface's most recent result.
func (h *Host) Last(name string) (engine.Result, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res, ok := h.last[name]
	return res, ok
}

// Surfaces lists the registered surfaces in registration order.
func (h *Host) Surfaces() []SurfaceStatus {
	out := make([]SurfaceStatus, 0, len(h.surfaces))
	for _, s := range h.surfaces {
		st := SurfaceStatus{
			Name:       s.engine.Surface(),
			MaxResults: s.maxResults,
			Rules:      s.engine.Rules().IDs(),
		}
		if res, ok := h.Last(st.Name); ok {
			st.Last = &res
		}
		out = append(out, st)
	}
	return out
}

// Names returns the surface names, sorted.
func (h *Host) Names() []string {
	names := make([]string, 0, len(h.byName))
	for n := range h.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Trigger requests a tick outside the regular interval, e.g. after a signal
// changed. Requests made while one is already pending collapse into it.
func (h *Host) Trigger() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// Start runs a tick immediately and then on every interval or Trigger until
// Stop is called.
func (h *Host) Start() {
	h.Tick()

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				h.Tick()
			case <-h.trigger:
				h.Tick()
			case <-h.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the scheduler loop. It is safe to call more than once.
func (h *Host) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}
