package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/rules"
	"github.com/lazypower/nudge/internal/signal"
	"github.com/lazypower/nudge/internal/store"
)

type countingBuilder struct {
	builds atomic.Int32
	ctx    signal.Context
	built  chan struct{}
}

func (b *countingBuilder) Build() *signal.Context {
	b.builds.Add(1)
	if b.built != nil {
		select {
		case b.built <- struct{}{}:
		default:
		}
	}
	c := b.ctx
	return &c
}

func testHost(t *testing.T, b *countingBuilder) *Host {
	t.Helper()
	all := rules.Default(rules.DefaultThresholds())
	st := cooldown.New(store.NewMemKV())
	hub := engine.NewHub()
	m := engine.MustNewMetrics(prometheus.NewRegistry())

	h := New(b, time.Hour)
	for _, s := range []struct {
		name  string
		max   int
		rules []string
	}{
		{"home", 1, []string{rules.RuleDeadline}},
		{"dialog", 1, []string{rules.RuleMoment}},
	} {
		reg, err := all.Subset(s.rules)
		if err != nil {
			t.Fatalf("Subset: %v", err)
		}
		h.Add(engine.New(b, reg, st, engine.Options{Surface: s.name, Hub: hub, Metrics: m}), s.max)
	}
	return h
}

func deadlineDay() signal.Context {
	due := time.Date(2026, 10, 14, 17, 0, 0, 0, time.UTC)
	return signal.Context{
		Now:   time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
		Tasks: []signal.Task{{ID: "t1", Title: "Expenses", Status: signal.StatusTodo, Deadline: &due}},
		Visit: signal.Visit{IsFirstToday: true, VisitsToday: 1},
	}
}

func TestTickBuildsOnceAndFansOut(t *testing.T) {
	b := &countingBuilder{ctx: deadlineDay()}
	h := testHost(t, b)

	if !h.Tick() {
		t.Fatal("Tick skipped with nothing running")
	}
	if n := b.builds.Load(); n != 1 {
		t.Errorf("Build called %d times for one tick, want 1", n)
	}

	home, ok := h.Last("home")
	if !ok || len(home.Candidates) != 1 || home.Candidates[0].ID != "deadline-today-t1" {
		t.Errorf("home = %+v ok=%v", home, ok)
	}
	dialog, ok := h.Last("dialog")
	if !ok || len(dialog.Candidates) != 1 || dialog.Candidates[0].RuleID != rules.RuleMoment {
		t.Errorf("dialog = %+v ok=%v", dialog, ok)
	}

	status := h.Surfaces()
	if len(status) != 2 || status[0].Name != "home" || status[0].Last == nil {
		t.Errorf("Surfaces = %+v", status)
	}
}

func TestTickSingleFlight(t *testing.T) {
	b := &countingBuilder{ctx: deadlineDay()}
	h := testHost(t, b)

	h.pass.Lock()
	if h.Tick() {
		t.Error("Tick ran while another pass held the lock")
	}
	h.pass.Unlock()

	if b.builds.Load() != 0 {
		t.Error("skipped tick built a Context")
	}
}

func TestEvaluateSurface(t *testing.T) {
	b := &countingBuilder{ctx: deadlineDay()}
	h := testHost(t, b)

	if _, ok := h.Evaluate("nope", 1); ok {
		t.Error("unknown surface evaluated")
	}

	res, ok := h.Evaluate("home", 0)
	if !ok || len(res.Candidates) != 1 {
		t.Fatalf("Evaluate(home) = %+v ok=%v", res, ok)
	}
	if _, ok := h.Last("dialog"); ok {
		t.Error("evaluating one surface touched another")
	}
}

func TestStartTriggerStop(t *testing.T) {
	b := &countingBuilder{ctx: deadlineDay(), built: make(chan struct{}, 1)}
	h := testHost(t, b)

	h.Start()
	defer h.Stop()
	wait(t, b.built)

	h.Trigger()
	wait(t, b.built)

	h.Stop()
	h.Stop()
}

func TestSessionID(t *testing.T) {
	h := New(&countingBuilder{}, time.Minute)
	if _, err := uuid.Parse(h.SessionID); err != nil {
		t.Errorf("SessionID %q: %v", h.SessionID, err)
	}
	if other := New(&countingBuilder{}, time.Minute); other.SessionID == h.SessionID {
		t.Error("two hosts share a session id")
	}
}

func wait(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a tick")
	}
}

func TestEvaluateNegativeLimitCommitsNothing(t *testing.T) {
	b := &countingBuilder{ctx: deadlineDay()}
	h := testHost(t, b)

	res, ok := h.Evaluate("home", -1)
	if !ok {
		t.Fatal("home not found")
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("limit -1 emitted %+v", res.Candidates)
	}

	res, _ = h.Evaluate("home", 0)
	if len(res.Candidates) != 1 || res.Candidates[0].ID != "deadline-today-t1" {
		t.Errorf("default cap after a negative limit = %+v, want the deadline", res.Candidates)
	}
}
