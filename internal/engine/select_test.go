package engine

import (
	"testing"
	"time"

	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/rules"
	"github.com/lazypower/nudge/internal/signal"
	"github.com/lazypower/nudge/internal/store"
)

func TestSelectSkipsContextDismissed(t *testing.T) {
	st := cooldown.New(store.NewMemKV())
	sc := &signal.Context{
		Now:              at(9, 0),
		SessionDismissed: map[string]struct{}{"a": {}},
	}
	policy := func(rules.Candidate) cooldown.Policy {
		return cooldown.Policy{RuleID: "r", Cooldown: time.Hour, MaxPerDay: 5}
	}

	res := Select([]rules.Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}}, 1, st, policy, sc)
	if len(res.Candidates) != 1 || res.Candidates[0].ID != "b" {
		t.Fatalf("got %v, want b", resultIDs(res))
	}
	if res.Rejected != 2 {
		t.Errorf("Rejected = %d, want 2", res.Rejected)
	}
	if _, ok := st.Lookup("a", sc.Now); ok {
		t.Error("dismissed candidate committed")
	}
	if _, ok := st.Lookup("c", sc.Now); ok {
		t.Error("candidate past the cut committed")
	}
}

func TestSelectHonoursRuleTallyWithinPass(t *testing.T) {
	st := cooldown.New(store.NewMemKV())
	sc := &signal.Context{Now: at(9, 0)}
	policy := func(rules.Candidate) cooldown.Policy {
		return cooldown.Policy{RuleID: "r", MaxPerDay: 2}
	}

	res := Select([]rules.Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}}, 3, st, policy, sc)
	if len(res.Candidates) != 2 {
		t.Fatalf("got %v, want two under a cap of 2", resultIDs(res))
	}
}
