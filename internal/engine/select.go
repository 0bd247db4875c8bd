package engine

import (
	"time"

	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/rules"
	"github.com/lazypower/nudge/internal/signal"
)

// Result is what one evaluation pass hands back to a surface.
type Result struct {
	Surface     string            `json:"surface"`
	Candidates  []rules.Candidate `json:"candidates"`
	Rejected    int               `json:"rejected"`
	EvaluatedAt time.Time         `json:"evaluatedAt"`
}

// Cooldowns is the part of the cooldown store the capper needs.
type Cooldowns interface {
	IsEligible(id string, p cooldown.Policy, now time.Time) bool
	IsDismissedThisSession(id string) bool
	Commit(id string, p cooldown.Policy, now time.Time)
}

// PolicyFunc resolves the cooldown policy a candidate is held to.
type PolicyFunc func(c rules.Candidate) cooldown.Policy

// Select walks ranked, skipping dismissed and ineligible candidates, and
// accepts up to limit of them. Only accepted candidates are committed, so a
// candidate that loses the cut keeps its cooldown budget for the next pass.
// limit <= 0 yields an empty result and touches nothing.
func Select(ranked []rules.Candidate, limit int, cd Cooldowns, policy PolicyFunc, sc *signal.Context) Result {
	res := Result{Candidates: []rules.Candidate{}, EvaluatedAt: sc.Now}
	if limit <= 0 {
		return res
	}

	for _, c := range ranked {
		if len(res.Candidates) == limit {
			break
		}
		if sc.IsDismissed(c.ID) || cd.IsDismissedThisSession(c.ID) {
			continue
		}
		p := policy(c)
		if !cd.IsEligible(c.ID, p, sc.Now) {
			continue
		}
		cd.Commit(c.ID, p, sc.Now)
		c.ShownAt = sc.Now
		res.Candidates = append(res.Candidates, c)
	}
	res.Rejected = len(ranked) - len(res.Candidates)
	return res
}
