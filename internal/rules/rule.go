// Package rules holds the independent, stateless evaluators that turn a
// signal.Context into zero or more Candidates, plus the registry surfaces
// pick their rule subsets from.
package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/signal"
)

// Confidence describes how much a candidate relied on a real integrated
// signal. Empty means the rule makes no confidence claim.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Level orders confidences: HIGH=3, MEDIUM=2, LOW=1, unset=0.
func (c Confidence) Level() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Downgrade returns the next lower tier. LOW and unset are unchanged.
func (c Confidence) Downgrade() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	case ConfidenceMedium:
		return ConfidenceLow
	default:
		return c
	}
}

// Kind groups candidates for ranking tie-breaks.
type Kind string

const (
	KindMeeting  Kind = "meeting"
	KindDeadline Kind = "deadline"
	KindGeneric  Kind = "generic"
)

// Order places meetings before deadlines before everything else.
func (k Kind) Order() int {
	switch k {
	case KindMeeting:
		return 0
	case KindDeadline:
		return 1
	default:
		return 2
	}
}

// Action is the optional call to action attached to a candidate.
type Action struct {
	Label   string            `json:"label"`
	Type    string            `json:"actionType"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Candidate is one unit of user-facing content. ID is deterministic for the
// triggering entity and is the dedup/cooldown key.
type Candidate struct {
	ID         string     `json:"id"`
	RuleID     string     `json:"ruleId"`
	Category   string     `json:"category"`
	Tier       int        `json:"priorityTier"`
	Icon       string     `json:"icon"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Action     *Action    `json:"action,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`
	Disclosure string     `json:"disclosure,omitempty"`

	// Ranking hints.
	Kind  Kind          `json:"kind,omitempty"`
	Until time.Duration `json:"-"`

	// CalendarBacked is set when Confidence came from a real calendar
	// signal rather than a fallback heuristic.
	CalendarBacked bool `json:"calendarBacked,omitempty"`

	// MinConfidence drops the candidate after annotation when its
	// confidence ends up below this floor.
	MinConfidence Confidence `json:"-"`

	// ShownAt is set on candidates a selection pass emitted.
	ShownAt time.Time `json:"shownAt,omitzero"`
}

// Rule is a static registration. Evaluate must be a pure, total function of
// the Context and must not depend on any other rule's output.
type Rule struct {
	ID        string
	Category  string
	Tier      int
	Cooldown  time.Duration
	MaxPerDay int

	Evaluate func(ctx *signal.Context) []Candidate

	// FollowUp optionally produces a message after the user acts on one of
	// this rule's candidates.
	FollowUp func(c Candidate, actionID string) *Candidate
}

// Policy returns the cooldown policy candidates of this rule are held to.
func (r Rule) Policy() cooldown.Policy {
	return cooldown.Policy{RuleID: r.ID, Cooldown: r.Cooldown, MaxPerDay: r.MaxPerDay}
}

// Stamp fills the rule-level fields a candidate left empty.
func (r Rule) Stamp(c Candidate) Candidate {
	c.RuleID = r.ID
	if c.Category == "" {
		c.Category = r.Category
	}
	if c.Tier < 1 || c.Tier > 4 {
		c.Tier = r.Tier
	}
	if c.Kind == "" {
		c.Kind = KindGeneric
	}
	return c
}

// Registry is an ordered set of rules keyed by id.
type Registry struct {
	rules []Rule
	byID  map[string]int
}

// NewRegistry builds a registry, rejecting duplicate or malformed rules.
func NewRegistry(rules ...Rule) (*Registry, error) {
	reg := &Registry{byID: make(map[string]int)}
	for _, r := range rules {
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds r.
func (reg *Registry) Register(r Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if r.Evaluate == nil {
		return fmt.Errorf("rule %s has no evaluator", r.ID)
	}
	if r.Tier < 1 || r.Tier > 4 {
		return fmt.Errorf("rule %s: priority tier %d out of range 1-4", r.ID, r.Tier)
	}
	if _, dup := reg.byID[r.ID]; dup {
		return fmt.Errorf("rule %s registered twice", r.ID)
	}
	reg.byID[r.ID] = len(reg.rules)
	reg.rules = append(reg.rules, r)
	return nil
}

// Get returns the rule with the given id.
func (reg *Registry) Get(id string) (Rule, bool) {
	i, ok := reg.byID[id]
	if !ok {
		return Rule{}, false
	}
	return reg.rules[i], true
}

// All returns the rules in registration order.
func (reg *Registry) All() []Rule {
	return append([]Rule(nil), reg.rules...)
}

// IDs returns the registered rule ids, sorted.
func (reg *Registry) IDs() []string {
	ids := make([]string, 0, len(reg.rules))
	for _, r := range reg.rules {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}

// Subset returns a registry holding only the named rules. An empty list
// selects every rule.
func (reg *Registry) Subset(ids []string) (*Registry, error) {
	if len(ids) == 0 {
		return NewRegistry(reg.rules...)
	}
	out := &Registry{byID: make(map[string]int)}
	for _, id := range ids {
		r, ok := reg.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown rule %q", id)
		}
		if err := out.Register(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Override adjusts a rule's cooldown and daily cap. Zero values keep the
// current setting.
func (reg *Registry) Override(id string, cooldownMinutes, maxPerDay int) error {
	i, ok := reg.byID[id]
	if !ok {
		return fmt.Errorf("unknown rule %q", id)
	}
	if cooldownMinutes > 0 {
		reg.rules[i].Cooldown = time.Duration(cooldownMinutes) * time.Minute
	}
	if maxPerDay > 0 {
		reg.rules[i].MaxPerDay = maxPerDay
	}
	return nil
}
