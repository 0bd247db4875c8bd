package engine

import (
	"sort"

	"github.com/lazypower/nudge/internal/rules"
)

// Rank orders candidates by priority tier, then meetings before deadlines
// before everything else, then the sooner triggering entity, then id. A
// repeated id keeps only its highest-ranked occurrence.
//
// The id tie-break makes the order a total one, so the result never depends
// on which rule happened to run first.
func Rank(cs []rules.Candidate) []rules.Candidate {
	sorted := append([]rules.Candidate(nil), cs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	seen := make(map[string]struct{}, len(sorted))
	out := sorted[:0]
	for _, c := range sorted {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func less(a, b rules.Candidate) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if ka, kb := a.Kind.Order(), b.Kind.Order(); ka != kb {
		return ka < kb
	}
	// Time to event only means something for timed kinds.
	if a.Kind != rules.KindGeneric && a.Kind != "" && a.Until != b.Until {
		return a.Until < b.Until
	}
	return a.ID < b.ID
}
