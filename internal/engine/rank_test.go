package engine

import (
	"testing"
	"time"

	"github.com/lazypower/nudge/internal/rules"
)

func TestRankOrder(t *testing.T) {
	in := []rules.Candidate{
		{ID: "insight", Tier: 4, Kind: rules.KindGeneric},
		{ID: "deadline-b", Tier: 1, Kind: rules.KindDeadline, Until: time.Hour},
		{ID: "meeting-25", Tier: 2, Kind: rules.KindMeeting, Until: 25 * time.Minute},
		{ID: "deadline-a", Tier: 1, Kind: rules.KindDeadline, Until: time.Hour},
		{ID: "meeting-8", Tier: 1, Kind: rules.KindMeeting, Until: 8 * time.Minute},
		{ID: "deadline-soon", Tier: 1, Kind: rules.KindDeadline, Until: 30 * time.Minute},
		{ID: "generic-1", Tier: 1, Kind: rules.KindGeneric},
	}
	want := []string{"meeting-8", "deadline-soon", "deadline-a", "deadline-b", "generic-1", "meeting-25", "insight"}

	got := Rank(in)
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, want[i])
		}
	}
	if in[0].ID != "insight" {
		t.Error("Rank modified its input")
	}
}

func TestRankIndependentOfInputOrder(t *testing.T) {
	in := []rules.Candidate{
		{ID: "c", Tier: 3},
		{ID: "a", Tier: 3},
		{ID: "m2", Tier: 2, Kind: rules.KindMeeting, Until: 20 * time.Minute},
		{ID: "m1", Tier: 2, Kind: rules.KindMeeting, Until: 20 * time.Minute},
		{ID: "b", Tier: 3},
	}
	reversed := make([]rules.Candidate, len(in))
	for i, c := range in {
		reversed[len(in)-1-i] = c
	}

	x, y := Rank(in), Rank(reversed)
	for i := range x {
		if x[i].ID != y[i].ID {
			t.Fatalf("position %d differs: %s vs %s", i, x[i].ID, y[i].ID)
		}
	}
	if x[0].ID != "m1" || x[2].ID != "a" {
		t.Errorf("order = %v", []string{x[0].ID, x[1].ID, x[2].ID, x[3].ID, x[4].ID})
	}
}

func TestRankDedupKeepsHighestPriority(t *testing.T) {
	got := Rank([]rules.Candidate{
		{ID: "same", Tier: 3, Title: "low"},
		{ID: "other", Tier: 2},
		{ID: "same", Tier: 1, Title: "high"},
	})
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].ID != "same" || got[0].Title != "high" {
		t.Errorf("kept %+v, want the tier 1 occurrence", got[0])
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(nil); len(got) != 0 {
		t.Errorf("Rank(nil) = %v", got)
	}
}
