package engine

import (
	"testing"

	"github.com/lazypower/nudge/internal/rules"
)

func TestAnnotate(t *testing.T) {
	tests := []struct {
		name           string
		in             rules.Candidate
		wantConfidence rules.Confidence
		wantDisclosure string
		wantDropped    bool
	}{
		{
			name:           "calendar-backed high stays",
			in:             rules.Candidate{ID: "a", Confidence: rules.ConfidenceHigh, CalendarBacked: true},
			wantConfidence: rules.ConfidenceHigh,
		},
		{
			name:           "calendar-backed medium discloses",
			in:             rules.Candidate{ID: "b", Confidence: rules.ConfidenceMedium, CalendarBacked: true},
			wantConfidence: rules.ConfidenceMedium,
			wantDisclosure: DisclosureMedium,
		},
		{
			name:           "fallback medium drops to low",
			in:             rules.Candidate{ID: "c", Confidence: rules.ConfidenceMedium},
			wantConfidence: rules.ConfidenceLow,
			wantDisclosure: DisclosureLow,
		},
		{
			name:           "fallback high drops to medium",
			in:             rules.Candidate{ID: "d", Confidence: rules.ConfidenceHigh},
			wantConfidence: rules.ConfidenceMedium,
			wantDisclosure: DisclosureMedium,
		},
		{
			name: "no claim untouched",
			in:   rules.Candidate{ID: "e"},
		},
		{
			name:        "below floor dropped",
			in:          rules.Candidate{ID: "f", Confidence: rules.ConfidenceMedium, MinConfidence: rules.ConfidenceMedium},
			wantDropped: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Annotate([]rules.Candidate{tt.in})
			if tt.wantDropped {
				if len(got) != 0 {
					t.Fatalf("got %+v, want dropped", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("got %d candidates", len(got))
			}
			if got[0].Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %q, want %q", got[0].Confidence, tt.wantConfidence)
			}
			if got[0].Disclosure != tt.wantDisclosure {
				t.Errorf("Disclosure = %q, want %q", got[0].Disclosure, tt.wantDisclosure)
			}
		})
	}
}
