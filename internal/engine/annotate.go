package engine

import "github.com/lazypower/nudge/internal/rules"

// Disclosure captions attached to candidates that are not HIGH confidence.
const (
	DisclosureMedium = "Based on limited calendar data."
	DisclosureLow    = "Estimated from the time of day. Connect a calendar for better suggestions."
)

// Annotate lowers the confidence of candidates that made a claim without a
// calendar-backed signal, fills in the disclosure caption, and drops
// candidates that end up below their own confidence floor. The input slice is
// not modified.
func Annotate(cs []rules.Candidate) []rules.Candidate {
	out := make([]rules.Candidate, 0, len(cs))
	for _, c := range cs {
		if c.Confidence != "" && !c.CalendarBacked {
			c.Confidence = c.Confidence.Downgrade()
		}
		switch c.Confidence {
		case rules.ConfidenceMedium:
			c.Disclosure = DisclosureMedium
		case rules.ConfidenceLow:
			c.Disclosure = DisclosureLow
		}
		if c.MinConfidence != "" && c.Confidence.Level() < c.MinConfidence.Level() {
			continue
		}
		out = append(out, c)
	}
	return out
}
