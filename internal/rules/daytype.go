package rules

import (
	"sort"
	"time"

	"github.com/lazypower/nudge/internal/signal"
)

// DayType is a coarse classification of how busy or fragmented a day is.
type DayType string

const (
	DayFragmented  DayType = "fragmented"
	DayHeavyEnergy DayType = "heavy-energy"
	DayOpenFocus   DayType = "open-focus"
	DayRecovery    DayType = "recovery"
)

// DayMetrics are computed from today's timed calendar events.
type DayMetrics struct {
	EventCount int
	Busy       time.Duration
	LargestGap time.Duration
	BackToBack bool
}

// DayAssessment is the classification plus how it was reached.
type DayAssessment struct {
	Type           DayType
	Metrics        DayMetrics
	Confidence     Confidence
	CalendarBacked bool
}

type span struct{ start, end time.Time }

// ComputeMetrics derives day metrics from the Context's timed events that
// start today. Busy time merges overlaps; the largest gap is measured inside
// the workday window.
func ComputeMetrics(ctx *signal.Context, th Thresholds) DayMetrics {
	dayStart := signal.StartOfDay(ctx.Now)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var spans []span
	for _, e := range ctx.EventsToday() {
		if e.AllDay {
			continue
		}
		start, end := e.Start.In(ctx.Now.Location()), e.End.In(ctx.Now.Location())
		if end.Before(start) {
			end = start
		}
		spans = append(spans, span{start, end})
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start.Equal(spans[j].start) {
			return spans[i].end.Before(spans[j].end)
		}
		return spans[i].start.Before(spans[j].start)
	})

	m := DayMetrics{EventCount: len(spans)}

	for i := 1; i < len(spans); i++ {
		if spans[i].start.Sub(spans[i-1].end) <= th.BackToBackMaxGap {
			m.BackToBack = true
			break
		}
	}

	merged := mergeSpans(spans)
	for _, s := range merged {
		m.Busy += clip(s, dayStart, dayEnd)
	}

	winStart, winEnd := th.WorkdayWindow.On(ctx.Now)
	cursor := winStart
	for _, s := range merged {
		if !s.end.After(winStart) || !s.start.Before(winEnd) {
			continue
		}
		if s.start.After(cursor) {
			if gap := s.start.Sub(cursor); gap > m.LargestGap {
				m.LargestGap = gap
			}
		}
		if s.end.After(cursor) {
			cursor = s.end
		}
	}
	if winEnd.After(cursor) {
		if gap := winEnd.Sub(cursor); gap > m.LargestGap {
			m.LargestGap = gap
		}
	}
	return m
}

func mergeSpans(spans []span) []span {
	var out []span
	for _, s := range spans {
		if n := len(out); n > 0 && !s.start.After(out[n-1].end) {
			if s.end.After(out[n-1].end) {
				out[n-1].end = s.end
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

func clip(s span, from, to time.Time) time.Duration {
	start, end := s.start, s.end
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// ClassifyDay maps metrics through the thresholds. With a calendar
// connected the result is HIGH confidence when there is anything on the
// calendar and MEDIUM for an empty one. Without a calendar it falls back to
// a time-of-day heuristic and proposes MEDIUM, which annotation lowers.
func ClassifyDay(ctx *signal.Context, th Thresholds) DayAssessment {
	if !ctx.Integration.HasCalendar() {
		return DayAssessment{
			Type:       fallbackDayType(ctx.Now, th),
			Confidence: ConfidenceMedium,
		}
	}

	m := ComputeMetrics(ctx, th)
	a := DayAssessment{Metrics: m, CalendarBacked: true, Confidence: ConfidenceHigh}
	if m.EventCount == 0 {
		a.Confidence = ConfidenceMedium
	}

	switch {
	case m.Busy >= th.HeavyBusy || m.EventCount >= th.HeavyEventCount:
		a.Type = DayHeavyEnergy
	case m.EventCount >= th.FragmentedCount && (m.LargestGap < th.FragmentedMaxGap || m.BackToBack):
		a.Type = DayFragmented
	case ctx.EnergyLevel > 0 && ctx.EnergyLevel <= th.LowEnergyMax:
		a.Type = DayRecovery
	case m.LargestGap >= th.OpenFocusMinGap:
		a.Type = DayOpenFocus
	default:
		a.Type = DayRecovery
	}
	return a
}

func fallbackDayType(now time.Time, th Thresholds) DayType {
	tod := timeOfDay(now)
	switch {
	case tod < th.FallbackFocusUntil:
		return DayOpenFocus
	case tod < th.FallbackBusyUntil:
		return DayFragmented
	default:
		return DayRecovery
	}
}
