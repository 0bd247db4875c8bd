package rules

import (
	"time"

	"github.com/lazypower/nudge/internal/signal"
)

// MomentKind is why the user opened the app right now.
type MomentKind string

const (
	MomentFirstVisit  MomentKind = "first-visit"
	MomentQuickReopen MomentKind = "quick-reopen"
	MomentLongGap     MomentKind = "long-gap"
	MomentCheckIn     MomentKind = "check-in"
)

// ClassifyMoment interprets today's visit summary.
func ClassifyMoment(v signal.Visit, th Thresholds) MomentKind {
	since := time.Duration(v.SecondsSinceLastVisit) * time.Second
	switch {
	case v.IsFirstToday:
		return MomentFirstVisit
	case since > 0 && since < th.QuickReopen:
		return MomentQuickReopen
	case since >= th.LongGap:
		return MomentLongGap
	default:
		return MomentCheckIn
	}
}
