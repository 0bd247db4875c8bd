package rules

import (
	"fmt"
	"time"

	"github.com/lazypower/nudge/internal/signal"
)

var dayTypeCopy = map[DayType]struct{ title, message string }{
	DayFragmented:  {"Fragmented day", "Your day is chopped into short blocks. Batch small tasks between meetings."},
	DayHeavyEnergy: {"Heavy day", "A lot is scheduled today. Protect your energy between commitments."},
	DayOpenFocus:   {"Open day", "You have room for deep work today. Pick one meaningful task."},
	DayRecovery:    {"Recovery day", "Take it easy today. Small wins count."},
}

var avoidOneCopy = map[DayType]string{
	DayFragmented:  "Avoid starting deep work in the gaps between meetings.",
	DayHeavyEnergy: "Avoid adding more commitments today.",
	DayOpenFocus:   "Avoid filling your open block with messages.",
	DayRecovery:    "Avoid overcommitting. One priority is enough today.",
}

var momentCopy = map[MomentKind]struct{ title, message string }{
	MomentFirstVisit:  {"Welcome back", "First look today."},
	MomentQuickReopen: {"Still here", "Back already. Pick up where you left off."},
	MomentLongGap:     {"Catching up", "It has been a while since your last look."},
	MomentCheckIn:     {"Check-in", "Here is where things stand."},
}

var dayTypePhrase = map[DayType]string{
	DayFragmented:  "a fragmented day",
	DayHeavyEnergy: "a heavy day",
	DayOpenFocus:   "an open day",
	DayRecovery:    "a recovery day",
}

// DayTypeInsight always produces exactly one candidate describing today's
// day type.
func DayTypeInsight(th Thresholds) Rule {
	return Rule{
		ID:        RuleDayType,
		Category:  "insight",
		Tier:      4,
		Cooldown:  4 * time.Hour,
		MaxPerDay: 3,
		Evaluate: func(ctx *signal.Context) []Candidate {
			a := ClassifyDay(ctx, th)
			text := dayTypeCopy[a.Type]
			return []Candidate{{
				ID:             "day-type-" + ctx.DayKey() + "-" + string(a.Type),
				Icon:           "compass",
				Title:          text.title,
				Message:        text.message,
				Confidence:     a.Confidence,
				CalendarBacked: a.CalendarBacked,
			}}
		},
	}
}

// Moment interprets why the user opened the app and frames it with today's
// day type. Always produces one candidate.
func Moment(th Thresholds) Rule {
	return Rule{
		ID:        RuleMoment,
		Category:  "moment",
		Tier:      3,
		Cooldown:  30 * time.Minute,
		MaxPerDay: 6,
		Evaluate: func(ctx *signal.Context) []Candidate {
			kind := ClassifyMoment(ctx.Visit, th)
			a := ClassifyDay(ctx, th)
			text := momentCopy[kind]

			var id string
			switch kind {
			case MomentFirstVisit, MomentQuickReopen:
				id = fmt.Sprintf("moment-%s-%s", kind, ctx.DayKey())
			default:
				id = fmt.Sprintf("moment-%s-%s-%d", kind, ctx.DayKey(), ctx.Visit.VisitsToday)
			}
			return []Candidate{{
				ID:             id,
				Icon:           "sparkle",
				Title:          text.title,
				Message:        fmt.Sprintf("%s Looks like %s.", text.message, dayTypePhrase[a.Type]),
				Confidence:     a.Confidence,
				CalendarBacked: a.CalendarBacked,
			}}
		},
	}
}

// AvoidOne suggests one thing to avoid today. It only speaks when a
// calendar is connected and the day type is at least MEDIUM confidence; a
// calendar-free guess never becomes a directive.
func AvoidOne(th Thresholds) Rule {
	return Rule{
		ID:        RuleAvoidOne,
		Category:  "insight",
		Tier:      3,
		Cooldown:  4 * time.Hour,
		MaxPerDay: 2,
		Evaluate: func(ctx *signal.Context) []Candidate {
			if !ctx.Integration.HasCalendar() {
				return nil
			}
			a := ClassifyDay(ctx, th)
			if a.Confidence.Level() < ConfidenceMedium.Level() {
				return nil
			}
			return []Candidate{{
				ID:             "avoid-one-" + ctx.DayKey() + "-" + string(a.Type),
				Icon:           "shield",
				Title:          "Avoid one thing",
				Message:        avoidOneCopy[a.Type],
				Confidence:     a.Confidence,
				CalendarBacked: a.CalendarBacked,
				MinConfidence:  ConfidenceMedium,
			}}
		},
	}
}

// Default registers every built-in rule.
func Default(th Thresholds) *Registry {
	reg, err := NewRegistry(
		Deadline(),
		MeetingSoon(th),
		RoutineEvening(th),
		FocusPeak(th),
		LowEnergy(th),
		MorningBriefing(th),
		DayTypeInsight(th),
		Moment(th),
		AvoidOne(th),
	)
	if err != nil {
		// Built-in ids are constants; a failure here is a programming error.
		panic(err)
	}
	return reg
}
