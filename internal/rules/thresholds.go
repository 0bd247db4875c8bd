package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a time-of-day range [Start, End) measured from local midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// Contains reports whether t's time of day falls inside the window.
func (w Window) Contains(t time.Time) bool {
	tod := timeOfDay(t)
	return tod >= w.Start && tod < w.End
}

// Length is the window's duration.
func (w Window) Length() time.Duration {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

// On anchors the window to t's day.
func (w Window) On(t time.Time) (start, end time.Time) {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return midnight.Add(w.Start), midnight.Add(w.End)
}

// String formats the window as HH:MM-HH:MM.
func (w Window) String() string {
	return clock(w.Start) + "-" + clock(w.End)
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Window{}, fmt.Errorf("window %q: want HH:MM-HH:MM", s)
	}
	start, err := ParseClock(from)
	if err != nil {
		return Window{}, fmt.Errorf("window %q: %w", s, err)
	}
	end, err := ParseClock(to)
	if err != nil {
		return Window{}, fmt.Errorf("window %q: %w", s, err)
	}
	if end <= start {
		return Window{}, fmt.Errorf("window %q: end must be after start", s)
	}
	return Window{Start: start, End: end}, nil
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q: bad minute", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

func hm(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

// Thresholds are the tunable heuristic constants the rules run on.
type Thresholds struct {
	// Meeting proximity.
	MeetingSoon     time.Duration
	MeetingImminent time.Duration

	// Rule windows.
	EveningWindow Window
	PeakWindows   []Window
	DaytimeWindow Window
	MorningWindow Window
	WorkdayWindow Window

	// Energy scale cutoffs (1-5).
	FocusEnergyMin int
	LowEnergyMax   int

	// Day-type classification.
	HeavyBusy          time.Duration
	HeavyEventCount    int
	FragmentedCount    int
	FragmentedMaxGap   time.Duration
	OpenFocusMinGap    time.Duration
	BackToBackMaxGap   time.Duration
	FallbackFocusUntil time.Duration
	FallbackBusyUntil  time.Duration

	// Moment interpretation.
	QuickReopen time.Duration
	LongGap     time.Duration
}

// DefaultThresholds returns the stock heuristics.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MeetingSoon:     30 * time.Minute,
		MeetingImminent: 10 * time.Minute,

		EveningWindow: Window{hm(18, 0), hm(22, 0)},
		PeakWindows:   []Window{{hm(9, 0), hm(11, 0)}, {hm(14, 0), hm(16, 0)}},
		DaytimeWindow: Window{hm(9, 0), hm(18, 0)},
		MorningWindow: Window{hm(6, 0), hm(9, 30)},
		WorkdayWindow: Window{hm(9, 0), hm(18, 0)},

		FocusEnergyMin: 4,
		LowEnergyMax:   2,

		HeavyBusy:          5 * time.Hour,
		HeavyEventCount:    6,
		FragmentedCount:    3,
		FragmentedMaxGap:   90 * time.Minute,
		OpenFocusMinGap:    2 * time.Hour,
		BackToBackMaxGap:   10 * time.Minute,
		FallbackFocusUntil: hm(12, 0),
		FallbackBusyUntil:  hm(18, 0),

		QuickReopen: 5 * time.Minute,
		LongGap:     3 * time.Hour,
	}
}
