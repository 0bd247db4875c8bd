package signal

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lazypower/nudge/internal/store"
)

const (
	visitLastKey  = "engine.visit.last"
	visitPrevKey  = "engine.visit.prev"
	visitCountKey = "engine.visit.count."
)

// VisitLog records app opens in a KV and answers the visit-history provider
// contract from them.
type VisitLog struct {
	kv    store.KV
	clock func() time.Time
}

// NewVisitLog returns a VisitLog over kv. clock defaults to time.Now.
func NewVisitLog(kv store.KV, clock func() time.Time) *VisitLog {
	if clock == nil {
		clock = time.Now
	}
	return &VisitLog{kv: kv, clock: clock}
}

// Record notes that the user opened the app now.
func (v *VisitLog) Record() error {
	now := v.clock()

	if last, ok, err := v.kv.Get(visitLastKey); err != nil {
		return fmt.Errorf("read last visit: %w", err)
	} else if ok {
		if err := v.kv.Set(visitPrevKey, last); err != nil {
			return fmt.Errorf("write previous visit: %w", err)
		}
	}
	if err := v.kv.Set(visitLastKey, now.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write last visit: %w", err)
	}

	key := visitCountKey + DayKey(now)
	count, err := v.count(key)
	if err != nil {
		return err
	}
	if err := v.kv.Set(key, strconv.Itoa(count+1)); err != nil {
		return fmt.Errorf("write visit count: %w", err)
	}
	return nil
}

// Today reports the visit summary for the clock's current day, treating the
// most recent Record as the current visit.
func (v *VisitLog) Today() (Visit, error) {
	now := v.clock()

	count, err := v.count(visitCountKey + DayKey(now))
	if err != nil {
		return Visit{}, err
	}

	out := Visit{
		IsFirstToday: count <= 1,
		VisitsToday:  count,
	}

	last, okLast, err := v.stamp(visitLastKey)
	if err != nil {
		return Visit{}, fmt.Errorf("read last visit: %w", err)
	}
	prev, okPrev, err := v.stamp(visitPrevKey)
	if err != nil {
		return Visit{}, fmt.Errorf("read previous visit: %w", err)
	}
	// The gap is between the current visit and the one before it, so it
	// holds steady between opens.
	if okLast && okPrev && last.After(prev) {
		out.SecondsSinceLastVisit = int(last.Sub(prev).Seconds())
	}
	return out, nil
}

// stamp reads a visit timestamp. An unparsable value counts as missing.
func (v *VisitLog) stamp(key string) (time.Time, bool, error) {
	raw, ok, err := v.kv.Get(key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (v *VisitLog) count(key string) (int, error) {
	raw, ok, err := v.kv.Get(key)
	if err != nil {
		return 0, fmt.Errorf("read visit count: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

var _ VisitProvider = (*VisitLog)(nil)
