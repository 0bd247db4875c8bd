// Package cooldown tracks which candidates were shown, when and how often,
// so the engine never repeats itself inside a cooldown window or past a
// rule's daily cap.
//
// Records live in an opaque KV under namespaced keys and are scoped to a
// calendar day: a record whose dayKey is not today is treated as absent and
// is never eagerly purged. Two processes committing the same key resolve by
// last-write-wins.
//
// Persistence faults fail open. An unreadable record counts as absent; a
// failed write is kept in memory, overlaid on later reads, and retried by
// Flush on the next evaluation pass.
package cooldown

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lazypower/nudge/internal/signal"
	"github.com/lazypower/nudge/internal/store"
)

const (
	recordPrefix = "engine.cooldown."
	tallyPrefix  = "engine.tally."
)

// Policy is the cooldown/cap configuration of the rule that produced a
// candidate. MaxPerDay <= 0 disables the daily cap.
type Policy struct {
	RuleID    string
	Cooldown  time.Duration
	MaxPerDay int
}

// Record is the persisted bookkeeping for one candidate id.
type Record struct {
	ID              string    `json:"id"`
	RuleID          string    `json:"ruleId,omitempty"`
	DayKey          string    `json:"dayKey"`
	LastShownAt     time.Time `json:"lastShownAt"`
	ShownCountToday int       `json:"shownCountToday"`
}

// tally counts a rule's emissions across all of its candidate ids.
type tally struct {
	RuleID          string `json:"ruleId"`
	DayKey          string `json:"dayKey"`
	ShownCountToday int    `json:"shownCountToday"`
}

// Store is the Cooldown/Dedup Store. Evaluation is serialized by the host, so
// the mutex only protects the session set and the pending-write buffer from
// concurrent Dismiss calls.
type Store struct {
	kv store.KV

	mu      sync.Mutex
	session map[string]struct{}
	pending map[string]string
}

// New returns a Store persisting to kv.
func New(kv store.KV) *Store {
	return &Store{
		kv:      kv,
		session: make(map[string]struct{}),
		pending: make(map[string]string),
	}
}

// IsEligible reports whether id may be shown at now under p: no record for
// today, or the cooldown has elapsed and neither the id nor its rule has hit
// the daily cap.
func (s *Store) IsEligible(id string, p Policy, now time.Time) bool {
	day := signal.DayKey(now)

	if rec, ok := s.record(id); ok && rec.DayKey == day {
		if now.Sub(rec.LastShownAt) < p.Cooldown {
			return false
		}
		if p.MaxPerDay > 0 && rec.ShownCountToday >= p.MaxPerDay {
			return false
		}
	}

	if p.MaxPerDay > 0 && p.RuleID != "" {
		if t, ok := s.tally(p.RuleID); ok && t.DayKey == day && t.ShownCountToday >= p.MaxPerDay {
			return false
		}
	}
	return true
}

// Commit records that id was shown at now, rolling the counters over when the
// stored day is not today.
func (s *Store) Commit(id string, p Policy, now time.Time) {
	day := signal.DayKey(now)

	rec, ok := s.record(id)
	if !ok || rec.DayKey != day {
		rec = Record{ID: id, DayKey: day}
	}
	rec.RuleID = p.RuleID
	rec.LastShownAt = now
	rec.ShownCountToday++
	s.put(recordPrefix+id, rec)

	if p.RuleID == "" {
		return
	}
	t, ok := s.tally(p.RuleID)
	if !ok || t.DayKey != day {
		t = tally{RuleID: p.RuleID, DayKey: day}
	}
	t.ShownCountToday++
	s.put(tallyPrefix+p.RuleID, t)
}

// Lookup returns id's record if one exists for now's day.
func (s *Store) Lookup(id string, now time.Time) (Record, bool) {
	rec, ok := s.record(id)
	if !ok || rec.DayKey != signal.DayKey(now) {
		return Record{}, false
	}
	return rec, true
}

// Records returns every record for now's day, ordered by id.
func (s *Store) Records(now time.Time) []Record {
	day := signal.DayKey(now)

	raw, err := s.kv.List(recordPrefix)
	if err != nil {
		log.Warn().Err(err).Str("op", "list").Msg("cooldown store read failed")
		raw = make(map[string]string)
	}
	s.mu.Lock()
	for k, v := range s.pending {
		if strings.HasPrefix(k, recordPrefix) {
			raw[k] = v
		}
	}
	s.mu.Unlock()

	var out []Record
	for key, v := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cooldown record undecodable")
			continue
		}
		if rec.DayKey == day {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsDismissedThisSession reports whether id was dismissed in this session.
func (s *Store) IsDismissedThisSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.session[id]
	return ok
}

// Dismiss adds id to the session-dismissed set. The set is not persisted.
func (s *Store) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session[id] = struct{}{}
}

// DismissedIDs returns the session-dismissed ids in sorted order.
func (s *Store) DismissedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.session))
	for id := range s.session {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResetSession clears the session-dismissed set, as a full reload would.
func (s *Store) ResetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = make(map[string]struct{})
}

// Flush retries writes that previously failed and returns how many are still
// pending.
func (s *Store) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range s.pending {
		if err := s.kv.Set(key, v); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("cooldown write retry failed")
			continue
		}
		delete(s.pending, key)
	}
	return len(s.pending)
}

// Pending returns the number of writes waiting for a retry.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) record(id string) (Record, bool) {
	var rec Record
	if !s.load(recordPrefix+id, &rec) {
		return Record{}, false
	}
	return rec, true
}

func (s *Store) tally(ruleID string) (tally, bool) {
	var t tally
	if !s.load(tallyPrefix+ruleID, &t) {
		return tally{}, false
	}
	return t, true
}

// load reads key into v, preferring a pending write. Any failure reads as
// absent.
func (s *Store) load(key string, v any) bool {
	s.mu.Lock()
	raw, ok := s.pending[key]
	s.mu.Unlock()

	if !ok {
		var err error
		raw, ok, err = s.kv.Get(key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Str("op", "get").Msg("cooldown store read failed")
			return false
		}
		if !ok {
			return false
		}
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cooldown record undecodable")
		return false
	}
	return true
}

func (s *Store) put(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cooldown record unencodable")
		return
	}

	if err := s.kv.Set(key, string(data)); err != nil {
		log.Warn().Err(err).Str("key", key).Str("op", "set").Msg("cooldown store write failed, will retry")
		s.mu.Lock()
		s.pending[key] = string(data)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

var _ signal.SessionSource = (*Store)(nil)
