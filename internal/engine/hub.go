package engine

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/rules"
)

const (
	recentSize   = 256
	maxFollowUps = 64
)

// Hub is the state every surface of one session shares: the lock that
// serializes evaluate-and-commit, the recently emitted candidates Act looks
// up, and the follow-up queue.
type Hub struct {
	pass sync.Mutex

	recent *lru.Cache[string, emitted]

	mu        sync.Mutex
	followUps []queued
}

type emitted struct {
	candidate rules.Candidate
	rule      rules.Rule
}

type queued struct {
	candidate rules.Candidate
	policy    cooldown.Policy
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	recent, err := lru.New[string, emitted](recentSize)
	if err != nil {
		// Only fails for a non-positive size.
		panic(err)
	}
	return &Hub{recent: recent}
}

// Recent returns an emitted candidate by id, if it is still remembered.
func (h *Hub) Recent(id string) (rules.Candidate, bool) {
	e, ok := h.recent.Get(id)
	return e.candidate, ok
}

func (h *Hub) remember(c rules.Candidate, r rules.Rule) {
	h.recent.Add(c.ID, emitted{candidate: c, rule: r})
}

func (h *Hub) lookup(id string) (emitted, bool) {
	return h.recent.Get(id)
}

// enqueue adds a follow-up, replacing a queued one with the same id. The
// oldest entry is dropped when the queue is full.
func (h *Hub) enqueue(c rules.Candidate, p cooldown.Policy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, q := range h.followUps {
		if q.candidate.ID == c.ID {
			h.followUps[i] = queued{c, p}
			return
		}
	}
	if len(h.followUps) == maxFollowUps {
		h.followUps = h.followUps[1:]
	}
	h.followUps = append(h.followUps, queued{c, p})
}

// FollowUps returns the queued follow-up candidates in queue order.
func (h *Hub) FollowUps() []rules.Candidate {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]rules.Candidate, 0, len(h.followUps))
	for _, q := range h.followUps {
		out = append(out, q.candidate)
	}
	return out
}

func (h *Hub) queuedSnapshot() []queued {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]queued(nil), h.followUps...)
}

// drop removes queued follow-ups whose id is in ids.
func (h *Hub) drop(ids map[string]struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.followUps[:0]
	for _, q := range h.followUps {
		if _, gone := ids[q.candidate.ID]; !gone {
			kept = append(kept, q)
		}
	}
	h.followUps = kept
}
