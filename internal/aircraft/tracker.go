package aircraft

import (
	"sort"
	"sync"

	"github.com/yegors/atcsim/pkg/logger"
)

const recentChanges = 256

// PhaseChange is one observed phase change.
type PhaseChange struct {
	Type     string `json:"type"` // "transition" or "rejected"
	ID       string `json:"id"`
	From     Phase  `json:"from"`
	To       Phase  `json:"to"`
	Sequence uint64 `json:"sequence"`
}

// PhaseTracker records every phase change across the fleet. Rejected
// changes are attempted transitions missing from the transition table.
type PhaseTracker struct {
	mu       sync.Mutex
	current  map[string]Phase
	counts   map[[2]Phase]int
	rejected int
	seq      uint64
	recent   []PhaseChange
	onChange func(PhaseChange)
	logger   *logger.Logger
}

// NewPhaseTracker creates a tracker. onChange, if not nil, is called for
// every recorded change with the tracker unlocked.
func NewPhaseTracker(onChange func(PhaseChange), logger *logger.Logger) *PhaseTracker {
	return &PhaseTracker{
		current:  make(map[string]Phase),
		counts:   make(map[[2]Phase]int),
		onChange: onChange,
		logger:   logger.Named("phase-tracker"),
	}
}

func (t *PhaseTracker) PhaseChanged(id string, from, to Phase) {
	t.record(PhaseChange{Type: "transition", ID: id, From: from, To: to})
}

func (t *PhaseTracker) PhaseRejected(id string, from, to Phase) {
	t.logger.Warn("Rejected phase transition",
		logger.String("aircraft", id),
		logger.String("from", from.String()),
		logger.String("to", to.String()))
	t.record(PhaseChange{Type: "rejected", ID: id, From: from, To: to})
}

func (t *PhaseTracker) record(c PhaseChange) {
	t.mu.Lock()
	t.seq++
	c.Sequence = t.seq
	if c.Type == "transition" {
		t.current[c.ID] = c.To
		t.counts[[2]Phase{c.From, c.To}]++
	} else {
		t.rejected++
	}
	t.recent = append(t.recent, c)
	if len(t.recent) > recentChanges {
		t.recent = t.recent[len(t.recent)-recentChanges:]
	}
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(c)
	}
}

// Rejected returns how many invalid transitions were attempted.
func (t *PhaseTracker) Rejected() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rejected
}

// Count returns how many times from -> to was observed.
func (t *PhaseTracker) Count(from, to Phase) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[[2]Phase{from, to}]
}

// Edges returns every observed transition, ordered by source then target.
func (t *PhaseTracker) Edges() [][2]Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	edges := make([][2]Phase, 0, len(t.counts))
	for e := range t.counts {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// Last returns the last recorded phase of an aircraft.
func (t *PhaseTracker) Last(id string) (Phase, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.current[id]
	return p, ok
}

// Recent returns up to n of the most recent changes, oldest first.
func (t *PhaseTracker) Recent(n int) []PhaseChange {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > len(t.recent) {
		n = len(t.recent)
	}
	return append([]PhaseChange(nil), t.recent[len(t.recent)-n:]...)
}
