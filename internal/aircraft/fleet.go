package aircraft

import (
	"fmt"
	"sort"
	"sync"
)

// Fleet is the arena of all simulated aircraft, keyed by id. Rosters,
// runways and stands refer to aircraft by id and resolve them here.
type Fleet struct {
	mu       sync.RWMutex
	aircraft map[string]*Aircraft
}

func NewFleet() *Fleet {
	return &Fleet{aircraft: make(map[string]*Aircraft)}
}

// Add registers an aircraft. Ids are unique.
func (f *Fleet) Add(a *Aircraft) error {
	if a == nil {
		return fmt.Errorf("nil aircraft")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.aircraft[a.ID()]; exists {
		return fmt.Errorf("aircraft %s already exists", a.ID())
	}
	f.aircraft[a.ID()] = a
	return nil
}

func (f *Fleet) Get(id string) (*Aircraft, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.aircraft[id]
	return a, ok
}

func (f *Fleet) Contains(id string) bool {
	_, ok := f.Get(id)
	return ok
}

func (f *Fleet) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.aircraft, id)
}

func (f *Fleet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.aircraft)
}

// All returns the aircraft ordered by id.
func (f *Fleet) All() []*Aircraft {
	f.mu.RLock()
	all := make([]*Aircraft, 0, len(f.aircraft))
	for _, a := range f.aircraft {
		all = append(all, a)
	}
	f.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID() < all[j].ID() })
	return all
}

// Update steps every aircraft by dt simulated seconds.
func (f *Fleet) Update(dt float64) {
	for _, a := range f.All() {
		a.Update(dt)
	}
}

// Snapshots returns a copy of every aircraft's state, ordered by id.
func (f *Fleet) Snapshots() []Snapshot {
	all := f.All()
	snaps := make([]Snapshot, len(all))
	for i, a := range all {
		snaps[i] = a.Snapshot()
	}
	return snaps
}
