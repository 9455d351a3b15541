package aircraft

import (
	"github.com/yegors/atcsim/internal/geo"
)

// Snapshot is a read-only copy of an aircraft's state.
type Snapshot struct {
	ID             string       `json:"id" msgpack:"id"`
	Phase          Phase        `json:"phase" msgpack:"phase"`
	Position       geo.Position `json:"position" msgpack:"position"`
	Speed          float64      `json:"speed" msgpack:"speed"`
	Heading        float64      `json:"heading" msgpack:"heading"`
	Destination    Destination  `json:"destination" msgpack:"destination"`
	Owner          string       `json:"owner" msgpack:"owner"`
	Holding        *Holding     `json:"holding,omitempty" msgpack:"holding,omitempty"`
	Ready          bool         `json:"ready" msgpack:"ready"`
	Departures     int          `json:"departures" msgpack:"departures"`
	TargetAltitude float64      `json:"target_altitude" msgpack:"target_altitude"`
}

func (a *Aircraft) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		ID:             a.id,
		Phase:          a.phase,
		Position:       a.position,
		Speed:          a.speed,
		Heading:        a.heading,
		Destination:    a.destination,
		Owner:          a.owner,
		Ready:          a.ready,
		Departures:     a.departures,
		TargetAltitude: a.targetAltitude,
	}
	if a.holding != nil {
		h := *a.holding
		s.Holding = &h
	}
	return s
}

// Restore rebuilds an aircraft from a snapshot. cfg supplies the
// parameters, random source, candidates and listener; its position,
// phase, speed and destination are taken from s.
func Restore(s Snapshot, cfg Config) (*Aircraft, error) {
	cfg.ID = s.ID
	cfg.Position = s.Position
	cfg.Phase = s.Phase
	cfg.Speed = s.Speed
	cfg.Destination = s.Destination

	a, err := New(cfg)
	if err != nil {
		return nil, err
	}
	a.heading = s.Heading
	a.owner = s.Owner
	a.departures = s.Departures
	a.ready = s.Ready && s.Phase == Parked
	if s.TargetAltitude > 0 {
		a.targetAltitude = s.TargetAltitude
	}
	if s.Holding != nil {
		h := *s.Holding
		a.holding = &h
	}
	return a, nil
}
