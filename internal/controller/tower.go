package controller

import (
	"fmt"
	"sort"
	"time"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/message"
	"github.com/yegors/atcsim/pkg/logger"
)

// RunwayUse is what the runway is reserved for.
type RunwayUse int

const (
	RunwayLanding RunwayUse = iota
	RunwayTakeoff
)

func (u RunwayUse) String() string {
	if u == RunwayTakeoff {
		return "takeoff"
	}
	return "landing"
}

// Runway is free when Occupant is empty. ReleaseAt is fixed when the
// runway becomes occupied.
type Runway struct {
	Occupant  string    `json:"occupant,omitempty"`
	Use       RunwayUse `json:"use"`
	ReleaseAt time.Time `json:"release_at"`
}

func (r Runway) Free() bool { return r.Occupant == "" }

// Stand is a parking stand. Distance to the runway is the departure
// priority: the furthest ready aircraft leaves first.
type Stand struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
	Occupant string  `json:"occupant,omitempty"`
}

type TowerConfig struct {
	Name            string
	Airport         string
	Position        geo.Position
	Stands          int
	StandSpacing    float64
	LandingDuration time.Duration
	TakeoffDuration time.Duration
	TickInterval    time.Duration
}

// Tower arbitrates one runway and a pool of parking stands.
type Tower struct {
	*Actor
	cfg      TowerConfig
	runway   Runway
	stands   []Stand
	approach *Approach
}

func NewTower(cfg TowerConfig, env Env, logger *logger.Logger) *Tower {
	if cfg.Stands <= 0 {
		cfg.Stands = 10
	}
	if cfg.StandSpacing <= 0 {
		cfg.StandSpacing = 100
	}
	if cfg.LandingDuration <= 0 {
		cfg.LandingDuration = 30 * time.Second
	}
	if cfg.TakeoffDuration <= 0 {
		cfg.TakeoffDuration = 20 * time.Second
	}

	t := &Tower{cfg: cfg, stands: make([]Stand, cfg.Stands)}
	for i := range t.stands {
		t.stands[i] = Stand{
			ID:       fmt.Sprintf("P%d", i+1),
			Distance: cfg.StandSpacing * float64(i+1),
		}
	}
	t.Actor = newActor(cfg.Name, cfg.TickInterval, env, t, logger.Named(cfg.Name))
	return t
}

func (t *Tower) Airport() string { return t.cfg.Airport }

// SetApproach sets the approach controller departures are handed to.
func (t *Tower) SetApproach(app *Approach) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.approach = app
}

// RequestLanding reserves the runway for aircraftID if it is free and a
// stand is available for the arrival. A busy runway returns false.
func (t *Tower) RequestLanding(aircraftID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	granted := t.canLand()
	t.env.Metrics.RecordLandingRequest(t.name, granted)
	if !granted {
		return false
	}

	now := t.now()
	t.runway = Runway{Occupant: aircraftID, Use: RunwayLanding, ReleaseAt: now.Add(t.cfg.LandingDuration)}
	t.env.Metrics.SetRunwayOccupied(t.name, true)
	t.send(t.approachName(), message.TypeClearance, aircraftID, "cleared to land")
	t.logger.Info("Runway reserved for landing",
		logger.String("aircraft", aircraftID),
		logger.Time("release_at", t.runway.ReleaseAt))
	return true
}

// RunwayFree reports whether RequestLanding would currently succeed: the
// runway is unoccupied and a stand is left for the arrival.
func (t *Tower) RunwayFree() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canLand()
}

// canLand is the landing grant condition. Caller holds mu.
func (t *Tower) canLand() bool {
	return t.runway.Free() && t.freeStand() >= 0
}

// Runway returns a copy of the runway state.
func (t *Tower) Runway() Runway {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runway
}

// Stands returns a copy of the stand pool.
func (t *Tower) Stands() []Stand {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Stand(nil), t.stands...)
}

// DepartureQueue returns the aircraft waiting for departure, highest
// priority first.
func (t *Tower) DepartureQueue() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.departureCandidates()
}

func (t *Tower) Tick(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completeRunwayUse(now)
	if err := t.groundTransit(); err != nil {
		return err
	}
	t.admitDeparture(now)
	t.releaseAirborne()
	return nil
}

func (t *Tower) admit(a *aircraft.Aircraft) {
	a.SetClearanceRequired(true)
	switch a.Phase() {
	case aircraft.Parked:
		if t.standOf(a.ID()) < 0 {
			if i := t.freeStand(); i >= 0 {
				t.stands[i].Occupant = a.ID()
			}
		}
	case aircraft.Landing:
		if t.runway.Occupant != a.ID() {
			t.adoptLanding(a)
		}
	}
}

// adoptLanding takes over an arrival that is already landing without a
// runway reservation, as happens after a restore. Caller holds mu.
func (t *Tower) adoptLanding(a *aircraft.Aircraft) {
	log := t.logger.WithAircraft(a.ID())
	if t.runway.Free() {
		t.runway = Runway{Occupant: a.ID(), Use: RunwayLanding, ReleaseAt: t.now().Add(t.cfg.LandingDuration)}
		t.env.Metrics.SetRunwayOccupied(t.name, true)
		log.Info("Runway reserved for landing arrival", logger.Time("release_at", t.runway.ReleaseAt))
		return
	}

	if i := t.freeStand(); i >= 0 {
		t.stands[i].Occupant = a.ID()
	}
	if err := a.SetPhase(aircraft.TaxiIn); err != nil {
		log.Warn("Arrival could not taxi in", logger.Error(err))
		return
	}
	log.Info("Runway busy, arrival sent to taxi in")
}

func (t *Tower) completeRunwayUse(now time.Time) {
	if t.runway.Free() || now.Before(t.runway.ReleaseAt) {
		return
	}
	occupant, use := t.runway.Occupant, t.runway.Use
	t.runway = Runway{}
	t.env.Metrics.SetRunwayOccupied(t.name, false)

	if use == RunwayTakeoff {
		t.logger.Debug("Runway released after takeoff", logger.String("aircraft", occupant))
		return
	}

	standID := "apron"
	if i := t.freeStand(); i >= 0 {
		t.stands[i].Occupant = occupant
		standID = t.stands[i].ID
	} else {
		t.logger.Warn("No free stand for arrival", logger.String("aircraft", occupant))
	}

	if a, ok := t.env.Fleet.Get(occupant); ok {
		if err := a.SetPhase(aircraft.TaxiIn); err != nil {
			t.logger.Warn("Arrival could not taxi in",
				logger.String("aircraft", occupant),
				logger.Error(err))
		}
	}
	t.send(Broadcast, message.TypeParking, occupant, "assigned stand "+standID)
	t.logger.Info("Landing complete",
		logger.String("aircraft", occupant),
		logger.String("stand", standID))
}

func (t *Tower) groundTransit() error {
	for _, a := range t.aircraftLocked() {
		if a.Phase() != aircraft.TaxiIn {
			continue
		}
		if err := a.Arrive(); err != nil {
			return fmt.Errorf("ground transit of %s: %w", a.ID(), err)
		}
	}
	return nil
}

func (t *Tower) admitDeparture(now time.Time) {
	if !t.runway.Free() {
		return
	}
	queue := t.departureCandidates()
	if len(queue) == 0 {
		return
	}
	id := queue[0]
	a, ok := t.env.Fleet.Get(id)
	if !ok {
		return
	}
	if err := a.ClearForDeparture(); err != nil {
		t.logger.Warn("Departure clearance failed", logger.String("aircraft", id), logger.Error(err))
		return
	}

	stand := "apron"
	if i := t.standOf(id); i >= 0 {
		stand = t.stands[i].ID
		t.stands[i].Occupant = ""
	}
	t.runway = Runway{Occupant: id, Use: RunwayTakeoff, ReleaseAt: now.Add(t.cfg.TakeoffDuration)}
	t.env.Metrics.SetRunwayOccupied(t.name, true)
	t.send(Broadcast, message.TypeDeparture, id,
		fmt.Sprintf("cleared for departure from %s to %s", stand, a.Destination().Name))
	t.logger.Info("Departure cleared",
		logger.String("aircraft", id),
		logger.String("stand", stand))
}

// releaseAirborne hands departed aircraft to approach control once they
// are climbing out.
func (t *Tower) releaseAirborne() {
	if t.approach == nil {
		return
	}
	for _, a := range t.aircraftLocked() {
		switch a.Phase() {
		case aircraft.Climb, aircraft.Cruise:
			t.handOff(t.approach.Actor, a.ID(), "airborne, contact approach")
		}
	}
}

// departureCandidates lists ready parked aircraft by descending stand
// distance; aircraft off-stand come last. Caller holds mu.
func (t *Tower) departureCandidates() []string {
	type candidate struct {
		id       string
		priority float64
	}
	var ready []candidate
	for _, a := range t.aircraftLocked() {
		if !a.Ready() {
			continue
		}
		priority := -1.0
		if i := t.standOf(a.ID()); i >= 0 {
			priority = t.stands[i].Distance
		}
		ready = append(ready, candidate{a.ID(), priority})
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].priority > ready[j].priority })
	ids := make([]string, len(ready))
	for i, c := range ready {
		ids[i] = c.id
	}
	return ids
}

func (t *Tower) approachName() string {
	if t.approach == nil {
		return Broadcast
	}
	return t.approach.name
}

func (t *Tower) freeStand() int {
	for i, s := range t.stands {
		if s.Occupant == "" {
			return i
		}
	}
	return -1
}

func (t *Tower) standOf(id string) int {
	for i, s := range t.stands {
		if s.Occupant == id {
			return i
		}
	}
	return -1
}
