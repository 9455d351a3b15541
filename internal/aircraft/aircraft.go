package aircraft

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/rand"
)

var ErrInvalidTransition = errors.New("invalid phase transition")

// Destination is a named airport an aircraft can fly to.
type Destination struct {
	Name     string       `json:"name" msgpack:"name"`
	Position geo.Position `json:"position" msgpack:"position"`
}

// Holding is a circular holding trajectory assigned by approach control.
type Holding struct {
	Center   geo.Position `json:"center" msgpack:"center"`
	Radius   float64      `json:"radius" msgpack:"radius"`
	Altitude float64      `json:"altitude" msgpack:"altitude"`
}

// Listener observes phase changes. It is called with the aircraft locked
// and must not call back into the aircraft.
type Listener interface {
	PhaseChanged(id string, from, to Phase)
	PhaseRejected(id string, from, to Phase)
}

// Config describes a new aircraft.
type Config struct {
	ID          string
	Params      *Params
	Rand        *rand.Rand
	Position    geo.Position
	Phase       Phase
	Speed       float64
	Destination Destination
	// Candidates are the airports the aircraft picks its next
	// destination from after a parking dwell.
	Candidates []Destination
	Listener   Listener
}

// Aircraft is a simulated aircraft. Its state is changed by its own
// physics step (Update) and by the controller that currently owns it.
type Aircraft struct {
	mu sync.Mutex

	id       string
	params   *Params
	rng      *rand.Rand
	listener Listener

	position       geo.Position
	speed          float64
	heading        float64
	phase          Phase
	phaseTime      float64
	targetAltitude float64

	destination Destination
	candidates  []Destination

	owner             string
	holding           *Holding
	clearanceRequired bool
	ready             bool
	dwell             float64
	departures        int
}

func New(cfg Config) (*Aircraft, error) {
	if cfg.ID == "" {
		return nil, errors.New("aircraft id is required")
	}
	if !cfg.Phase.Valid() {
		return nil, fmt.Errorf("aircraft %s: invalid phase %d", cfg.ID, int(cfg.Phase))
	}
	if cfg.Rand == nil {
		return nil, fmt.Errorf("aircraft %s: random source is required", cfg.ID)
	}
	if cfg.Params == nil {
		p := DefaultParams()
		cfg.Params = &p
	}

	a := &Aircraft{
		id:             cfg.ID,
		params:         cfg.Params,
		rng:            cfg.Rand,
		listener:       cfg.Listener,
		position:       cfg.Position,
		speed:          cfg.Speed,
		phase:          cfg.Phase,
		targetAltitude: cfg.Params.CruiseAltitude,
		destination:    cfg.Destination,
		candidates:     append([]Destination(nil), cfg.Candidates...),
	}
	if a.position.Distance(a.destination.Position) > 0 {
		a.heading = a.position.HeadingTo(a.destination.Position)
	}
	a.enter(a.phase)
	return a, nil
}

func (a *Aircraft) ID() string { return a.id }

func (a *Aircraft) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

func (a *Aircraft) Position() geo.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

func (a *Aircraft) Destination() Destination {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destination
}

// RemainingDistance is the horizontal distance to the destination in meters.
func (a *Aircraft) RemainingDistance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining()
}

// Ready reports whether a parked aircraft has finished its dwell and is
// waiting for departure clearance.
func (a *Aircraft) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase == Parked && a.ready
}

func (a *Aircraft) Holding() *Holding {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holding == nil {
		return nil
	}
	h := *a.holding
	return &h
}

func (a *Aircraft) Owner() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}

// SetOwner records the name of the controller holding the aircraft.
func (a *Aircraft) SetOwner(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.owner = name
}

// SetClearanceRequired puts the aircraft under positive control: it no
// longer lands, taxis in, or leaves its stand without a controller
// driving the transition.
func (a *Aircraft) SetClearanceRequired(required bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearanceRequired = required
}

// SetPhase applies a controller-driven transition. Setting the current
// phase is a no-op.
func (a *Aircraft) SetPhase(p Phase) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transition(p)
}

// AssignHolding sets or, with nil, clears the holding trajectory.
func (a *Aircraft) AssignHolding(h *Holding) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h == nil {
		a.holding = nil
		return
	}
	cp := *h
	a.holding = &cp
}

// ClimbBy raises the cruise target altitude.
func (a *Aircraft) ClimbBy(delta float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.targetAltitude += delta
}

// ClearForDeparture sends a ready parked aircraft to TAXI_OUT.
func (a *Aircraft) ClearForDeparture() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != Parked || !a.ready {
		return fmt.Errorf("aircraft %s is not ready for departure (phase %s)", a.id, a.phase)
	}
	return a.transition(TaxiOut)
}

// Arrive completes ground transit: the aircraft is placed on its
// destination and becomes PARKED.
func (a *Aircraft) Arrive() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != Parked && !ValidTransition(a.phase, Parked) {
		return a.transition(Parked)
	}
	a.touchdown()
	return a.transition(Parked)
}

// Update advances the aircraft by dt simulated seconds.
func (a *Aircraft) Update(dt float64) {
	if dt <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.phaseTime += dt
	switch a.phase {
	case Parked:
		a.updateParked(dt)
	case TaxiOut:
		a.updateTaxiOut(dt)
	case Takeoff:
		a.updateTakeoff(dt)
	case Climb:
		a.updateClimb(dt)
	case Cruise:
		a.updateCruise(dt)
	case Descent:
		a.updateDescent(dt)
	case Approach:
		a.updateApproach(dt)
	case Landing:
		a.updateLanding(dt)
	case TaxiIn:
		a.updateTaxiIn()
	}
}

func (a *Aircraft) updateParked(dt float64) {
	a.speed = 0
	if !a.ready {
		a.dwell -= dt
		if a.dwell > 0 {
			return
		}
		a.chooseDestination()
		a.ready = true
	}
	if !a.clearanceRequired {
		a.transition(TaxiOut)
	}
}

func (a *Aircraft) updateTaxiOut(dt float64) {
	a.speed = a.params.TaxiSpeed
	a.position = a.position.Advance(a.heading, a.speed*dt)
	if a.phaseTime >= a.params.TaxiOutDuration {
		a.transition(Takeoff)
	}
}

func (a *Aircraft) updateTakeoff(dt float64) {
	a.speed = geo.Approach(a.speed, a.params.CruiseSpeed, a.params.TakeoffAcceleration*dt)
	a.position.Altitude += a.params.TakeoffClimbRate * dt
	a.flyTowardDestination(dt)
	if a.position.Altitude >= a.params.ClimbThreshold {
		a.transition(Climb)
	}
}

func (a *Aircraft) updateClimb(dt float64) {
	a.speed = geo.Approach(a.speed, a.params.CruiseSpeed, a.params.ClimbAcceleration*dt)
	a.position.Altitude = geo.Approach(a.position.Altitude, a.targetAltitude, a.params.ClimbRate*dt)
	a.flyTowardDestination(dt)
	if a.position.Altitude >= a.targetAltitude {
		a.transition(Cruise)
	}
}

func (a *Aircraft) updateCruise(dt float64) {
	a.speed = geo.Approach(a.speed, a.params.CruiseSpeed, a.params.ClimbAcceleration*dt)
	a.position.Altitude = geo.Approach(a.position.Altitude, a.targetAltitude, a.params.ClimbRate*dt)
	a.flyTowardDestination(dt)

	remaining := a.remaining()
	switch {
	case remaining < a.params.FinalDistance:
		a.touchdown()
		a.transition(Parked)
	case remaining < a.params.DescentDistance:
		a.transition(Descent)
	}
}

func (a *Aircraft) updateDescent(dt float64) {
	minSpeed := a.params.CruiseSpeed * a.params.DescentMinSpeedFactor
	a.speed = geo.Approach(a.speed, minSpeed, a.params.DescentDeceleration*dt)
	a.flyTowardDestination(dt)
	a.descend(0, a.params.DescentRate, dt)

	switch {
	case a.remaining() <= a.params.ArrivalDistance:
		a.touchdown()
		a.transition(Parked)
	case a.position.Altitude < a.params.ApproachAltitude:
		a.transition(Approach)
	}
}

func (a *Aircraft) updateApproach(dt float64) {
	a.speed = geo.Approach(a.speed, a.params.ApproachMinSpeed, a.params.ApproachDeceleration*dt)

	if h := a.holding; h != nil {
		// Counterclockwise orbit: steer at a point slightly ahead on the circle.
		angle := h.Center.HeadingTo(a.position) + a.params.HoldingLead
		target := geo.OnCircle(h.Center, h.Radius, angle)
		a.heading = a.position.HeadingTo(target)
		a.position = a.position.Advance(a.heading, a.speed*dt)
		a.position.Altitude = geo.Approach(a.position.Altitude, h.Altitude, a.params.ApproachRate*dt)
		return
	}

	a.flyTowardDestination(dt)
	if a.clearanceRequired {
		a.descend(a.params.LandingAltitude, a.params.ApproachRate, dt)
		return
	}
	a.descend(0, a.params.ApproachRate, dt)

	switch {
	case a.remaining() <= a.params.ArrivalDistance:
		a.touchdown()
		a.transition(Parked)
	case a.position.Altitude < a.params.LandingAltitude:
		a.transition(Landing)
	}
}

func (a *Aircraft) updateLanding(dt float64) {
	a.speed = geo.Approach(a.speed, a.params.TaxiSpeed, a.params.LandingDeceleration*dt)
	a.flyTowardDestination(dt)
	a.descend(0, a.params.LandingRate, dt)

	if a.remaining() > a.params.ArrivalDistance {
		return
	}
	a.position.Altitude = 0
	if a.clearanceRequired {
		// Rolled out; the tower moves it off the runway.
		a.speed = 0
		return
	}
	a.transition(TaxiIn)
}

func (a *Aircraft) updateTaxiIn() {
	if a.clearanceRequired {
		return
	}
	a.touchdown()
	a.transition(Parked)
}

func (a *Aircraft) remaining() float64 {
	return a.position.Distance(a.destination.Position)
}

// flyTowardDestination turns toward the destination and advances along
// that heading, stopping on the destination instead of overshooting.
func (a *Aircraft) flyTowardDestination(dt float64) {
	target := a.destination.Position
	remaining := a.position.Distance(target)
	step := a.speed * dt
	if remaining <= step {
		a.position.X, a.position.Y = target.X, target.Y
		return
	}
	a.heading = a.position.HeadingTo(target)
	a.position = a.position.Advance(a.heading, step)
}

// descend lowers the altitude at rate, never below floor, and only while
// the aircraft is above the glide path to its destination.
func (a *Aircraft) descend(floor, rate, dt float64) {
	glide := a.remaining() * a.params.GlideSlope
	target := math.Max(floor, math.Min(a.position.Altitude, glide))
	a.position.Altitude = geo.Approach(a.position.Altitude, target, rate*dt)
}

func (a *Aircraft) touchdown() {
	a.position.X, a.position.Y = a.destination.Position.X, a.destination.Position.Y
	a.position.Altitude = 0
	a.speed = 0
}

func (a *Aircraft) chooseDestination() {
	if len(a.candidates) == 0 {
		return
	}
	from := a.position
	idx := rand.SampleFiltered(a.rng, a.candidates, func(d Destination) bool {
		return from.Distance(d.Position) > a.params.MinDestinationDistance
	})
	if idx < 0 {
		farthest := -1.0
		for i, d := range a.candidates {
			if dist := from.Distance(d.Position); dist > farthest {
				idx, farthest = i, dist
			}
		}
	}
	a.destination = a.candidates[idx]
	if from.Distance(a.destination.Position) > 0 {
		a.heading = from.HeadingTo(a.destination.Position)
	}
}

func (a *Aircraft) transition(to Phase) error {
	from := a.phase
	if from == to {
		return nil
	}
	if !ValidTransition(from, to) {
		if a.listener != nil {
			a.listener.PhaseRejected(a.id, from, to)
		}
		return fmt.Errorf("%w: %s %s -> %s (allowed %v)", ErrInvalidTransition, a.id, from, to, Successors(from))
	}
	a.phase = to
	a.phaseTime = 0
	a.enter(to)
	if a.listener != nil {
		a.listener.PhaseChanged(a.id, from, to)
	}
	return nil
}

func (a *Aircraft) enter(p Phase) {
	switch p {
	case Parked:
		a.speed = 0
		a.ready = false
		a.holding = nil
		if a.departures == 0 {
			a.dwell = a.params.FirstDwell
		} else {
			a.dwell = a.rng.FloatRange(a.params.MinDwell, a.params.MaxDwell)
		}
	case TaxiOut:
		a.ready = false
		a.departures++
	case Climb:
		a.targetAltitude = a.params.CruiseAltitude
	case Landing:
		a.holding = nil
	}
}
