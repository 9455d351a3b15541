package controller

import (
	"fmt"
	"time"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/message"
	"github.com/yegors/atcsim/pkg/logger"
)

// Airport is a regional registry entry. Count is the number of approach
// slots reserved by flights heading there; it never exceeds Capacity
// through admission.
type Airport struct {
	Name     string
	Position geo.Position
	Approach *Approach
	Capacity int
	Count    int
}

// AirportInfo is a copy of a registry entry.
type AirportInfo struct {
	Name     string       `json:"name"`
	Position geo.Position `json:"position"`
	Approach string       `json:"approach,omitempty"`
	Capacity int          `json:"capacity"`
	Count    int          `json:"count"`
}

type Route struct {
	Origin      string         `json:"origin"`
	Destination string         `json:"destination"`
	Distance    float64        `json:"distance"`
	Waypoints   []geo.Position `json:"waypoints"`
}

// Conflict is a pair of aircraft closer than a distance minimum.
type Conflict struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
}

type RegionalConfig struct {
	Name                 string
	CruiseAltitude       float64
	HorizontalSeparation float64
	VerticalSeparation   float64
	HandoffRadius        float64
	// AirportMatchRadius is how close an aircraft's destination must be
	// to an airport for the airport to be considered its destination.
	AirportMatchRadius float64
	ProximityDistance  float64
	// ResolveConflicts, when set, orders the second aircraft of a new
	// conflicting pair to climb by ResolutionClimb.
	ResolveConflicts bool
	ResolutionClimb  float64
	TickInterval     time.Duration
}

// Regional is the en-route center: airport registry, admission control,
// separation monitoring and handoff to approach.
type Regional struct {
	*Actor
	cfg      RegionalConfig
	params   *aircraft.Params
	listener aircraft.Listener

	airports     map[string]*Airport
	order        []string
	routes       []Route
	reservations map[string]string

	conflicts    []Conflict
	alerts       []Conflict
	activePairs  map[[2]string]bool
	activeAlerts map[[2]string]bool
	saturated    map[string]bool
}

func NewRegional(cfg RegionalConfig, params *aircraft.Params, listener aircraft.Listener, env Env, logger *logger.Logger) *Regional {
	if params == nil {
		p := aircraft.DefaultParams()
		params = &p
	}
	if cfg.Name == "" {
		cfg.Name = "CCR"
	}
	if cfg.CruiseAltitude <= 0 {
		cfg.CruiseAltitude = params.CruiseAltitude
	}
	if cfg.HorizontalSeparation <= 0 {
		cfg.HorizontalSeparation = 5000
	}
	if cfg.VerticalSeparation <= 0 {
		cfg.VerticalSeparation = 300
	}
	if cfg.HandoffRadius <= 0 {
		cfg.HandoffRadius = 50000
	}
	if cfg.AirportMatchRadius <= 0 {
		cfg.AirportMatchRadius = 1000
	}
	if cfg.ProximityDistance <= 0 {
		cfg.ProximityDistance = 10000
	}
	if cfg.ResolutionClimb <= 0 {
		cfg.ResolutionClimb = 500
	}

	r := &Regional{
		cfg:          cfg,
		params:       params,
		listener:     listener,
		airports:     make(map[string]*Airport),
		reservations: make(map[string]string),
		activePairs:  make(map[[2]string]bool),
		activeAlerts: make(map[[2]string]bool),
		saturated:    make(map[string]bool),
	}
	r.Actor = newActor(cfg.Name, cfg.TickInterval, env, r, logger.Named(cfg.Name))
	return r
}

// RegisterAirport adds or replaces a registry entry. A replaced entry
// keeps its current reservation count.
func (r *Regional) RegisterAirport(name string, position geo.Position, app *Approach, capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.airports[name]; ok {
		existing.Position = position
		existing.Approach = app
		existing.Capacity = capacity
		return
	}
	r.airports[name] = &Airport{Name: name, Position: position, Approach: app, Capacity: capacity}
	r.order = append(r.order, name)
	r.logger.Info("Registered airport",
		logger.String("airport", name),
		logger.String("position", position.String()),
		logger.Int("capacity", capacity))
}

// RegisterRoute records a route with a three-point path: origin, the
// midpoint at cruise altitude, destination.
func (r *Regional) RegisterRoute(origin, destination string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, d, err := r.endpoints(origin, destination)
	if err != nil {
		r.logger.Warn("Route rejected", logger.Error(err))
		return err
	}
	r.routes = append(r.routes, Route{
		Origin:      origin,
		Destination: destination,
		Distance:    o.Position.Distance(d.Position),
		Waypoints:   []geo.Position{o.Position, geo.Midpoint(o.Position, d.Position, r.cfg.CruiseAltitude), d.Position},
	})
	return nil
}

// CreateFlight creates a cruising aircraft over origin bound for
// destination and reserves an approach slot there. Unknown airports,
// duplicate ids and saturated destinations are rejected without any
// change to the roster or the counters.
func (r *Regional) CreateFlight(id, origin, destination string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, d, err := r.endpoints(origin, destination)
	if err == nil && origin == destination {
		err = fmt.Errorf("flight %s: origin and destination are both %s", id, origin)
	}
	if err == nil && r.env.Fleet.Contains(id) {
		err = fmt.Errorf("%w: %s", ErrDuplicateFlight, id)
	}
	if err == nil && d.Count >= d.Capacity {
		r.env.Metrics.RecordAdmissionRejected(destination)
		err = fmt.Errorf("%w: %s (%d/%d)", ErrAirportSaturated, destination, d.Count, d.Capacity)
	}
	if err != nil {
		r.logger.Warn("Flight rejected", logger.String("aircraft", id), logger.Error(err))
		r.send(Broadcast, message.TypeRejected, id, err.Error())
		return err
	}

	start := o.Position
	start.Altitude = r.cfg.CruiseAltitude
	a, err := aircraft.New(aircraft.Config{
		ID:          id,
		Params:      r.params,
		Rand:        r.env.Sim.Rand,
		Position:    start,
		Phase:       aircraft.Cruise,
		Speed:       r.params.CruiseSpeed,
		Destination: aircraft.Destination{Name: d.Name, Position: d.Position},
		Candidates:  r.destinations(),
		Listener:    r.listener,
	})
	if err != nil {
		return fmt.Errorf("failed to create aircraft: %w", err)
	}
	if err := r.env.Fleet.Add(a); err != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateFlight, id)
	}

	d.Count++
	r.reservations[id] = d.Name
	r.insert(id)

	r.send(Broadcast, message.TypeInfo, id, fmt.Sprintf("flight %s -> %s created", origin, destination))
	r.logger.Info("Flight created",
		logger.String("aircraft", id),
		logger.String("origin", origin),
		logger.String("destination", destination),
		logger.Int("slots_used", d.Count))
	return nil
}

// RemoveAircraft removes an aircraft and releases its approach slot. It
// reports whether the aircraft was in the roster.
func (r *Regional) RemoveAircraft(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.remove(id) {
		return false
	}
	r.release(id)
	return true
}

// Airports returns the registry in registration order.
func (r *Regional) Airports() []AirportInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AirportInfo, 0, len(r.order))
	for _, name := range r.order {
		ap := r.airports[name]
		info := AirportInfo{Name: ap.Name, Position: ap.Position, Capacity: ap.Capacity, Count: ap.Count}
		if ap.Approach != nil {
			info.Approach = ap.Approach.Name()
		}
		out = append(out, info)
	}
	return out
}

// Airport returns one registry entry.
func (r *Regional) Airport(name string) (AirportInfo, bool) {
	for _, info := range r.Airports() {
		if info.Name == name {
			return info, true
		}
	}
	return AirportInfo{}, false
}

// Routes returns the registered routes in registration order.
func (r *Regional) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.routes...)
}

// Saturated lists the airports currently at or above capacity, in
// registration order.
func (r *Regional) Saturated() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, name := range r.order {
		if ap := r.airports[name]; ap.Count >= ap.Capacity {
			out = append(out, name)
		}
	}
	return out
}

// LastConflicts returns the separation conflicts found by the last tick.
func (r *Regional) LastConflicts() []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Conflict(nil), r.conflicts...)
}

// ProximityAlerts returns the pairs within the proximity distance at the
// last tick.
func (r *Regional) ProximityAlerts() []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Conflict(nil), r.alerts...)
}

func (r *Regional) Tick(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var airborne []aircraft.Snapshot
	for _, a := range r.aircraftLocked() {
		if s := a.Snapshot(); s.Phase.Airborne() {
			airborne = append(airborne, s)
		}
	}

	r.detectConflicts(airborne)
	r.checkCapacity()
	r.handOffArrivals()
	return nil
}

// admit reserves an approach slot for flights arriving from approach
// control, when the destination has room.
func (r *Regional) admit(a *aircraft.Aircraft) {
	a.SetClearanceRequired(false)
	if _, ok := r.reservations[a.ID()]; ok {
		return
	}
	ap := r.airportNear(a.Destination().Position)
	if ap == nil {
		return
	}
	if ap.Count >= ap.Capacity {
		r.logger.Warn("Destination saturated, flight continues without slot",
			logger.String("aircraft", a.ID()),
			logger.String("airport", ap.Name))
		return
	}
	ap.Count++
	r.reservations[a.ID()] = ap.Name
}

// detectConflicts checks every pair for loss of separation and for
// proximity. Messages are sent when a pair first appears. Caller holds mu.
func (r *Regional) detectConflicts(snaps []aircraft.Snapshot) {
	var conflicts, alerts []Conflict
	pairs := make(map[[2]string]bool)
	near := make(map[[2]string]bool)

	for i := 0; i < len(snaps); i++ {
		for j := i + 1; j < len(snaps); j++ {
			a, b := snaps[i], snaps[j]
			key := [2]string{a.ID, b.ID}
			c := Conflict{
				A:          a.ID,
				B:          b.ID,
				Horizontal: a.Position.Distance(b.Position),
				Vertical:   a.Position.VerticalDistance(b.Position),
			}

			if c.Horizontal < r.cfg.HorizontalSeparation && c.Vertical < r.cfg.VerticalSeparation {
				conflicts = append(conflicts, c)
				pairs[key] = true
				if !r.activePairs[key] {
					r.reportConflict(c)
				}
			}
			if a.Position.Distance3D(b.Position) < r.cfg.ProximityDistance {
				alerts = append(alerts, c)
				near[key] = true
				if !r.activeAlerts[key] {
					r.send(Broadcast, message.TypeProximity, a.ID,
						fmt.Sprintf("%s and %s within %.0f m", a.ID, b.ID, a.Position.Distance3D(b.Position)))
				}
			}
		}
	}

	r.conflicts, r.alerts = conflicts, alerts
	r.activePairs, r.activeAlerts = pairs, near
	r.env.Metrics.RecordConflicts(len(conflicts))
}

func (r *Regional) reportConflict(c Conflict) {
	r.logger.Warn("Separation conflict",
		logger.String("a", c.A),
		logger.String("b", c.B),
		logger.Float64("horizontal_m", c.Horizontal),
		logger.Float64("vertical_m", c.Vertical))
	r.send(Broadcast, message.TypeConflict, c.A,
		fmt.Sprintf("%s/%s separation %.0f m horizontal, %.0f m vertical", c.A, c.B, c.Horizontal, c.Vertical))

	if !r.cfg.ResolveConflicts {
		return
	}
	if b, ok := r.env.Fleet.Get(c.B); ok {
		b.ClimbBy(r.cfg.ResolutionClimb)
		r.send(c.B, message.TypeConflict, c.B, fmt.Sprintf("climb %.0f m", r.cfg.ResolutionClimb))
	}
}

// checkCapacity warns when an airport reaches capacity. Caller holds mu.
func (r *Regional) checkCapacity() {
	for _, name := range r.order {
		ap := r.airports[name]
		full := ap.Count >= ap.Capacity
		if full && !r.saturated[name] {
			r.logger.Warn("Airport saturated",
				logger.String("airport", name),
				logger.Int("count", ap.Count),
				logger.Int("capacity", ap.Capacity))
			r.send(Broadcast, message.TypeSaturation, "",
				fmt.Sprintf("%s at capacity %d/%d", name, ap.Count, ap.Capacity))
		}
		r.saturated[name] = full
	}
}

// handOffArrivals transfers en-route aircraft near their destination to
// its approach controller. Caller holds mu.
func (r *Regional) handOffArrivals() {
	for _, a := range r.aircraftLocked() {
		switch a.Phase() {
		case aircraft.Cruise, aircraft.Descent, aircraft.Approach:
		default:
			continue
		}
		ap := r.airportNear(a.Destination().Position)
		if ap == nil || ap.Approach == nil {
			continue
		}
		if a.Position().Distance(ap.Position) > r.cfg.HandoffRadius {
			continue
		}
		r.release(a.ID())
		r.handOff(ap.Approach.Actor, a.ID(), fmt.Sprintf("inbound %s, contact approach", ap.Name))
	}
}

// release frees the approach slot held by id. Caller holds mu.
func (r *Regional) release(id string) {
	name, ok := r.reservations[id]
	if !ok {
		return
	}
	delete(r.reservations, id)
	if ap, ok := r.airports[name]; ok && ap.Count > 0 {
		ap.Count--
	}
}

func (r *Regional) endpoints(origin, destination string) (*Airport, *Airport, error) {
	o, ok := r.airports[origin]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAirport, origin)
	}
	d, ok := r.airports[destination]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAirport, destination)
	}
	return o, d, nil
}

func (r *Regional) airportNear(p geo.Position) *Airport {
	for _, name := range r.order {
		if ap := r.airports[name]; ap.Position.Distance(p) <= r.cfg.AirportMatchRadius {
			return ap
		}
	}
	return nil
}

func (r *Regional) destinations() []aircraft.Destination {
	out := make([]aircraft.Destination, 0, len(r.order))
	for _, name := range r.order {
		ap := r.airports[name]
		out = append(out, aircraft.Destination{Name: ap.Name, Position: ap.Position})
	}
	return out
}
