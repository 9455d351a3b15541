package controller

import (
	"fmt"
	"time"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/message"
	"github.com/yegors/atcsim/pkg/logger"
)

type ApproachConfig struct {
	Name    string
	Airport string
	Center  geo.Position
	Radius  float64

	// Holding stack: position i (0 is the queue head) holds at
	// HoldingBaseAltitude + i*HoldingAltitudeStep on a circle of radius
	// HoldingRadiusFactor*Radius - i*HoldingRadiusStep, never below
	// HoldingMinRadius nor outside the zone.
	HoldingBaseAltitude float64
	HoldingAltitudeStep float64
	HoldingRadiusFactor float64
	HoldingRadiusStep   float64
	HoldingMinRadius    float64

	// DestinationRadius decides which aircraft land here: those whose
	// destination lies within it of Center.
	DestinationRadius float64
	// ReleaseDistance is how far from Center a cruising departure must be
	// before it is handed back to the regional center.
	ReleaseDistance float64

	TickInterval time.Duration
}

// Approach sequences arrivals into one airport and hands departures back
// to the regional center.
type Approach struct {
	*Actor
	cfg      ApproachConfig
	queue    []string
	tower    *Tower
	regional *Regional
	// requested is the queue head a landing request was last announced for.
	requested string
}

func NewApproach(cfg ApproachConfig, env Env, logger *logger.Logger) *Approach {
	if cfg.Radius <= 0 {
		cfg.Radius = 20000
	}
	if cfg.HoldingBaseAltitude <= 0 {
		cfg.HoldingBaseAltitude = 1000
	}
	if cfg.HoldingAltitudeStep <= 0 {
		cfg.HoldingAltitudeStep = 500
	}
	if cfg.HoldingRadiusFactor <= 0 {
		cfg.HoldingRadiusFactor = 0.8
	}
	if cfg.HoldingRadiusStep <= 0 {
		cfg.HoldingRadiusStep = 1000
	}
	if cfg.HoldingMinRadius <= 0 {
		cfg.HoldingMinRadius = 1000
	}
	if cfg.DestinationRadius <= 0 {
		cfg.DestinationRadius = 1000
	}
	if cfg.ReleaseDistance <= 0 {
		cfg.ReleaseDistance = cfg.Radius
	}

	app := &Approach{cfg: cfg}
	app.Actor = newActor(cfg.Name, cfg.TickInterval, env, app, logger.Named(cfg.Name))
	return app
}

func (app *Approach) Airport() string { return app.cfg.Airport }

func (app *Approach) Center() geo.Position { return app.cfg.Center }

func (app *Approach) Radius() float64 { return app.cfg.Radius }

// SetTower sets the tower landing clearances are requested from.
func (app *Approach) SetTower(t *Tower) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.tower = t
}

// SetRegional sets the regional center departures are released to.
func (app *Approach) SetRegional(r *Regional) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.regional = r
}

// InZone reports whether p lies inside the zone of responsibility.
func (app *Approach) InZone(p geo.Position) bool {
	return p.Distance(app.cfg.Center) <= app.cfg.Radius
}

// Queue returns the landing sequence, head first.
func (app *Approach) Queue() []string {
	app.mu.Lock()
	defer app.mu.Unlock()
	return append([]string(nil), app.queue...)
}

// HoldingFor returns the holding trajectory for a queue position.
func (app *Approach) HoldingFor(position int) aircraft.Holding {
	radius := app.cfg.HoldingRadiusFactor*app.cfg.Radius - float64(position)*app.cfg.HoldingRadiusStep
	return aircraft.Holding{
		Center:   app.cfg.Center,
		Radius:   geo.Clamp(radius, app.cfg.HoldingMinRadius, app.cfg.Radius),
		Altitude: app.cfg.HoldingBaseAltitude + float64(position)*app.cfg.HoldingAltitudeStep,
	}
}

// DeclareEmergency moves a queued aircraft to the head of the landing
// sequence.
func (app *Approach) DeclareEmergency(id string) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	i := app.queueIndex(id)
	if i < 0 {
		return fmt.Errorf("%s: %w: %s", app.name, ErrNotQueued, id)
	}
	copy(app.queue[1:i+1], app.queue[:i])
	app.queue[0] = id
	app.restack()

	app.send(Broadcast, message.TypeEmergency, id, "priority landing sequence")
	app.logger.Warn("Emergency declared", logger.String("aircraft", id))
	return nil
}

func (app *Approach) Tick(now time.Time) error {
	app.mu.Lock()
	app.admitArrivals()
	app.releaseDepartures()
	head := ""
	if len(app.queue) > 0 {
		head = app.queue[0]
	}
	tower := app.tower
	if head != "" && tower != nil && head != app.requested {
		app.requested = head
		app.send(tower.name, message.TypeLandingRequest, head, "request landing")
	}
	app.mu.Unlock()

	if head == "" || tower == nil {
		return nil
	}

	// The tower lock is taken with ours released.
	if !tower.RequestLanding(head) {
		return nil
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	app.clearToLand(head, tower)
	return nil
}

func (app *Approach) admit(a *aircraft.Aircraft) {
	a.SetClearanceRequired(true)
}

// admitArrivals puts arriving aircraft inside the zone into APPROACH and
// the landing queue. Caller holds mu.
func (app *Approach) admitArrivals() {
	changed := false
	kept := app.queue[:0]
	for _, id := range app.queue {
		if _, ok := app.members[id]; ok {
			kept = append(kept, id)
		} else {
			changed = true
		}
	}
	app.queue = kept

	for _, a := range app.aircraftLocked() {
		if !app.landsHere(a) || app.queueIndex(a.ID()) >= 0 {
			continue
		}
		switch a.Phase() {
		case aircraft.Cruise, aircraft.Descent:
			if !app.InZone(a.Position()) {
				continue
			}
			if err := a.SetPhase(aircraft.Approach); err != nil {
				app.logger.Warn("Could not start approach", logger.String("aircraft", a.ID()), logger.Error(err))
				continue
			}
		case aircraft.Approach:
		default:
			continue
		}

		app.queue = append(app.queue, a.ID())
		changed = true
		h := app.HoldingFor(len(app.queue) - 1)
		app.send(Broadcast, message.TypeHolding, a.ID(),
			fmt.Sprintf("sequence %d, hold at %.0f m radius %.0f m", len(app.queue), h.Altitude, h.Radius))
		app.logger.Info("Aircraft sequenced",
			logger.String("aircraft", a.ID()),
			logger.Int("position", len(app.queue)-1))
	}
	if changed {
		app.restack()
	}
}

// releaseDepartures hands cruising departures beyond the release
// distance back to the regional center. Caller holds mu.
func (app *Approach) releaseDepartures() {
	if app.regional == nil {
		return
	}
	for _, a := range app.aircraftLocked() {
		if a.Phase() != aircraft.Cruise || app.landsHere(a) {
			continue
		}
		if a.Position().Distance(app.cfg.Center) <= app.cfg.ReleaseDistance {
			continue
		}
		app.handOff(app.regional.Actor, a.ID(), "leaving approach zone")
	}
}

// clearToLand dequeues a granted aircraft and hands it to the tower.
// Caller holds mu.
func (app *Approach) clearToLand(id string, tower *Tower) {
	if i := app.queueIndex(id); i >= 0 {
		app.queue = append(app.queue[:i], app.queue[i+1:]...)
	}
	if a, ok := app.env.Fleet.Get(id); ok {
		if err := a.SetPhase(aircraft.Landing); err != nil {
			app.logger.Warn("Cleared aircraft could not land", logger.String("aircraft", id), logger.Error(err))
		}
	}
	app.handOff(tower.Actor, id, "cleared to land, contact tower")
	app.restack()
}

// restack reassigns holding trajectories by current queue position.
// Caller holds mu.
func (app *Approach) restack() {
	for i, id := range app.queue {
		if a, ok := app.env.Fleet.Get(id); ok {
			h := app.HoldingFor(i)
			a.AssignHolding(&h)
		}
	}
}

func (app *Approach) landsHere(a *aircraft.Aircraft) bool {
	return a.Destination().Position.Distance(app.cfg.Center) <= app.cfg.DestinationRadius
}

func (app *Approach) queueIndex(id string) int {
	for i, qid := range app.queue {
		if qid == id {
			return i
		}
	}
	return -1
}
