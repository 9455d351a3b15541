package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/simctx"
	"github.com/yegors/atcsim/pkg/logger"
)

var simStart = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	Env
	clock   *simctx.ManualClock
	tracker *aircraft.PhaseTracker
	params  *aircraft.Params
	log     *logger.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sim, clock := simctx.NewManual(7, simStart)
	params := aircraft.DefaultParams()
	log := logger.NewNop()
	return &testEnv{
		Env:     Env{Fleet: aircraft.NewFleet(), Sim: sim},
		clock:   clock,
		tracker: aircraft.NewPhaseTracker(nil, log),
		params:  &params,
		log:     log,
	}
}

// spawn adds an aircraft to the fleet.
func (te *testEnv) spawn(t *testing.T, id string, phase aircraft.Phase, pos geo.Position, dest aircraft.Destination, candidates ...aircraft.Destination) *aircraft.Aircraft {
	t.Helper()
	speed := 0.0
	if phase.Airborne() {
		speed = te.params.CruiseSpeed
	}
	a, err := aircraft.New(aircraft.Config{
		ID:          id,
		Params:      te.params,
		Rand:        te.Sim.Rand,
		Position:    pos,
		Phase:       phase,
		Speed:       speed,
		Destination: dest,
		Candidates:  candidates,
		Listener:    te.tracker,
	})
	require.NoError(t, err)
	require.NoError(t, te.Fleet.Add(a))
	return a
}

// advance moves simulated time forward.
func (te *testEnv) advance(d time.Duration) {
	te.clock.Advance(d)
}

// airportNet is one airport's approach and tower, wired to a regional center.
type airportNet struct {
	app   *Approach
	tower *Tower
}

func (te *testEnv) newAirport(name string, pos geo.Position, ccr *Regional, capacity int) airportNet {
	app := NewApproach(ApproachConfig{Name: "APP-" + name, Airport: name, Center: pos, Radius: 20000}, te.Env, te.log)
	tower := NewTower(TowerConfig{Name: "TWR-" + name, Airport: name, Position: pos, Stands: 4}, te.Env, te.log)
	app.SetTower(tower)
	app.SetRegional(ccr)
	tower.SetApproach(app)
	ccr.RegisterAirport(name, pos, app, capacity)
	return airportNet{app: app, tower: tower}
}

func messagesOfType(c *Actor, typ string) int {
	n := 0
	for _, m := range c.Messages() {
		if string(m.Type) == typ {
			n++
		}
	}
	return n
}
