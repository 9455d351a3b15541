package status

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/controller"
	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/simctx"
	"github.com/yegors/atcsim/pkg/logger"
)

type fakeCounter struct {
	counts map[string]int
	err    error
}

func (f fakeCounter) CountMessages() (map[string]int, error) { return f.counts, f.err }

func TestCollect(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	sim, clock := simctx.NewManual(1, start)
	fleet := aircraft.NewFleet()
	env := controller.Env{Fleet: fleet, Sim: sim}
	log := logger.NewNop()

	xPos, yPos := geo.NewPosition(0, 0, 0), geo.NewPosition(300, 0, 0)
	ccr := controller.NewRegional(controller.RegionalConfig{}, nil, nil, env, log)
	app := controller.NewApproach(controller.ApproachConfig{Name: "APP-Y", Airport: "Y", Center: yPos}, env, log)
	tower := controller.NewTower(controller.TowerConfig{Name: "TWR-X", Airport: "X", Position: xPos, Stands: 2}, env, log)
	ccr.RegisterAirport("X", xPos, nil, 3)
	ccr.RegisterAirport("Y", yPos, app, 3)

	require.NoError(t, ccr.CreateFlight("F1", "X", "Y"))
	parked, err := aircraft.New(aircraft.Config{ID: "G1", Rand: sim.Rand, Position: xPos, Phase: aircraft.Parked})
	require.NoError(t, err)
	require.NoError(t, fleet.Add(parked))
	tower.AddAircraft("G1")

	inbound, err := aircraft.New(aircraft.Config{
		ID:          "A1",
		Rand:        sim.Rand,
		Position:    geo.Position{X: yPos.X - 10000, Altitude: 1500},
		Phase:       aircraft.Descent,
		Speed:       200,
		Destination: aircraft.Destination{Name: "Y", Position: yPos},
	})
	require.NoError(t, err)
	require.NoError(t, fleet.Add(inbound))
	app.AddAircraft("A1")
	app.TickOnce()

	clock.Advance(90 * time.Second)

	agg := NewAggregator(ccr, []*controller.Approach{app}, []*controller.Tower{tower}, fleet, sim,
		fakeCounter{counts: map[string]int{"INFO": 1}}, log)
	assert.Nil(t, agg.Last())

	st := agg.Collect(Options{IncludeRosters: true, IncludeMessages: true})
	assert.Equal(t, sim.RunID, st.RunID)
	assert.Equal(t, 90*time.Second, st.Elapsed)
	assert.Equal(t, 3, st.TotalAircraft)
	assert.Equal(t, map[string]int{"CRUISE": 1, "PARKED": 1, "APPROACH": 1}, st.Phases)
	assert.Equal(t, map[string]int{"INFO": 1}, st.MessageCounts)

	require.Len(t, st.Regional.EnRoute, 1)
	assert.Equal(t, "F1", st.Regional.EnRoute[0].ID)
	require.Len(t, st.Regional.Airports, 2)
	assert.Equal(t, 1, st.Regional.Airports[1].Count)

	require.Len(t, st.Approaches, 1)
	require.Len(t, st.Approaches[0].Queue, 1)
	assert.Equal(t, "A1", st.Approaches[0].Queue[0].ID)
	assert.Equal(t, 1000.0, st.Approaches[0].Queue[0].Holding.Altitude)

	require.Len(t, st.Towers, 1)
	assert.Equal(t, 1, st.Towers[0].FreeStands)
	assert.Equal(t, "G1", st.Towers[0].Stands[0].Occupant)
	assert.Len(t, st.Towers[0].Roster, 1)

	last := agg.Last()
	require.NotNil(t, last)
	last.Phases["CRUISE"] = 99
	assert.Equal(t, 1, agg.Last().Phases["CRUISE"], "Last returns a copy")
}

func TestCollectToleratesCounterErrors(t *testing.T) {
	sim, _ := simctx.NewManual(1, time.Now())
	fleet := aircraft.NewFleet()
	agg := NewAggregator(nil, nil, nil, fleet, sim, fakeCounter{err: errors.New("db closed")}, logger.NewNop())

	st := agg.Collect(Options{IncludeMessages: true, MaxEnRoute: 5})
	assert.Nil(t, st.MessageCounts)
	assert.Zero(t, st.TotalAircraft)
}
