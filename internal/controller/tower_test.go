package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/message"
)

var (
	destX = aircraft.Destination{Name: "X", Position: geo.NewPosition(0, 0, 0)}
	destY = aircraft.Destination{Name: "Y", Position: geo.NewPosition(300, 0, 0)}
)

func TestLandingReleasesRunwayAfterDuration(t *testing.T) {
	te := newTestEnv(t)
	tower := NewTower(TowerConfig{Name: "TWR-Y", Airport: "Y", Position: destY.Position, Stands: 3}, te.Env, te.log)
	te.spawn(t, "AF1", aircraft.Landing, geo.Position{X: destY.Position.X - 2000, Altitude: 100}, destY)
	tower.AddAircraft("AF1")

	require.True(t, tower.RequestLanding("AF1"))
	assert.False(t, tower.RunwayFree())
	assert.False(t, tower.RequestLanding("BA2"), "runway must hold one occupant")

	rw := tower.Runway()
	assert.Equal(t, "AF1", rw.Occupant)
	assert.Equal(t, RunwayLanding, rw.Use)
	assert.Equal(t, simStart.Add(30*time.Second), rw.ReleaseAt)

	te.advance(29 * time.Second)
	tower.TickOnce()
	assert.False(t, tower.RunwayFree())

	te.advance(time.Second)
	tower.TickOnce()
	assert.True(t, tower.RunwayFree())

	stands := tower.Stands()
	assert.Equal(t, "P1", stands[0].ID)
	assert.Equal(t, "AF1", stands[0].Occupant)

	a, _ := te.Fleet.Get("AF1")
	assert.Equal(t, aircraft.Parked, a.Phase())
	assert.Equal(t, destY.Position, a.Position())
	assert.Equal(t, 1, te.tracker.Count(aircraft.Landing, aircraft.TaxiIn))
	assert.Equal(t, 1, te.tracker.Count(aircraft.TaxiIn, aircraft.Parked))
	assert.Equal(t, 1, messagesOfType(tower.Actor, string(message.TypeParking)))
}

func TestTowerAdoptsUnreservedLanding(t *testing.T) {
	te := newTestEnv(t)
	tower := NewTower(TowerConfig{Name: "TWR-Y", Airport: "Y", Position: destY.Position, Stands: 3}, te.Env, te.log)
	onRunway := geo.Position{X: destY.Position.X, Y: destY.Position.Y}
	te.spawn(t, "AF1", aircraft.Landing, onRunway, destY)
	te.spawn(t, "BA2", aircraft.Landing, onRunway, destY)

	tower.AddAircraft("AF1")
	rw := tower.Runway()
	assert.Equal(t, "AF1", rw.Occupant)
	assert.Equal(t, RunwayLanding, rw.Use)
	assert.Equal(t, simStart.Add(30*time.Second), rw.ReleaseAt)

	tower.AddAircraft("BA2")
	ba2, _ := te.Fleet.Get("BA2")
	assert.Equal(t, aircraft.TaxiIn, ba2.Phase(), "runway busy, straight to taxi in")
	assert.Equal(t, "BA2", tower.Stands()[0].Occupant)
	assert.Equal(t, "AF1", tower.Runway().Occupant)

	tower.TickOnce()
	assert.Equal(t, aircraft.Parked, ba2.Phase())

	te.advance(30 * time.Second)
	tower.TickOnce()
	af1, _ := te.Fleet.Get("AF1")
	assert.Equal(t, aircraft.Parked, af1.Phase())
	assert.Equal(t, "AF1", tower.Stands()[1].Occupant)
	assert.True(t, tower.Runway().Free())
}

func TestDeparturesLeaveFurthestStandFirst(t *testing.T) {
	te := newTestEnv(t)
	tower := NewTower(TowerConfig{Name: "TWR-Y", Airport: "Y", Position: destY.Position, Stands: 3}, te.Env, te.log)

	for _, id := range []string{"AF1", "BA2", "KL3"} {
		te.spawn(t, id, aircraft.Parked, destY.Position, destY, destX, destY)
		tower.AddAircraft(id)
	}
	stands := tower.Stands()
	assert.Equal(t, "AF1", stands[0].Occupant)
	assert.Equal(t, "KL3", stands[2].Occupant)

	// Not ready before the dwell elapses.
	tower.TickOnce()
	assert.True(t, tower.Runway().Free())
	assert.False(t, tower.RunwayFree(), "every stand is taken")

	te.Fleet.Update(5)
	assert.Equal(t, []string{"KL3", "BA2", "AF1"}, tower.DepartureQueue())

	tower.TickOnce()
	kl3, _ := te.Fleet.Get("KL3")
	assert.Equal(t, aircraft.TaxiOut, kl3.Phase())
	assert.Empty(t, tower.Stands()[2].Occupant)
	rw := tower.Runway()
	assert.Equal(t, "KL3", rw.Occupant)
	assert.Equal(t, RunwayTakeoff, rw.Use)

	tower.TickOnce()
	ba2, _ := te.Fleet.Get("BA2")
	assert.Equal(t, aircraft.Parked, ba2.Phase(), "runway busy with takeoff")

	te.advance(20 * time.Second)
	tower.TickOnce()
	assert.Equal(t, aircraft.TaxiOut, ba2.Phase())
	assert.Equal(t, "BA2", tower.Runway().Occupant)
}

func TestLandingDeniedWithoutFreeStand(t *testing.T) {
	te := newTestEnv(t)
	tower := NewTower(TowerConfig{Name: "TWR-Y", Airport: "Y", Position: destY.Position, Stands: 1}, te.Env, te.log)
	te.spawn(t, "AF1", aircraft.Parked, destY.Position, destY)
	tower.AddAircraft("AF1")

	assert.True(t, tower.Runway().Free())
	assert.False(t, tower.RunwayFree(), "no stand left for an arrival")
	assert.False(t, tower.RequestLanding("BA2"))
}

func TestTowerReleasesClimbingDepartures(t *testing.T) {
	te := newTestEnv(t)
	tower := NewTower(TowerConfig{Name: "TWR-Y", Airport: "Y", Position: destY.Position}, te.Env, te.log)
	app := NewApproach(ApproachConfig{Name: "APP-Y", Airport: "Y", Center: destY.Position}, te.Env, te.log)
	tower.SetApproach(app)

	te.spawn(t, "AF1", aircraft.Takeoff, geo.Position{X: destY.Position.X, Altitude: 150}, destX)
	te.spawn(t, "BA2", aircraft.Climb, geo.Position{X: destY.Position.X - 1000, Altitude: 400}, destX)
	tower.AddAircraft("AF1")
	tower.AddAircraft("BA2")

	tower.TickOnce()
	assert.Equal(t, []string{"AF1"}, tower.RosterIDs())
	assert.True(t, app.Owns("BA2"))
	assert.False(t, tower.Owns("BA2"))
}
