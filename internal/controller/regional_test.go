package controller

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/message"
)

func newRegionalNet(t *testing.T, capacity int) (*testEnv, *Regional, airportNet, airportNet) {
	t.Helper()
	te := newTestEnv(t)
	ccr := NewRegional(RegionalConfig{}, te.params, te.tracker, te.Env, te.log)
	x := te.newAirport("X", destX.Position, ccr, capacity)
	y := te.newAirport("Y", destY.Position, ccr, capacity)
	return te, ccr, x, y
}

func TestCreateFlight(t *testing.T) {
	te, ccr, _, _ := newRegionalNet(t, 5)

	require.NoError(t, ccr.CreateFlight("F1", "X", "Y"))

	y, ok := ccr.Airport("Y")
	require.True(t, ok)
	assert.Equal(t, 1, y.Count)
	assert.Equal(t, "APP-Y", y.Approach)

	a, ok := te.Fleet.Get("F1")
	require.True(t, ok)
	assert.Equal(t, aircraft.Cruise, a.Phase())
	assert.Equal(t, "Y", a.Destination().Name)
	assert.Equal(t, 10000.0, a.Position().Altitude)
	assert.Equal(t, "CCR", a.Owner())
	assert.Equal(t, []string{"F1"}, ccr.RosterIDs())
	assert.Equal(t, 1, messagesOfType(ccr.Actor, string(message.TypeInfo)))
}

func TestCreateFlightRejectsSaturatedDestination(t *testing.T) {
	te, ccr, _, _ := newRegionalNet(t, 1)
	require.NoError(t, ccr.CreateFlight("F1", "X", "Y"))

	err := ccr.CreateFlight("F2", "X", "Y")
	assert.ErrorIs(t, err, ErrAirportSaturated)

	y, _ := ccr.Airport("Y")
	assert.Equal(t, 1, y.Count)
	assert.Equal(t, []string{"F1"}, ccr.RosterIDs())
	assert.False(t, te.Fleet.Contains("F2"))
	assert.Equal(t, 1, messagesOfType(ccr.Actor, string(message.TypeRejected)))
}

func TestCreateFlightValidation(t *testing.T) {
	te, ccr, _, _ := newRegionalNet(t, 5)
	require.NoError(t, ccr.CreateFlight("F1", "X", "Y"))

	tests := []struct {
		name        string
		id          string
		origin      string
		destination string
		want        error
	}{
		{name: "unknown origin", id: "F2", origin: "Z", destination: "Y", want: ErrUnknownAirport},
		{name: "unknown destination", id: "F2", origin: "X", destination: "Z", want: ErrUnknownAirport},
		{name: "duplicate id", id: "F1", origin: "Y", destination: "X", want: ErrDuplicateFlight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ccr.CreateFlight(tt.id, tt.origin, tt.destination), tt.want)
		})
	}

	assert.Error(t, ccr.CreateFlight("F3", "X", "X"))
	assert.Equal(t, 1, te.Fleet.Len())
	y, _ := ccr.Airport("Y")
	assert.Equal(t, 1, y.Count)
}

func TestRegisterAirportKeepsCount(t *testing.T) {
	_, ccr, _, y := newRegionalNet(t, 5)
	require.NoError(t, ccr.CreateFlight("F1", "X", "Y"))

	ccr.RegisterAirport("Y", destY.Position, y.app, 8)
	info, _ := ccr.Airport("Y")
	assert.Equal(t, 8, info.Capacity)
	assert.Equal(t, 1, info.Count)
	assert.Len(t, ccr.Airports(), 2)
}

func TestRegisterRoute(t *testing.T) {
	_, ccr, _, _ := newRegionalNet(t, 5)

	require.NoError(t, ccr.RegisterRoute("X", "Y"))
	assert.ErrorIs(t, ccr.RegisterRoute("X", "Z"), ErrUnknownAirport)

	want := []Route{{
		Origin:      "X",
		Destination: "Y",
		Distance:    300000,
		Waypoints: []geo.Position{
			destX.Position,
			{X: 150000, Y: 0, Altitude: 10000},
			destY.Position,
		},
	}}
	if diff := cmp.Diff(want, ccr.Routes()); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestSeparationConflict(t *testing.T) {
	te := newTestEnv(t)
	ccr := NewRegional(RegionalConfig{}, te.params, te.tracker, te.Env, te.log)

	te.spawn(t, "A1", aircraft.Cruise, geo.Position{X: 100000, Altitude: 10000}, destY)
	te.spawn(t, "A2", aircraft.Cruise, geo.Position{X: 104000, Altitude: 10000}, destY)
	te.spawn(t, "A3", aircraft.Cruise, geo.Position{X: 104000, Altitude: 11000}, destY)
	for _, id := range []string{"A1", "A2", "A3"} {
		ccr.AddAircraft(id)
	}

	ccr.TickOnce()
	ccr.TickOnce()

	conflicts := ccr.LastConflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "A1", conflicts[0].A)
	assert.Equal(t, "A2", conflicts[0].B)
	assert.InDelta(t, 4000, conflicts[0].Horizontal, 1e-9)
	assert.Equal(t, 0.0, conflicts[0].Vertical)
	assert.Equal(t, 1, messagesOfType(ccr.Actor, string(message.TypeConflict)))

	assert.Len(t, ccr.ProximityAlerts(), 3)
	assert.Equal(t, 3, messagesOfType(ccr.Actor, string(message.TypeProximity)))
}

func TestConflictIgnoresGroundTraffic(t *testing.T) {
	te := newTestEnv(t)
	ccr := NewRegional(RegionalConfig{}, te.params, te.tracker, te.Env, te.log)

	te.spawn(t, "A1", aircraft.Parked, destX.Position, destY)
	te.spawn(t, "A2", aircraft.Parked, destX.Position, destY)
	ccr.AddAircraft("A1")
	ccr.AddAircraft("A2")
	ccr.TickOnce()

	assert.Empty(t, ccr.LastConflicts())
	assert.Empty(t, ccr.ProximityAlerts())
}

func TestConflictResolutionClimbs(t *testing.T) {
	te := newTestEnv(t)
	ccr := NewRegional(RegionalConfig{ResolveConflicts: true}, te.params, te.tracker, te.Env, te.log)

	te.spawn(t, "A1", aircraft.Cruise, geo.Position{X: 100000, Altitude: 10000}, destY)
	a2 := te.spawn(t, "A2", aircraft.Cruise, geo.Position{X: 103000, Altitude: 10000}, destY)
	ccr.AddAircraft("A1")
	ccr.AddAircraft("A2")
	before := a2.Snapshot().TargetAltitude

	ccr.TickOnce()
	assert.Equal(t, before+500, a2.Snapshot().TargetAltitude)

	ccr.TickOnce()
	assert.Equal(t, before+500, a2.Snapshot().TargetAltitude, "only new conflicts are resolved")
}

func TestSaturationWarning(t *testing.T) {
	_, ccr, _, _ := newRegionalNet(t, 1)
	assert.Empty(t, ccr.Saturated())
	require.NoError(t, ccr.CreateFlight("F1", "X", "Y"))
	assert.Equal(t, []string{"Y"}, ccr.Saturated())

	ccr.TickOnce()
	ccr.TickOnce()
	assert.Equal(t, 1, messagesOfType(ccr.Actor, string(message.TypeSaturation)))
	assert.Equal(t, []string{"Y"}, ccr.Saturated(), "still saturated after the warning")

	require.True(t, ccr.RemoveAircraft("F1"))
	assert.Empty(t, ccr.Saturated())
}

func TestHandoffToApproach(t *testing.T) {
	te, ccr, _, y := newRegionalNet(t, 5)

	te.spawn(t, "F1", aircraft.Cruise, geo.Position{X: destY.Position.X - 40000, Altitude: 10000}, destY)
	te.spawn(t, "F2", aircraft.Cruise, geo.Position{X: destY.Position.X - 120000, Altitude: 10000}, destY)
	ccr.AddAircraft("F1")
	ccr.AddAircraft("F2")

	info, _ := ccr.Airport("Y")
	require.Equal(t, 2, info.Count)

	ccr.TickOnce()
	assert.Equal(t, []string{"F2"}, ccr.RosterIDs())
	assert.True(t, y.app.Owns("F1"))
	info, _ = ccr.Airport("Y")
	assert.Equal(t, 1, info.Count)
	assert.Equal(t, 1, messagesOfType(ccr.Actor, string(message.TypeHandoff)))

	y.app.TickOnce()
	f1, _ := te.Fleet.Get("F1")
	assert.Equal(t, "APP-Y", f1.Owner())
}

func TestRemoveAircraftReleasesSlot(t *testing.T) {
	_, ccr, _, _ := newRegionalNet(t, 1)
	require.NoError(t, ccr.CreateFlight("F1", "X", "Y"))

	ccr.RemoveAircraft("F1")
	info, _ := ccr.Airport("Y")
	assert.Equal(t, 0, info.Count)
	assert.NoError(t, ccr.CreateFlight("F2", "X", "Y"))
}
