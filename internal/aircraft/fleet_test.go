package aircraft

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/atcsim/internal/rand"
	"github.com/yegors/atcsim/pkg/logger"
)

func TestFleet(t *testing.T) {
	f := NewFleet()
	for _, id := range []string{"KL3", "AF1", "BA2"} {
		a, err := New(Config{ID: id, Rand: rand.New(1), Phase: Parked})
		require.NoError(t, err)
		require.NoError(t, f.Add(a))
	}

	dup, err := New(Config{ID: "AF1", Rand: rand.New(1)})
	require.NoError(t, err)
	assert.Error(t, f.Add(dup))
	assert.Error(t, f.Add(nil))

	var ids []string
	for _, a := range f.All() {
		ids = append(ids, a.ID())
	}
	if diff := cmp.Diff([]string{"AF1", "BA2", "KL3"}, ids); diff != "" {
		t.Errorf("All() order mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, f.Contains("BA2"))
	f.Remove("BA2")
	assert.False(t, f.Contains("BA2"))
	assert.Equal(t, 2, f.Len())
	assert.Len(t, f.Snapshots(), 2)
}

func TestPhaseTracker(t *testing.T) {
	var seen []PhaseChange
	tracker := NewPhaseTracker(func(c PhaseChange) { seen = append(seen, c) }, logger.NewNop())

	tracker.PhaseChanged("AF1", Cruise, Descent)
	tracker.PhaseChanged("AF1", Descent, Approach)
	tracker.PhaseRejected("AF1", Approach, Climb)
	tracker.PhaseChanged("BA2", Parked, TaxiOut)

	assert.Equal(t, 1, tracker.Rejected())
	assert.Equal(t, 1, tracker.Count(Descent, Approach))

	last, ok := tracker.Last("AF1")
	require.True(t, ok)
	assert.Equal(t, Approach, last)

	want := [][2]Phase{{Parked, TaxiOut}, {Cruise, Descent}, {Descent, Approach}}
	if diff := cmp.Diff(want, tracker.Edges()); diff != "" {
		t.Errorf("Edges() mismatch (-want +got):\n%s", diff)
	}

	recent := tracker.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "rejected", recent[0].Type)
	assert.Equal(t, uint64(4), recent[1].Sequence)
	assert.Len(t, seen, 4)
}
