package roster

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/geo"
)

func TestParseFlights(t *testing.T) {
	input := `# morning bank
AF1 X Y

BA2 Y X
broken line here too
KL3 X
LH4 X X
  DL5   Y   X
`
	flights, skipped, err := ParseFlights(strings.NewReader(input))
	require.NoError(t, err)

	want := []Flight{
		{ID: "AF1", Origin: "X", Destination: "Y"},
		{ID: "BA2", Origin: "Y", Destination: "X"},
		{ID: "DL5", Origin: "Y", Destination: "X"},
	}
	if diff := cmp.Diff(want, flights); diff != "" {
		t.Errorf("flights mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, skipped, 3)
	assert.Equal(t, 5, skipped[0].Line)
	assert.Equal(t, 6, skipped[1].Line)
	assert.Equal(t, "origin equals destination", skipped[2].Reason)
}

func TestLoadFlightsMissingFile(t *testing.T) {
	_, _, err := LoadFlights(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := Snapshot{
		RunID:   "run-1",
		SimTime: time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC),
		Aircraft: []aircraft.Snapshot{
			{
				ID:          "AF1",
				Phase:       aircraft.Approach,
				Position:    geo.Position{X: 290000, Y: 1200, Altitude: 1500},
				Speed:       90,
				Destination: aircraft.Destination{Name: "Y", Position: geo.NewPosition(300, 0, 0)},
				Owner:       "APP-Y",
				Holding:     &aircraft.Holding{Center: geo.NewPosition(300, 0, 0), Radius: 16000, Altitude: 1000},
			},
			{ID: "BA2", Phase: aircraft.Parked, Owner: "TWR-X", Ready: true, Departures: 2},
		},
	}

	path := filepath.Join(t.TempDir(), "roster.msgpack.zst")
	require.NoError(t, SaveFile(path, s))

	got, err := LoadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not a snapshot")))
	assert.Error(t, err)
}
