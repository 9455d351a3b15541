package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordTick("TWR-A", 0.001, false)
	m.RecordTick("TWR-A", 0.002, true)
	m.RecordHandoff("CCR", "APP-A")
	m.RecordLandingRequest("TWR-A", true)
	m.RecordLandingRequest("TWR-A", false)
	m.RecordLandingRequest("TWR-A", false)
	m.RecordConflicts(2)
	m.RecordConflicts(0)
	m.SetRunwayOccupied("TWR-A", true)
	m.SetRosterSize("CCR", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticks.WithLabelValues("TWR-A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tickFaults.WithLabelValues("TWR-A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handoffs.WithLabelValues("CCR", "APP-A")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.landingRequests.WithLabelValues("TWR-A", "denied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.conflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runwayOccupied.WithLabelValues("TWR-A")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rosterSize.WithLabelValues("CCR")))

	_, err = New(reg)
	assert.Error(t, err, "registering twice on one registry must fail")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTick("x", 1, true)
		m.SetRosterSize("x", 1)
		m.RecordMessage("x", "INFO")
		m.RecordHandoff("x", "y")
		m.RecordLandingRequest("x", true)
		m.RecordAdmissionRejected("x")
		m.RecordConflicts(1)
		m.SetRunwayOccupied("x", true)
		m.RecordPhaseTransition("CRUISE", "DESCENT")
	})
}
