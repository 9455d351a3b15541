package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "atcsim"

// Metrics holds the simulation collectors. All methods are safe to call
// on a nil *Metrics, which records nothing.
type Metrics struct {
	ticks             *prometheus.CounterVec
	tickFaults        *prometheus.CounterVec
	tickDuration      *prometheus.HistogramVec
	rosterSize        *prometheus.GaugeVec
	messages          *prometheus.CounterVec
	handoffs          *prometheus.CounterVec
	landingRequests   *prometheus.CounterVec
	admissionRejected *prometheus.CounterVec
	conflicts         prometheus.Counter
	runwayOccupied    *prometheus.GaugeVec
	phaseTransitions  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "ticks_total",
			Help:      "Count of controller ticks run.",
		}, []string{"controller"}),
		tickFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "tick_faults_total",
			Help:      "Count of controller ticks that returned an error or panicked.",
		}, []string{"controller"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock time spent in a controller tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}, []string{"controller"}),
		rosterSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "roster_size",
			Help:      "Number of aircraft owned by a controller.",
		}, []string{"controller"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Count of messages sent by controllers.",
		}, []string{"controller", "type"}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Count of aircraft ownership transfers between controllers.",
		}, []string{"from", "to"}),
		landingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tower",
			Name:      "landing_requests_total",
			Help:      "Count of landing requests by outcome.",
		}, []string{"tower", "result"}),
		admissionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regional",
			Name:      "admission_rejections_total",
			Help:      "Count of flights rejected by admission control.",
		}, []string{"airport"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regional",
			Name:      "separation_conflicts_total",
			Help:      "Count of aircraft pairs detected below separation minima.",
		}),
		runwayOccupied: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tower",
			Name:      "runway_occupied",
			Help:      "1 when the tower's runway is occupied.",
		}, []string{"tower"}),
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aircraft",
			Name:      "phase_transitions_total",
			Help:      "Count of aircraft phase transitions.",
		}, []string{"from", "to"}),
	}

	for _, c := range []prometheus.Collector{
		m.ticks, m.tickFaults, m.tickDuration, m.rosterSize, m.messages, m.handoffs,
		m.landingRequests, m.admissionRejected, m.conflicts, m.runwayOccupied, m.phaseTransitions,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordTick(controller string, seconds float64, faulted bool) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(controller).Inc()
	m.tickDuration.WithLabelValues(controller).Observe(seconds)
	if faulted {
		m.tickFaults.WithLabelValues(controller).Inc()
	}
}

func (m *Metrics) SetRosterSize(controller string, n int) {
	if m == nil {
		return
	}
	m.rosterSize.WithLabelValues(controller).Set(float64(n))
}

func (m *Metrics) RecordMessage(controller, typ string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(controller, typ).Inc()
}

func (m *Metrics) RecordHandoff(from, to string) {
	if m == nil {
		return
	}
	m.handoffs.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordLandingRequest(tower string, granted bool) {
	if m == nil {
		return
	}
	result := "denied"
	if granted {
		result = "granted"
	}
	m.landingRequests.WithLabelValues(tower, result).Inc()
}

func (m *Metrics) RecordAdmissionRejected(airport string) {
	if m == nil {
		return
	}
	m.admissionRejected.WithLabelValues(airport).Inc()
}

func (m *Metrics) RecordConflicts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.conflicts.Add(float64(n))
}

func (m *Metrics) SetRunwayOccupied(tower string, occupied bool) {
	if m == nil {
		return
	}
	v := 0.0
	if occupied {
		v = 1
	}
	m.runwayOccupied.WithLabelValues(tower).Set(v)
}

func (m *Metrics) RecordPhaseTransition(from, to string) {
	if m == nil {
		return
	}
	m.phaseTransitions.WithLabelValues(from, to).Inc()
}
