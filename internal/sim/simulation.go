package sim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/config"
	"github.com/yegors/atcsim/internal/controller"
	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/message"
	"github.com/yegors/atcsim/internal/metrics"
	"github.com/yegors/atcsim/internal/roster"
	"github.com/yegors/atcsim/internal/simctx"
	"github.com/yegors/atcsim/internal/status"
	"github.com/yegors/atcsim/internal/storage/sqlite"
	"github.com/yegors/atcsim/pkg/logger"
)

// ErrNotManual is returned by Step on a simulation driven by the wall clock.
var ErrNotManual = errors.New("simulation is not manually clocked")

// Kind names the tier of a controller.
type Kind string

const (
	KindRegional Kind = "regional"
	KindApproach Kind = "approach"
	KindTower    Kind = "tower"
)

// ControllerInfo describes one controller.
type ControllerInfo struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Airport string `json:"airport,omitempty"`
	Running bool   `json:"running"`
	Roster  int    `json:"roster"`
}

// Options carries the collaborators a simulation does not build itself.
type Options struct {
	// Registerer receives the controller metrics; nil disables metrics.
	Registerer prometheus.Registerer
	// Sinks receive every controller message in addition to the
	// configured file and SQLite sinks.
	Sinks []message.Sink
	// ManualStart, when set, drives the simulation with a manual clock
	// starting at that instant; time only moves through Step.
	ManualStart time.Time
}

// Simulation owns the fleet, the controller network and the physics
// scheduler.
type Simulation struct {
	cfg    *config.Config
	logger *logger.Logger

	ctx     *simctx.Context
	manual  *simctx.ManualClock
	fleet   *aircraft.Fleet
	tracker *aircraft.PhaseTracker
	metrics *metrics.Metrics

	db       *sql.DB
	messages *sqlite.MessageStorage
	fileSink *message.FileSink

	regional   *controller.Regional
	approaches map[string]*controller.Approach
	towers     map[string]*controller.Tower
	// controllers lists every controller, regional first then one
	// approach and tower per airport in configuration order.
	controllers []controllerEntry
	aggregator  *status.Aggregator

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type controllerEntry struct {
	actor   *controller.Actor
	kind    Kind
	airport string
}

// New builds a simulation from configuration. Nothing runs until Start.
func New(cfg *config.Config, opts Options, log *logger.Logger) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Simulation{
		cfg:        cfg,
		logger:     log.Named("simulation"),
		fleet:      aircraft.NewFleet(),
		approaches: make(map[string]*controller.Approach),
		towers:     make(map[string]*controller.Tower),
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.ManualStart.IsZero() {
		s.ctx = simctx.New(seed, cfg.Simulation.TimeScale)
	} else {
		s.ctx, s.manual = simctx.NewManual(seed, opts.ManualStart)
	}
	s.logger = s.logger.WithRunID(s.ctx.RunID)

	if opts.Registerer != nil {
		m, err := metrics.New(opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		s.metrics = m
	}

	sinks, err := s.openSinks(opts.Sinks)
	if err != nil {
		s.closeSinks()
		return nil, err
	}

	s.tracker = aircraft.NewPhaseTracker(func(c aircraft.PhaseChange) {
		if c.Type == "transition" {
			s.metrics.RecordPhaseTransition(c.From.String(), c.To.String())
		}
	}, log)

	env := controller.Env{Fleet: s.fleet, Sim: s.ctx, Sink: sinks, Metrics: s.metrics}
	s.build(env, log)

	s.aggregator = status.NewAggregator(s.regional, s.approachList(), s.towerList(), s.fleet, s.ctx, s.messageCounter(), log)

	s.logger.Info("Simulation built",
		logger.Int64("seed", seed),
		logger.Float64("time_scale", cfg.Simulation.TimeScale),
		logger.Int("airports", len(cfg.Airports)),
		logger.Int("controllers", len(s.controllers)))
	return s, nil
}

func (s *Simulation) openSinks(extra []message.Sink) (message.MultiSink, error) {
	sinks := message.MultiSink{}
	storage := s.cfg.Storage

	if storage.MessageLogPath != "" {
		fs, err := message.NewFileSink(message.FileSinkConfig{
			Path:       storage.MessageLogPath,
			MaxSizeMB:  storage.MessageLogMaxSizeMB,
			MaxBackups: storage.MessageLogMaxBackups,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open message log: %w", err)
		}
		s.fileSink = fs
		sinks = append(sinks, fs)
	}

	if storage.SQLitePath != "" {
		db, err := sqlite.Open(storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.db = db
		ms, err := sqlite.NewMessageStorage(db, s.ctx.RunID, s.logger)
		if err != nil {
			return nil, err
		}
		s.messages = ms
		sinks = append(sinks, ms)
	}

	return append(sinks, extra...), nil
}

func (s *Simulation) closeSinks() error {
	var errs []error
	if s.fileSink != nil {
		errs = append(errs, s.fileSink.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// build creates the regional center and one approach and tower per
// airport, wires them together and registers routes and flights.
func (s *Simulation) build(env controller.Env, log *logger.Logger) {
	cfg := s.cfg
	interval := cfg.Simulation.TickInterval()

	params := cfg.Aircraft
	s.regional = controller.NewRegional(controller.RegionalConfig{
		Name:                 cfg.Regional.Name,
		CruiseAltitude:       params.CruiseAltitude,
		HorizontalSeparation: cfg.Regional.HorizontalSeparation,
		VerticalSeparation:   cfg.Regional.VerticalSeparation,
		HandoffRadius:        cfg.Regional.HandoffRadius,
		AirportMatchRadius:   cfg.Regional.AirportMatchRadius,
		ProximityDistance:    cfg.Regional.ProximityDistance,
		ResolveConflicts:     cfg.Simulation.ResolveConflicts,
		ResolutionClimb:      cfg.Regional.ResolutionClimb,
		TickInterval:         interval,
	}, &params, s.tracker, env, log)
	s.controllers = append(s.controllers, controllerEntry{actor: s.regional.Actor, kind: KindRegional})

	for _, ap := range cfg.Airports {
		pos := geo.NewPosition(ap.XKm, ap.YKm, 0)
		app := controller.NewApproach(controller.ApproachConfig{
			Name:                "APP-" + ap.Name,
			Airport:             ap.Name,
			Center:              pos,
			Radius:              cfg.Approach.Radius,
			HoldingBaseAltitude: cfg.Approach.HoldingBaseAltitude,
			HoldingAltitudeStep: cfg.Approach.HoldingAltitudeStep,
			HoldingRadiusFactor: cfg.Approach.HoldingRadiusFactor,
			HoldingRadiusStep:   cfg.Approach.HoldingRadiusStep,
			HoldingMinRadius:    cfg.Approach.HoldingMinRadius,
			DestinationRadius:   cfg.Approach.DestinationRadius,
			ReleaseDistance:     cfg.Approach.ReleaseDistance,
			TickInterval:        interval,
		}, env, log)

		stands := cfg.Tower.Stands
		if ap.Stands > 0 {
			stands = ap.Stands
		}
		tower := controller.NewTower(controller.TowerConfig{
			Name:            "TWR-" + ap.Name,
			Airport:         ap.Name,
			Position:        pos,
			Stands:          stands,
			StandSpacing:    cfg.Tower.StandSpacing,
			LandingDuration: cfg.Tower.LandingDuration(),
			TakeoffDuration: cfg.Tower.TakeoffDuration(),
			TickInterval:    interval,
		}, env, log)

		app.SetTower(tower)
		app.SetRegional(s.regional)
		tower.SetApproach(app)
		s.regional.RegisterAirport(ap.Name, pos, app, ap.Capacity)

		s.approaches[ap.Name] = app
		s.towers[ap.Name] = tower
		s.controllers = append(s.controllers,
			controllerEntry{actor: app.Actor, kind: KindApproach, airport: ap.Name},
			controllerEntry{actor: tower.Actor, kind: KindTower, airport: ap.Name})
	}

	for _, r := range cfg.Routes {
		// Validated against the airport list already.
		_ = s.regional.RegisterRoute(r.Origin, r.Destination)
	}
	s.LoadFlights(cfg.Flights)
}

// LoadFlights creates each flight through the regional center and returns
// how many were created. Rejections are logged and skipped.
func (s *Simulation) LoadFlights(flights []roster.Flight) int {
	created := 0
	for _, f := range flights {
		if err := s.regional.CreateFlight(f.ID, f.Origin, f.Destination); err != nil {
			s.logger.Warn("Skipping flight", logger.String("aircraft", f.ID), logger.Error(err))
			continue
		}
		created++
	}
	return created
}

// CreateFlight creates a flight through the regional center.
func (s *Simulation) CreateFlight(id, origin, destination string) error {
	return s.regional.CreateFlight(id, origin, destination)
}

// Start starts every controller and the physics scheduler. Starting a
// running simulation is a no-op.
func (s *Simulation) Start() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cancel != nil {
		return nil
	}

	for _, c := range s.controllers {
		if err := c.actor.Start(); err != nil {
			return fmt.Errorf("failed to start %s: %w", c.actor.Name(), err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go s.runPhysics(ctx, done)

	s.logger.Info("Simulation started")
	return nil
}

// Stop stops the physics scheduler and every controller, including any
// started on their own. A stopped simulation can be started again.
func (s *Simulation) Stop() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	running := s.cancel != nil
	if running {
		s.cancel()
		<-s.done
		s.cancel, s.done = nil, nil
	}

	var g errgroup.Group
	for _, c := range s.controllers {
		g.Go(c.actor.Stop)
	}
	err := g.Wait()
	if !running {
		return err
	}

	s.logger.Info("Simulation stopped",
		logger.Duration("simulated", s.ctx.Elapsed()),
		logger.Int("aircraft", s.fleet.Len()))
	return err
}

// Close stops the simulation and closes the message sinks.
func (s *Simulation) Close() error {
	err := s.Stop()

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if cerr := s.closeSinks(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	s.fileSink, s.db = nil, nil
	return err
}

// Running reports whether the physics scheduler is running.
func (s *Simulation) Running() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.cancel != nil
}

// Run starts the simulation and closes it when ctx is done.
func (s *Simulation) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// runPhysics advances the fleet by the simulated time elapsed since the
// previous update, capped at the configured maximum step.
func (s *Simulation) runPhysics(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Simulation.PhysicsStep())
	defer ticker.Stop()

	last := s.ctx.Clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.ctx.Clock.Now()
			s.advance(now.Sub(last).Seconds())
			last = now
		}
	}
}

func (s *Simulation) advance(dt float64) {
	if dt > s.cfg.Simulation.MaxStepSeconds {
		dt = s.cfg.Simulation.MaxStepSeconds
	}
	s.fleet.Update(dt)
}

// Step advances a manually clocked simulation by d in one-second physics
// increments, ticking every controller after each increment.
func (s *Simulation) Step(d time.Duration) error {
	if s.manual == nil {
		return ErrNotManual
	}
	for d > 0 {
		inc := time.Second
		if d < inc {
			inc = d
		}
		s.advance(inc.Seconds())
		s.manual.Advance(inc)
		for _, c := range s.controllers {
			c.actor.TickOnce()
		}
		d -= inc
	}
	return nil
}

// Controllers describes every controller in network order.
func (s *Simulation) Controllers() []ControllerInfo {
	out := make([]ControllerInfo, 0, len(s.controllers))
	for _, c := range s.controllers {
		out = append(out, ControllerInfo{
			Name:    c.actor.Name(),
			Kind:    c.kind,
			Airport: c.airport,
			Running: c.actor.Running(),
			Roster:  len(c.actor.RosterIDs()),
		})
	}
	return out
}

// Controller looks a controller up by name.
func (s *Simulation) Controller(name string) (*controller.Actor, bool) {
	for _, c := range s.controllers {
		if c.actor.Name() == name {
			return c.actor, true
		}
	}
	return nil, false
}

// Aircraft returns the state of one aircraft.
func (s *Simulation) Aircraft(id string) (aircraft.Snapshot, bool) {
	a, ok := s.fleet.Get(id)
	if !ok {
		return aircraft.Snapshot{}, false
	}
	return a.Snapshot(), true
}

// AllAircraft returns every aircraft, ordered by id.
func (s *Simulation) AllAircraft() []aircraft.Snapshot {
	return s.fleet.Snapshots()
}

// RemoveFlight takes an en-route aircraft out of the simulation. Aircraft
// under approach or tower control hold airport resources and cannot be
// removed.
func (s *Simulation) RemoveFlight(id string) error {
	if !s.fleet.Contains(id) {
		return fmt.Errorf("%w: %s", controller.ErrUnknownAircraft, id)
	}
	if !s.regional.RemoveAircraft(id) {
		return fmt.Errorf("%w: %s", controller.ErrNotEnRoute, id)
	}
	s.fleet.Remove(id)
	s.logger.Info("Flight removed", logger.String("aircraft", id))
	return nil
}

// DeclareEmergency gives an aircraft queued at any approach priority.
func (s *Simulation) DeclareEmergency(id string) error {
	for _, name := range s.airportNames() {
		err := s.approaches[name].DeclareEmergency(id)
		if !errors.Is(err, controller.ErrNotQueued) {
			return err
		}
	}
	return fmt.Errorf("%w: %s", controller.ErrNotQueued, id)
}

// Status collects the airspace status boards.
func (s *Simulation) Status(opts status.Options) *status.Status {
	return s.aggregator.Collect(opts)
}

// LastStatus returns a copy of the most recently collected status boards,
// or nil before the first Status call.
func (s *Simulation) LastStatus() *status.Status {
	return s.aggregator.Last()
}

// Messages returns the SQLite message store, or nil when disabled.
func (s *Simulation) Messages() *sqlite.MessageStorage { return s.messages }

func (s *Simulation) Regional() *controller.Regional { return s.regional }

func (s *Simulation) Approach(airport string) (*controller.Approach, bool) {
	app, ok := s.approaches[airport]
	return app, ok
}

func (s *Simulation) Tower(airport string) (*controller.Tower, bool) {
	t, ok := s.towers[airport]
	return t, ok
}

func (s *Simulation) Tracker() *aircraft.PhaseTracker { return s.tracker }

func (s *Simulation) Context() *simctx.Context { return s.ctx }

// Snapshot captures the fleet for export.
func (s *Simulation) Snapshot() roster.Snapshot {
	return roster.Snapshot{
		RunID:    s.ctx.RunID,
		SimTime:  s.ctx.Clock.Now(),
		Aircraft: s.fleet.Snapshots(),
	}
}

// Restore adds the aircraft of a snapshot to the fleet, each under the
// controller that owned it; aircraft whose owner no longer exists go to
// the regional center. Aircraft already in the fleet are skipped.
func (s *Simulation) Restore(snap roster.Snapshot) (int, error) {
	params := s.cfg.Aircraft
	candidates := s.destinations()

	restored := 0
	var errs []error
	for _, as := range snap.Aircraft {
		if s.fleet.Contains(as.ID) {
			continue
		}
		a, err := aircraft.Restore(as, aircraft.Config{
			Params:     &params,
			Rand:       s.ctx.Rand,
			Candidates: candidates,
			Listener:   s.tracker,
		})
		if err == nil {
			err = s.fleet.Add(a)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("aircraft %s: %w", as.ID, err))
			continue
		}

		owner, ok := s.Controller(as.Owner)
		if !ok {
			owner = s.regional.Actor
		}
		owner.AddAircraft(as.ID)
		restored++
	}

	s.logger.Info("Roster restored",
		logger.String("from_run", snap.RunID),
		logger.Int("restored", restored),
		logger.Int("failed", len(errs)))
	return restored, errors.Join(errs...)
}

func (s *Simulation) destinations() []aircraft.Destination {
	out := make([]aircraft.Destination, 0, len(s.cfg.Airports))
	for _, ap := range s.cfg.Airports {
		out = append(out, aircraft.Destination{Name: ap.Name, Position: geo.NewPosition(ap.XKm, ap.YKm, 0)})
	}
	return out
}

func (s *Simulation) airportNames() []string {
	names := make([]string, 0, len(s.approaches))
	for name := range s.approaches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Simulation) approachList() []*controller.Approach {
	out := make([]*controller.Approach, 0, len(s.approaches))
	for _, name := range s.airportNames() {
		out = append(out, s.approaches[name])
	}
	return out
}

func (s *Simulation) towerList() []*controller.Tower {
	out := make([]*controller.Tower, 0, len(s.towers))
	for _, name := range s.airportNames() {
		out = append(out, s.towers[name])
	}
	return out
}

// messageCounter avoids handing the aggregator a typed nil.
func (s *Simulation) messageCounter() status.MessageCounter {
	if s.messages == nil {
		return nil
	}
	return s.messages
}
