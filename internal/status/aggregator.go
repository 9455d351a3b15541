package status

import (
	"sort"
	"sync"
	"time"

	"github.com/brunoga/deep"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/controller"
	"github.com/yegors/atcsim/internal/simctx"
	"github.com/yegors/atcsim/pkg/logger"
)

// MessageCounter reports stored message counts by type
type MessageCounter interface {
	CountMessages() (map[string]int, error)
}

// Aggregator collects controller state into airspace status boards
type Aggregator struct {
	regional   *controller.Regional
	approaches []*controller.Approach
	towers     []*controller.Tower
	fleet      *aircraft.Fleet
	sim        *simctx.Context
	messages   MessageCounter
	logger     *logger.Logger

	mu   sync.Mutex
	last *Status
}

// NewAggregator creates a new status aggregator. messages may be nil.
func NewAggregator(
	regional *controller.Regional,
	approaches []*controller.Approach,
	towers []*controller.Tower,
	fleet *aircraft.Fleet,
	sim *simctx.Context,
	messages MessageCounter,
	logger *logger.Logger,
) *Aggregator {
	return &Aggregator{
		regional:   regional,
		approaches: approaches,
		towers:     towers,
		fleet:      fleet,
		sim:        sim,
		messages:   messages,
		logger:     logger.Named("status-aggregator"),
	}
}

// Collect builds a fresh airspace status
func (sa *Aggregator) Collect(opts Options) *Status {
	now := sa.sim.Clock.Now()
	status := &Status{
		Timestamp: time.Now().UTC(),
		RunID:     sa.sim.RunID,
		SimTime:   now,
		Elapsed:   now.Sub(sa.sim.Start),
		Phases:    make(map[string]int),
	}

	for _, s := range sa.fleet.Snapshots() {
		status.Phases[s.Phase.String()]++
		status.TotalAircraft++
	}

	if sa.regional != nil {
		status.Regional = sa.regionalBoard(opts)
	}
	for _, app := range sa.approaches {
		status.Approaches = append(status.Approaches, sa.approachBoard(app, opts))
	}
	for _, t := range sa.towers {
		status.Towers = append(status.Towers, sa.towerBoard(t, opts))
	}

	if opts.IncludeMessages && sa.messages != nil {
		counts, err := sa.messages.CountMessages()
		if err != nil {
			// Continue without counts rather than failing the whole status
			sa.logger.Error("Failed to count messages", logger.Error(err))
		}
		status.MessageCounts = counts
	}

	sa.mu.Lock()
	sa.last = status
	sa.mu.Unlock()

	sa.logger.Debug("Status collected",
		logger.Int("aircraft", status.TotalAircraft),
		logger.Int("conflicts", len(status.Regional.Conflicts)))
	return status
}

// Last returns a copy of the most recently collected status, or nil
func (sa *Aggregator) Last() *Status {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	if sa.last == nil {
		return nil
	}
	return deep.MustCopy(sa.last)
}

func (sa *Aggregator) regionalBoard(opts Options) RegionalBoard {
	enRoute := sa.regional.Roster()
	sort.Slice(enRoute, func(i, j int) bool { return enRoute[i].ID < enRoute[j].ID })
	if opts.MaxEnRoute > 0 && len(enRoute) > opts.MaxEnRoute {
		enRoute = enRoute[:opts.MaxEnRoute]
	}
	return RegionalBoard{
		Name:      sa.regional.Name(),
		Running:   sa.regional.Running(),
		Airports:  sa.regional.Airports(),
		Saturated: sa.regional.Saturated(),
		Routes:    sa.regional.Routes(),
		EnRoute:   enRoute,
		Conflicts: sa.regional.LastConflicts(),
		Alerts:    sa.regional.ProximityAlerts(),
	}
}

func (sa *Aggregator) approachBoard(app *controller.Approach, opts Options) ApproachBoard {
	board := ApproachBoard{
		Name:    app.Name(),
		Airport: app.Airport(),
		Running: app.Running(),
		Center:  app.Center(),
		Radius:  app.Radius(),
	}
	for i, id := range app.Queue() {
		entry := QueueEntry{Position: i, ID: id, Holding: app.HoldingFor(i)}
		if a, ok := sa.fleet.Get(id); ok {
			entry.Aircraft = a.Snapshot()
		}
		board.Queue = append(board.Queue, entry)
	}
	if opts.IncludeRosters {
		board.Roster = app.Roster()
	}
	return board
}

func (sa *Aggregator) towerBoard(t *controller.Tower, opts Options) TowerBoard {
	board := TowerBoard{
		Name:           t.Name(),
		Airport:        t.Airport(),
		Running:        t.Running(),
		Runway:         t.Runway(),
		Stands:         t.Stands(),
		DepartureQueue: t.DepartureQueue(),
	}
	for _, s := range board.Stands {
		if s.Occupant == "" {
			board.FreeStands++
		}
	}
	if opts.IncludeRosters {
		board.Roster = t.Roster()
	}
	return board
}
