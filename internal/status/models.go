package status

import (
	"time"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/controller"
	"github.com/yegors/atcsim/internal/geo"
)

// Options selects what an airspace status includes
type Options struct {
	IncludeRosters  bool
	IncludeMessages bool
	// MaxEnRoute caps the en-route list; 0 means no cap
	MaxEnRoute int
}

// Status is a point-in-time picture of the whole airspace
type Status struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	SimTime   time.Time     `json:"sim_time"`
	Elapsed   time.Duration `json:"elapsed"`

	Regional   RegionalBoard   `json:"regional"`
	Approaches []ApproachBoard `json:"approaches"`
	Towers     []TowerBoard    `json:"towers"`

	// Phases counts every aircraft in the fleet by phase
	Phases        map[string]int `json:"phases"`
	TotalAircraft int            `json:"total_aircraft"`

	MessageCounts map[string]int `json:"message_counts,omitempty"`
}

// RegionalBoard is the en-route center's view: airport occupancy, flights
// under its control and current alerts
type RegionalBoard struct {
	Name      string                   `json:"name"`
	Running   bool                     `json:"running"`
	Airports  []controller.AirportInfo `json:"airports"`
	Saturated []string                 `json:"saturated"`
	Routes    []controller.Route       `json:"routes"`
	EnRoute   []aircraft.Snapshot      `json:"en_route"`
	Conflicts []controller.Conflict    `json:"conflicts"`
	Alerts    []controller.Conflict    `json:"alerts"`
}

// QueueEntry is one aircraft in an approach landing sequence
type QueueEntry struct {
	Position int               `json:"position"`
	ID       string            `json:"id"`
	Holding  aircraft.Holding  `json:"holding"`
	Aircraft aircraft.Snapshot `json:"aircraft"`
}

// ApproachBoard is an approach controller's sequence
type ApproachBoard struct {
	Name    string              `json:"name"`
	Airport string              `json:"airport"`
	Running bool                `json:"running"`
	Center  geo.Position        `json:"center"`
	Radius  float64             `json:"radius"`
	Queue   []QueueEntry        `json:"queue"`
	Roster  []aircraft.Snapshot `json:"roster,omitempty"`
}

// TowerBoard is a tower's runway and stand board
type TowerBoard struct {
	Name           string              `json:"name"`
	Airport        string              `json:"airport"`
	Running        bool                `json:"running"`
	Runway         controller.Runway   `json:"runway"`
	Stands         []controller.Stand  `json:"stands"`
	FreeStands     int                 `json:"free_stands"`
	DepartureQueue []string            `json:"departure_queue"`
	Roster         []aircraft.Snapshot `json:"roster,omitempty"`
}
