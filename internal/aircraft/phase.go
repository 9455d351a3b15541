package aircraft

import (
	"fmt"
	"strings"
)

// Phase is an aircraft's flight phase.
type Phase int

const (
	Parked Phase = iota
	TaxiOut
	Takeoff
	Climb
	Cruise
	Descent
	Approach
	Landing
	TaxiIn
)

var phaseNames = [...]string{
	Parked:   "PARKED",
	TaxiOut:  "TAXI_OUT",
	Takeoff:  "TAKEOFF",
	Climb:    "CLIMB",
	Cruise:   "CRUISE",
	Descent:  "DESCENT",
	Approach: "APPROACH",
	Landing:  "LANDING",
	TaxiIn:   "TAXI_IN",
}

// transitions lists the legal successors of every phase. Besides the
// cyclic order it holds the short-circuits to PARKED taken when the
// destination is reached early, and CRUISE -> APPROACH, which approach
// control applies when a cruising aircraft enters its zone.
var transitions = map[Phase][]Phase{
	Parked:   {TaxiOut},
	TaxiOut:  {Takeoff},
	Takeoff:  {Climb},
	Climb:    {Cruise},
	Cruise:   {Descent, Approach, Parked},
	Descent:  {Approach, Parked},
	Approach: {Landing, Parked},
	Landing:  {TaxiIn, Parked},
	TaxiIn:   {Parked},
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p >= Parked && p <= TaxiIn
}

// Airborne reports whether the aircraft is off the ground in this phase.
func (p Phase) Airborne() bool {
	return p >= Takeoff && p <= Landing
}

// Enroute reports whether distance to destination must not grow in this phase.
func (p Phase) Enroute() bool {
	return p == Cruise || p == Descent
}

func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase accepts a phase name in any case.
func ParsePhase(s string) (Phase, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// ValidTransition reports whether from -> to is in the transition table.
func ValidTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Successors returns the legal next phases of p.
func Successors(p Phase) []Phase {
	return append([]Phase(nil), transitions[p]...)
}
