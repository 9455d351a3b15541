package geo

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

const METERS_PER_KM = 1000.0

// Position is a point in the simulation plane. X and Y are meters east and
// north of the map origin; Altitude is meters above ground.
type Position struct {
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Altitude float64 `json:"altitude" msgpack:"altitude"`
}

// NewPosition builds a position from kilometer coordinates and an altitude in meters.
func NewPosition(xKm, yKm, altitude float64) Position {
	return Position{X: xKm * METERS_PER_KM, Y: yKm * METERS_PER_KM, Altitude: altitude}
}

// Distance returns the horizontal (2D) distance in meters.
func (p Position) Distance(o Position) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// Distance3D includes the altitude difference.
func (p Position) Distance3D(o Position) float64 {
	dx, dy, dz := o.X-p.X, o.Y-p.Y, o.Altitude-p.Altitude
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// VerticalDistance returns the absolute altitude difference in meters.
func (p Position) VerticalDistance(o Position) float64 {
	return math.Abs(p.Altitude - o.Altitude)
}

// HeadingTo returns the heading in degrees from p to o, measured
// counterclockwise from the +X axis and normalized to [0, 360).
func (p Position) HeadingTo(o Position) float64 {
	return NormalizeHeading(math.Atan2(o.Y-p.Y, o.X-p.X) * 180 / math.Pi)
}

// Advance moves the position distance meters along heading.
func (p Position) Advance(heading, distance float64) Position {
	rad := heading * math.Pi / 180
	p.X += distance * math.Cos(rad)
	p.Y += distance * math.Sin(rad)
	return p
}

// Midpoint returns the horizontal midpoint at the given altitude.
func Midpoint(a, b Position, altitude float64) Position {
	return Position{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Altitude: altitude}
}

// OnCircle returns the point at angle degrees on the circle of the given
// radius around center, keeping center's altitude.
func OnCircle(center Position, radius, angle float64) Position {
	rad := angle * math.Pi / 180
	return Position{
		X:        center.X + radius*math.Cos(rad),
		Y:        center.Y + radius*math.Sin(rad),
		Altitude: center.Altitude,
	}
}

func (p Position) String() string {
	return fmt.Sprintf("(%.1f km, %.1f km, %.0f m)", p.X/METERS_PER_KM, p.Y/METERS_PER_KM, p.Altitude)
}

// NormalizeHeading maps any angle in degrees into [0, 360).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// Clamp restricts v to [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Approach moves v toward target by at most step, never overshooting.
func Approach(v, target, step float64) float64 {
	if v < target {
		return math.Min(v+step, target)
	}
	return math.Max(v-step, target)
}
