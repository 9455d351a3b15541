package aircraft

import "fmt"

// Params holds the flight-model constants. Distances and altitudes are in
// meters, speeds in m/s, rates in m/s, accelerations in m/s², durations
// in simulated seconds.
type Params struct {
	TaxiSpeed       float64 `toml:"taxi_speed"`
	TaxiOutDuration float64 `toml:"taxi_out_seconds"`

	TakeoffAcceleration float64 `toml:"takeoff_acceleration"`
	TakeoffClimbRate    float64 `toml:"takeoff_climb_rate"`
	ClimbThreshold      float64 `toml:"climb_threshold"`

	CruiseAltitude    float64 `toml:"cruise_altitude"`
	CruiseSpeed       float64 `toml:"cruise_speed"`
	ClimbRate         float64 `toml:"climb_rate"`
	ClimbAcceleration float64 `toml:"climb_acceleration"`

	DescentDistance       float64 `toml:"descent_distance"`
	DescentRate           float64 `toml:"descent_rate"`
	DescentDeceleration   float64 `toml:"descent_deceleration"`
	DescentMinSpeedFactor float64 `toml:"descent_min_speed_factor"`

	// GlideSlope caps altitude at GlideSlope x remaining distance while
	// descending, approaching and landing.
	GlideSlope           float64 `toml:"glide_slope"`
	ApproachAltitude     float64 `toml:"approach_altitude"`
	ApproachRate         float64 `toml:"approach_rate"`
	ApproachMinSpeed     float64 `toml:"approach_min_speed"`
	ApproachDeceleration float64 `toml:"approach_deceleration"`

	LandingAltitude     float64 `toml:"landing_altitude"`
	LandingRate         float64 `toml:"landing_rate"`
	LandingDeceleration float64 `toml:"landing_deceleration"`

	FinalDistance   float64 `toml:"final_distance"`
	ArrivalDistance float64 `toml:"arrival_distance"`

	FirstDwell             float64 `toml:"first_dwell_seconds"`
	MinDwell               float64 `toml:"min_dwell_seconds"`
	MaxDwell               float64 `toml:"max_dwell_seconds"`
	MinDestinationDistance float64 `toml:"min_destination_distance"`

	// HoldingLead is how far ahead on the holding circle, in degrees, the
	// aircraft steers.
	HoldingLead float64 `toml:"holding_lead_degrees"`
}

func DefaultParams() Params {
	return Params{
		TaxiSpeed:       10,
		TaxiOutDuration: 10,

		TakeoffAcceleration: 3,
		TakeoffClimbRate:    15,
		ClimbThreshold:      200,

		CruiseAltitude:    10000,
		CruiseSpeed:       250,
		ClimbRate:         50,
		ClimbAcceleration: 2,

		DescentDistance:       150000,
		DescentRate:           40,
		DescentDeceleration:   1,
		DescentMinSpeedFactor: 0.7,

		GlideSlope:           0.06,
		ApproachAltitude:     1000,
		ApproachRate:         20,
		ApproachMinSpeed:     80,
		ApproachDeceleration: 2,

		LandingAltitude:     100,
		LandingRate:         10,
		LandingDeceleration: 3,

		FinalDistance:   5000,
		ArrivalDistance: 500,

		FirstDwell:             5,
		MinDwell:               10,
		MaxDwell:               20,
		MinDestinationDistance: 50000,

		HoldingLead: 10,
	}
}

// Validate rejects parameter sets the flight model cannot run with.
func (p Params) Validate() error {
	positive := map[string]float64{
		"taxi_speed":         p.TaxiSpeed,
		"cruise_speed":       p.CruiseSpeed,
		"cruise_altitude":    p.CruiseAltitude,
		"climb_rate":         p.ClimbRate,
		"descent_rate":       p.DescentRate,
		"approach_rate":      p.ApproachRate,
		"landing_rate":       p.LandingRate,
		"approach_min_speed": p.ApproachMinSpeed,
		"arrival_distance":   p.ArrivalDistance,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("aircraft.%s must be positive, got %v", name, v)
		}
	}
	if p.ClimbThreshold >= p.CruiseAltitude {
		return fmt.Errorf("aircraft.climb_threshold (%v) must be below cruise_altitude (%v)", p.ClimbThreshold, p.CruiseAltitude)
	}
	if p.LandingAltitude >= p.ApproachAltitude {
		return fmt.Errorf("aircraft.landing_altitude (%v) must be below approach_altitude (%v)", p.LandingAltitude, p.ApproachAltitude)
	}
	if p.FinalDistance >= p.DescentDistance {
		return fmt.Errorf("aircraft.final_distance (%v) must be below descent_distance (%v)", p.FinalDistance, p.DescentDistance)
	}
	if p.MinDwell > p.MaxDwell {
		return fmt.Errorf("aircraft.min_dwell_seconds (%v) exceeds max_dwell_seconds (%v)", p.MinDwell, p.MaxDwell)
	}
	if p.DescentMinSpeedFactor <= 0 || p.DescentMinSpeedFactor > 1 {
		return fmt.Errorf("aircraft.descent_min_speed_factor must be in (0, 1], got %v", p.DescentMinSpeedFactor)
	}
	return nil
}
