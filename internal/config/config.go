package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/roster"
	"github.com/yegors/atcsim/pkg/logger"
)

// Config represents the application configuration
type Config struct {
	Logging    LoggingConfig    `toml:"logging"`
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Simulation SimulationConfig `toml:"simulation"`
	Aircraft   aircraft.Params  `toml:"aircraft"`
	Tower      TowerConfig      `toml:"tower"`
	Approach   ApproachConfig   `toml:"approach"`
	Regional   RegionalConfig   `toml:"regional"`
	Airports   []AirportConfig  `toml:"airports"`
	Routes     []RouteConfig    `toml:"routes"`
	Flights    []roster.Flight  `toml:"flights"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// ServerConfig represents the API server configuration
type ServerConfig struct {
	Enabled             bool     `toml:"enabled"`
	Host                string   `toml:"host"`
	Port                int      `toml:"port"`
	MaxConnections      int      `toml:"max_connections"`
	ReadTimeoutSeconds  int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds"`
	CORSAllowedOrigins  []string `toml:"cors_allowed_origins"`
	MetricsEnabled      bool     `toml:"metrics_enabled"`
}

// StorageConfig represents the message persistence configuration. Empty
// paths disable the corresponding sink.
type StorageConfig struct {
	SQLitePath           string `toml:"sqlite_path"`
	MessageLogPath       string `toml:"message_log_path"`
	MessageLogMaxSizeMB  int    `toml:"message_log_max_size_mb"`
	MessageLogMaxBackups int    `toml:"message_log_max_backups"`
}

// SimulationConfig represents the simulation run configuration
type SimulationConfig struct {
	// Seed of the simulation RNG; 0 picks one from the wall clock
	Seed           int64   `toml:"seed"`
	TimeScale      float64 `toml:"time_scale"`
	TickIntervalMs int     `toml:"tick_interval_ms"`
	PhysicsStepMs  int     `toml:"physics_step_ms"`
	// MaxStepSeconds caps the simulated time one physics update may cover
	MaxStepSeconds   float64 `toml:"max_step_seconds"`
	ResolveConflicts bool    `toml:"resolve_conflicts"`
}

// TowerConfig holds the defaults for every tower
type TowerConfig struct {
	Stands         int     `toml:"stands"`
	StandSpacing   float64 `toml:"stand_spacing"`
	LandingSeconds float64 `toml:"landing_seconds"`
	TakeoffSeconds float64 `toml:"takeoff_seconds"`
}

// ApproachConfig holds the defaults for every approach controller
type ApproachConfig struct {
	Radius              float64 `toml:"radius"`
	HoldingBaseAltitude float64 `toml:"holding_base_altitude"`
	HoldingAltitudeStep float64 `toml:"holding_altitude_step"`
	HoldingRadiusFactor float64 `toml:"holding_radius_factor"`
	HoldingRadiusStep   float64 `toml:"holding_radius_step"`
	HoldingMinRadius    float64 `toml:"holding_min_radius"`
	DestinationRadius   float64 `toml:"destination_radius"`
	ReleaseDistance     float64 `toml:"release_distance"`
}

// RegionalConfig represents the en-route center configuration
type RegionalConfig struct {
	Name                 string  `toml:"name"`
	HorizontalSeparation float64 `toml:"horizontal_separation"`
	VerticalSeparation   float64 `toml:"vertical_separation"`
	HandoffRadius        float64 `toml:"handoff_radius"`
	AirportMatchRadius   float64 `toml:"airport_match_radius"`
	ProximityDistance    float64 `toml:"proximity_distance"`
	ResolutionClimb      float64 `toml:"resolution_climb"`
}

// AirportConfig declares one airport with its approach and tower
type AirportConfig struct {
	Name     string  `toml:"name"`
	XKm      float64 `toml:"x_km"`
	YKm      float64 `toml:"y_km"`
	Capacity int     `toml:"capacity"`
	// Stands overrides tower.stands for this airport when positive
	Stands int `toml:"stands"`
}

// RouteConfig declares a route between two airports
type RouteConfig struct {
	Origin      string `toml:"origin"`
	Destination string `toml:"destination"`
}

// Default returns the built-in configuration: two airports 300 km apart.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  64,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			Enabled:             true,
			Host:                "127.0.0.1",
			Port:                8080,
			MaxConnections:      64,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
			MetricsEnabled:      true,
		},
		Storage: StorageConfig{
			MessageLogMaxSizeMB:  64,
			MessageLogMaxBackups: 5,
		},
		Simulation: SimulationConfig{
			TimeScale:      1,
			TickIntervalMs: 100,
			PhysicsStepMs:  50,
			MaxStepSeconds: 1,
		},
		Aircraft: aircraft.DefaultParams(),
		Tower: TowerConfig{
			Stands:         10,
			StandSpacing:   100,
			LandingSeconds: 30,
			TakeoffSeconds: 20,
		},
		Approach: ApproachConfig{
			Radius:              20000,
			HoldingBaseAltitude: 1000,
			HoldingAltitudeStep: 500,
			HoldingRadiusFactor: 0.8,
			HoldingRadiusStep:   1000,
			HoldingMinRadius:    1000,
			DestinationRadius:   1000,
			ReleaseDistance:     20000,
		},
		Regional: RegionalConfig{
			Name:                 "CCR",
			HorizontalSeparation: 5000,
			VerticalSeparation:   300,
			HandoffRadius:        50000,
			AirportMatchRadius:   1000,
			ProximityDistance:    10000,
			ResolutionClimb:      500,
		},
		Airports: []AirportConfig{
			{Name: "X", XKm: 0, YKm: 0, Capacity: 5},
			{Name: "Y", XKm: 300, YKm: 0, Capacity: 5},
		},
	}
}

// Load reads a TOML file over the defaults and validates the result.
// Keys the file sets that no field accepts are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	// Decoding an array of tables merges into existing elements; a file
	// listing airports replaces the defaults outright.
	defaultAirports := cfg.Airports
	cfg.Airports = nil

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	if !md.IsDefined("airports") {
		cfg.Airports = defaultAirports
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the simulation cannot run with
func (c *Config) Validate() error {
	var errs []error

	if err := c.Aircraft.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Simulation.TimeScale <= 0 {
		errs = append(errs, fmt.Errorf("simulation.time_scale must be positive, got %v", c.Simulation.TimeScale))
	}
	if c.Simulation.TickIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("simulation.tick_interval_ms must be positive, got %d", c.Simulation.TickIntervalMs))
	}
	if c.Simulation.PhysicsStepMs <= 0 {
		errs = append(errs, fmt.Errorf("simulation.physics_step_ms must be positive, got %d", c.Simulation.PhysicsStepMs))
	}
	if c.Simulation.MaxStepSeconds <= 0 {
		errs = append(errs, fmt.Errorf("simulation.max_step_seconds must be positive, got %v", c.Simulation.MaxStepSeconds))
	}
	if c.Tower.Stands <= 0 {
		errs = append(errs, fmt.Errorf("tower.stands must be positive, got %d", c.Tower.Stands))
	}
	if c.Approach.Radius <= 0 {
		errs = append(errs, fmt.Errorf("approach.radius must be positive, got %v", c.Approach.Radius))
	}
	if c.Regional.HandoffRadius < c.Approach.Radius {
		errs = append(errs, fmt.Errorf("regional.handoff_radius (%v) must not be inside approach.radius (%v)",
			c.Regional.HandoffRadius, c.Approach.Radius))
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	if len(c.Airports) == 0 {
		errs = append(errs, errors.New("at least one airport is required"))
	}
	names := make(map[string]bool, len(c.Airports))
	for i, ap := range c.Airports {
		switch {
		case ap.Name == "":
			errs = append(errs, fmt.Errorf("airports[%d]: name is required", i))
		case names[ap.Name]:
			errs = append(errs, fmt.Errorf("airports[%d]: duplicate name %q", i, ap.Name))
		}
		if ap.Capacity <= 0 {
			errs = append(errs, fmt.Errorf("airports[%d] %s: capacity must be positive", i, ap.Name))
		}
		names[ap.Name] = true
	}
	for i, r := range c.Routes {
		if !names[r.Origin] || !names[r.Destination] {
			errs = append(errs, fmt.Errorf("routes[%d]: unknown airport in %s -> %s", i, r.Origin, r.Destination))
		}
	}
	for i, f := range c.Flights {
		if f.ID == "" || !names[f.Origin] || !names[f.Destination] {
			errs = append(errs, fmt.Errorf("flights[%d]: invalid flight %q %s -> %s", i, f.ID, f.Origin, f.Destination))
		}
	}

	return errors.Join(errs...)
}

// Logger returns the logger configuration
func (l LoggingConfig) Logger() logger.Config {
	return logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
	}
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

func (s SimulationConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalMs) * time.Millisecond
}

func (s SimulationConfig) PhysicsStep() time.Duration {
	return time.Duration(s.PhysicsStepMs) * time.Millisecond
}

func (t TowerConfig) LandingDuration() time.Duration {
	return seconds(t.LandingSeconds)
}

func (t TowerConfig) TakeoffDuration() time.Duration {
	return seconds(t.TakeoffSeconds)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
