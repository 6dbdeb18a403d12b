package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/skymind-sim/internal/algo"
	"github.com/elektrokombinacija/skymind-sim/internal/core"
)

// ErrInvalidConfig is returned for unusable simulation settings.
var ErrInvalidConfig = errors.New("invalid simulation config")

// FallbackPolicy enables the re-targeting tiers tried when no route to the
// requested goal exists. Holding position is always the last resort.
type FallbackPolicy struct {
	Nearest  bool `yaml:"nearest" json:"nearest"`
	Adjacent bool `yaml:"adjacent" json:"adjacent"`
}

// SimulationConfig configures the engine.
type SimulationConfig struct {
	// Interval between kinematic updates of a flying agent (seconds)
	TimeStep float64 `yaml:"time_step" json:"time_step"`

	// Run stops once simulated time would pass MaxTime (seconds)
	MaxTime float64 `yaml:"max_time" json:"max_time"`

	// Distance under which a waypoint counts as reached
	ArrivalEpsilon float64 `yaml:"arrival_epsilon" json:"arrival_epsilon"`

	// Post-arrival phases; zero skips the phase
	HoverDuration   float64 `yaml:"hover_duration" json:"hover_duration"`
	LandingDuration float64 `yaml:"landing_duration" json:"landing_duration"`

	// Speed for agents that do not set their own (world units per second)
	DefaultSpeed float64 `yaml:"default_speed" json:"default_speed"`

	// Battery for agents that do not set their own
	Battery core.BatteryConfig `yaml:"battery" json:"battery"`

	Planner  algo.PlannerConfig `yaml:"planner" json:"planner"`
	Fallback FallbackPolicy     `yaml:"fallback" json:"fallback"`

	// Concurrent route computations in PlanPending; 0 means unbounded
	PlanWorkers int `yaml:"plan_workers" json:"plan_workers"`
}

// DefaultConfig returns default simulation configuration
func DefaultConfig() SimulationConfig {
	return SimulationConfig{
		TimeStep:       0.1,  // 100ms
		MaxTime:        3600, // 1 hour
		ArrivalEpsilon: 1e-6,
		DefaultSpeed:   1,
		Battery: core.BatteryConfig{
			Capacity:        100,
			ChargeRate:      1,
			DischargeIdle:   0.1,
			DischargeFlying: 1,
		},
		Fallback:    FallbackPolicy{Nearest: true, Adjacent: true},
		PlanWorkers: 4,
	}
}

// Validate checks the configuration.
func (c SimulationConfig) Validate() error {
	positive := func(name string, v float64) error {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, name, v)
		}
		return nil
	}
	if err := positive("time_step", c.TimeStep); err != nil {
		return err
	}
	if err := positive("max_time", c.MaxTime); err != nil {
		return err
	}
	if err := positive("default_speed", c.DefaultSpeed); err != nil {
		return err
	}
	if c.ArrivalEpsilon < 0 || c.HoverDuration < 0 || c.LandingDuration < 0 {
		return fmt.Errorf("%w: arrival_epsilon, hover_duration and landing_duration must be >= 0", ErrInvalidConfig)
	}
	if c.PlanWorkers < 0 {
		return fmt.Errorf("%w: plan_workers must be >= 0, got %d", ErrInvalidConfig, c.PlanWorkers)
	}
	if c.Planner.MaxExpansions < 0 {
		return fmt.Errorf("%w: planner.max_expansions must be >= 0", ErrInvalidConfig)
	}
	if err := c.Battery.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// flightParams extracts what the drone state machine needs.
func (c SimulationConfig) flightParams() core.FlightParams {
	return core.FlightParams{
		ArrivalEpsilon:  c.ArrivalEpsilon,
		HoverDuration:   c.HoverDuration,
		LandingDuration: c.LandingDuration,
	}
}

// LoadConfig reads a YAML file and overlays it on DefaultConfig. Unknown
// keys are rejected.
func LoadConfig(path string) (SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SimulationConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration overlaid on DefaultConfig.
func ParseConfig(data []byte) (SimulationConfig, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return SimulationConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return SimulationConfig{}, err
	}
	return cfg, nil
}
