package core

import (
	"fmt"
	"math"
)

// energyEpsilon absorbs floating-point residue so a drained battery reads exactly 0.
const energyEpsilon = 1e-9

// BatteryConfig holds battery parameters. Rates are energy units per second.
type BatteryConfig struct {
	Capacity        float64  `json:"capacity" yaml:"capacity"`
	Level           *float64 `json:"level,omitempty" yaml:"level,omitempty"` // nil = start full
	ChargeRate      float64  `json:"charge_rate" yaml:"charge_rate"`
	DischargeIdle   float64  `json:"discharge_idle" yaml:"discharge_idle"`
	DischargeFlying float64  `json:"discharge_flying" yaml:"discharge_flying"`
}

// Validate checks the configuration.
func (c BatteryConfig) Validate() error {
	switch {
	case !(c.Capacity > 0) || math.IsInf(c.Capacity, 0):
		return fmt.Errorf("battery capacity must be positive, got %v", c.Capacity)
	case c.Level != nil && (!(*c.Level >= 0) || *c.Level > c.Capacity):
		return fmt.Errorf("battery level %v outside [0, %v]", *c.Level, c.Capacity)
	case c.ChargeRate < 0, c.DischargeIdle < 0, c.DischargeFlying < 0:
		return fmt.Errorf("battery rates must be non-negative")
	}
	return nil
}

// WithLevel returns a copy of c that starts at the given level instead of full.
func (c BatteryConfig) WithLevel(level float64) BatteryConfig {
	c.Level = &level
	return c
}

// Battery tracks the energy budget of a drone. Level stays within [0, Capacity].
type Battery struct {
	Capacity        float64
	Level           float64
	ChargeRate      float64
	DischargeIdle   float64
	DischargeFlying float64
}

// NewBattery creates a battery from its configuration.
func NewBattery(c BatteryConfig) Battery {
	level := c.Capacity
	if c.Level != nil {
		level = math.Max(*c.Level, 0)
	}
	return Battery{
		Capacity:        c.Capacity,
		Level:           math.Min(level, c.Capacity),
		ChargeRate:      c.ChargeRate,
		DischargeIdle:   c.DischargeIdle,
		DischargeFlying: c.DischargeFlying,
	}
}

// Discharge drains the battery for dt seconds at the flying or idle rate.
func (b *Battery) Discharge(dt float64, flying bool) {
	if dt <= 0 {
		return
	}
	rate := b.DischargeIdle
	if flying {
		rate = b.DischargeFlying
	}
	b.Level -= rate * dt
	if b.Level < energyEpsilon {
		b.Level = 0
	}
}

// Charge adds energy for dt seconds, capped at capacity.
func (b *Battery) Charge(dt float64) {
	if dt <= 0 {
		return
	}
	b.Level = math.Min(b.Capacity, b.Level+b.ChargeRate*dt)
}

// FlightTime is the number of seconds until depletion at the given rate.
func (b *Battery) FlightTime(flying bool) float64 {
	rate := b.DischargeIdle
	if flying {
		rate = b.DischargeFlying
	}
	if rate <= 0 {
		return math.Inf(1)
	}
	return b.Level / rate
}

// Depleted reports an empty battery.
func (b *Battery) Depleted() bool { return b.Level <= 0 }

// Percentage returns the charge as 0-100.
func (b *Battery) Percentage() float64 {
	if b.Capacity <= 0 {
		return 0
	}
	return b.Level / b.Capacity * 100
}

// IsLow reports a charge below 20%.
func (b *Battery) IsLow() bool {
	return b.Percentage() < 20
}
