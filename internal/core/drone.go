package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrTerminal is returned when a crashed drone is given new work.
var ErrTerminal = errors.New("drone is in a terminal state")

// Status is the lifecycle state of a drone.
type Status int

const (
	StatusIdle Status = iota
	StatusPlanning
	StatusMoving
	StatusHovering
	StatusLanding
	StatusFinished
	StatusCrashed
	StatusFailed // planning exhausted every fallback; not a crash
)

var statusNames = [...]string{"IDLE", "PLANNING", "MOVING", "HOVERING", "LANDING", "FINISHED", "CRASHED", "FAILED"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

// IsFlying reports airborne states, where the battery drains and never charges.
func (s Status) IsFlying() bool {
	return s == StatusMoving || s == StatusHovering || s == StatusLanding
}

// IsTerminal reports states that schedule no further events.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusCrashed || s == StatusFailed
}

// PlanTier records which planning level produced the current route.
type PlanTier int

const (
	TierNone     PlanTier = iota
	TierDirect            // route to the requested goal
	TierNearest           // nearest reachable free cell
	TierAdjacent          // an adjacent free cell
	TierHold              // no route; drone holds position
)

var tierNames = [...]string{"none", "direct", "nearest", "adjacent", "hold"}

func (t PlanTier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return fmt.Sprintf("PlanTier(%d)", int(t))
	}
	return tierNames[t]
}

// MarshalText encodes the tier by name.
func (t PlanTier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *PlanTier) UnmarshalText(b []byte) error {
	for i, n := range tierNames {
		if n == string(b) {
			*t = PlanTier(i)
			return nil
		}
	}
	return fmt.Errorf("unknown plan tier %q", string(b))
}

// FlightParams tunes post-arrival behaviour and waypoint snapping.
type FlightParams struct {
	ArrivalEpsilon  float64 // distance under which a waypoint counts as reached
	HoverDuration   float64 // seconds hovering over the goal before landing
	LandingDuration float64 // seconds spent landing
}

// FlightOutcome is the result of one kinematic update.
type FlightOutcome int

const (
	OutcomeIdle     FlightOutcome = iota // not flying; nothing happened
	OutcomeContinue                      // still airborne, schedule the next update
	OutcomeArrived                       // reached FINISHED
	OutcomeBlocked                       // remaining path crosses an obstacle; re-plan
	OutcomeCrashed                       // battery depleted or collided
)

var outcomeNames = [...]string{"idle", "continue", "arrived", "blocked", "crashed"}

func (o FlightOutcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("FlightOutcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// MissionStats accumulates per-mission figures.
type MissionStats struct {
	Distance  float64  `json:"distance"`
	Replans   int      `json:"replans"`
	Tier      PlanTier `json:"tier"`
	HoverTime float64  `json:"hover_time"`
	Waypoints int      `json:"waypoints"`
	StartedAt float64  `json:"started_at"`
	EndedAt   float64  `json:"ended_at"`
}

// Drone is a simulated agent. It is owned by the engine; events refer to it by ID.
type Drone struct {
	ID       string
	Position Vec3
	Velocity Vec3
	Speed    float64
	Battery  Battery
	Status   Status

	Path      Path
	PathIndex int
	Goal      *Cell // current target, possibly a fallback cell
	Requested *Cell // goal as assigned
	Home      Cell

	// Epoch increments whenever pending events must be invalidated.
	Epoch uint64
	// Clock is the simulation time of the last state update.
	Clock float64

	Stats MissionStats

	planVersion uint64
	phaseLeft   float64
}

// NewDrone creates an idle drone.
func NewDrone(id string, pos Vec3, speed float64, battery BatteryConfig) *Drone {
	return &Drone{
		ID:       id,
		Position: pos,
		Speed:    speed,
		Battery:  NewBattery(battery),
		Status:   StatusIdle,
	}
}

func (d *Drone) String() string {
	return fmt.Sprintf("Drone(ID=%s, Pos=%v, Battery=%.1f%%, Status=%s)",
		d.ID, d.Position, d.Battery.Percentage(), d.Status)
}

// Rest charges a grounded drone up to now.
func (d *Drone) Rest(now float64) {
	if !d.Status.IsFlying() && d.Status != StatusCrashed {
		d.Battery.Charge(now - d.Clock)
	}
	if now > d.Clock {
		d.Clock = now
	}
}

// Assign gives the drone a new goal. Any pending events become stale.
func (d *Drone) Assign(goal Cell, now float64) error {
	if d.Status == StatusCrashed {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, d.ID, d.Status)
	}
	if !d.Status.IsFlying() {
		d.Rest(now)
		d.Stats = MissionStats{StartedAt: now}
	} else {
		d.Stats.Replans++
	}
	g := goal
	d.Goal = &g
	d.Requested = &g
	d.Path = nil
	d.PathIndex = 0
	d.Velocity = Vec3{}
	d.Status = StatusPlanning
	d.Epoch++
	return nil
}

// Follow starts flying along path, computed against grid.
func (d *Drone) Follow(path Path, tier PlanTier, grid *GridMap, now float64) {
	d.Path = path
	d.PathIndex = 0
	if len(path) > 0 && d.Position.Dist(grid.GridToWorld(path[0])) == 0 {
		d.PathIndex = 1
	}
	if len(path) > 0 {
		goal := path.Goal()
		d.Goal = &goal
	}
	d.Stats.Tier = tier
	d.Stats.Waypoints += len(path)
	d.planVersion = grid.Version()
	d.Clock = now
	d.Status = StatusMoving
}

// Fail marks planning as exhausted. The drone holds its position.
func (d *Drone) Fail(now float64) {
	d.Path = nil
	d.PathIndex = 0
	d.Velocity = Vec3{}
	d.Stats.Tier = TierHold
	d.Stats.EndedAt = now
	d.Clock = now
	d.Status = StatusFailed
}

// Cancel aborts the mission and returns the drone to IDLE.
func (d *Drone) Cancel(now float64) error {
	if d.Status == StatusCrashed {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, d.ID, d.Status)
	}
	d.Path = nil
	d.PathIndex = 0
	d.Goal = nil
	d.Requested = nil
	d.Velocity = Vec3{}
	d.Stats.EndedAt = now
	d.Clock = now
	d.Status = StatusIdle
	d.Epoch++
	return nil
}

// Remaining returns the waypoints not yet reached.
func (d *Drone) Remaining() Path {
	if d.PathIndex >= len(d.Path) {
		return nil
	}
	return d.Path[d.PathIndex:]
}

// Advance integrates the drone up to now.
func (d *Drone) Advance(now float64, grid *GridMap, p FlightParams) FlightOutcome {
	dt := now - d.Clock
	if dt < 0 {
		dt = 0
	}
	d.Clock = now
	return d.Fly(dt, grid, p)
}

// Fly performs one kinematic update of dt seconds.
func (d *Drone) Fly(dt float64, grid *GridMap, p FlightParams) FlightOutcome {
	switch d.Status {
	case StatusMoving:
		return d.flyPath(dt, grid, p)
	case StatusHovering, StatusLanding:
		return d.holdPhase(dt, grid, p)
	default:
		return OutcomeIdle
	}
}

func (d *Drone) flyPath(dt float64, grid *GridMap, p FlightParams) FlightOutcome {
	if grid.Version() != d.planVersion {
		if d.collided(grid) {
			return OutcomeCrashed
		}
		for _, c := range d.Remaining() {
			if grid.IsObstacle(c) {
				// the step is spent hovering in place
				d.Velocity = Vec3{}
				if d.drain(dt, true) {
					return OutcomeCrashed
				}
				d.Status = StatusPlanning
				d.Stats.Replans++
				return OutcomeBlocked
			}
		}
		d.planVersion = grid.Version()
	}

	if d.PathIndex >= len(d.Path) {
		return d.arrive(p)
	}

	step := math.Min(dt, d.Battery.FlightTime(true))

	target := grid.GridToWorld(d.Path[d.PathIndex])
	delta := target.Sub(d.Position)
	dist := delta.Length()
	travel := d.Speed * step

	if dist <= travel || dist <= p.ArrivalEpsilon {
		d.Position = target
		d.Stats.Distance += dist
		d.PathIndex++
	} else {
		d.Position = d.Position.Add(delta.Scale(travel / dist))
		d.Stats.Distance += travel
	}
	if dist > 0 {
		d.Velocity = delta.Scale(d.Speed / dist)
	}

	if d.drain(dt, true) {
		return OutcomeCrashed
	}

	if d.PathIndex >= len(d.Path) {
		return d.arrive(p)
	}
	return OutcomeContinue
}

func (d *Drone) arrive(p FlightParams) FlightOutcome {
	d.Velocity = Vec3{}
	switch {
	case p.HoverDuration > 0:
		d.Status = StatusHovering
		d.phaseLeft = p.HoverDuration
		return OutcomeContinue
	case p.LandingDuration > 0:
		d.Status = StatusLanding
		d.phaseLeft = p.LandingDuration
		return OutcomeContinue
	}
	d.finish()
	return OutcomeArrived
}

// holdPhase drains at the idle rate while hovering or landing.
func (d *Drone) holdPhase(dt float64, grid *GridMap, p FlightParams) FlightOutcome {
	if grid.Version() != d.planVersion {
		if d.collided(grid) {
			return OutcomeCrashed
		}
		d.planVersion = grid.Version()
	}
	if d.Status == StatusHovering {
		d.Stats.HoverTime += math.Min(dt, d.Battery.FlightTime(false))
	}
	if d.drain(dt, false) {
		return OutcomeCrashed
	}

	d.phaseLeft -= dt
	if d.phaseLeft > energyEpsilon {
		return OutcomeContinue
	}
	if d.Status == StatusHovering && p.LandingDuration > 0 {
		d.Status = StatusLanding
		d.phaseLeft = p.LandingDuration
		return OutcomeContinue
	}
	d.finish()
	return OutcomeArrived
}

// drain discharges the battery for dt seconds. If it empties within dt the
// level is forced to 0 and the drone crashes; drain then returns true.
func (d *Drone) drain(dt float64, flying bool) bool {
	if ft := d.Battery.FlightTime(flying); ft < dt {
		d.Battery.Level = 0
	} else {
		d.Battery.Discharge(dt, flying)
	}
	if d.Battery.Depleted() {
		d.crash()
		return true
	}
	return false
}

// collided crashes the drone when its own cell has become an obstacle.
func (d *Drone) collided(grid *GridMap) bool {
	if grid.IsObstacle(grid.WorldToGrid(d.Position)) {
		d.crash()
		return true
	}
	return false
}

func (d *Drone) finish() {
	d.Velocity = Vec3{}
	d.Stats.EndedAt = d.Clock
	d.Status = StatusFinished
}

func (d *Drone) crash() {
	d.Velocity = Vec3{}
	d.Stats.EndedAt = d.Clock
	d.Status = StatusCrashed
}
