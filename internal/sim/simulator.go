// Package sim provides the discrete-event simulation engine.
//
// The engine owns the agent registry and a single Scheduler. Each
// dispatched event updates one agent:
// - mission start assigns a goal released for later
// - path recomputation runs A* and the fallback tiers
// - advance integrates motion and battery up to the event time
//
// Route computation may run concurrently (PlanPending, AssignGoals); event
// dispatch never does.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/skymind-sim/internal/algo"
	"github.com/elektrokombinacija/skymind-sim/internal/core"
	"github.com/elektrokombinacija/skymind-sim/internal/logging"
)

var (
	ErrUnknownAgent   = errors.New("unknown agent")
	ErrDuplicateAgent = errors.New("duplicate agent")
	ErrInvalidAgent   = errors.New("invalid agent")
)

// AgentSpec describes an agent to add to the engine.
type AgentSpec struct {
	ID    string
	Start core.Cell
	Goal  *core.Cell
	// Speed in world units per second; 0 uses the config default.
	Speed float64
	// Battery overrides the config default when set.
	Battery *core.BatteryConfig
	// ReleaseAt delays the mission; at or before the current time it starts immediately.
	ReleaseAt float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.log = logging.OrNoOp(l) }
}

// WithObserver registers a snapshot observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// release is a scheduled mission. Its id is carried in the Epoch field of
// the matching EventMissionStart.
type release struct {
	id   uint64
	at   float64
	goal core.Cell
}

// route is the outcome of planning for one agent. Computing it only reads
// the grid.
type route struct {
	path     core.Path
	tier     core.PlanTier
	expanded int
	elapsed  time.Duration
}

// Engine runs the simulation. Public methods are safe for concurrent use;
// AddObstacle and mission calls interleave between steps, never inside one.
type Engine struct {
	mu sync.Mutex

	config  SimulationConfig
	grid    *core.GridMap
	planner *algo.Planner
	sched   *Scheduler

	agents   map[string]*core.Drone
	order    []string // sorted agent IDs
	releases map[string][]release
	relSeq   uint64

	log       logging.Logger
	observers []Observer
	runID     string

	observed     bool
	lastObserved float64

	// Metrics
	metrics SimulationMetrics
}

// NewEngine creates an engine over grid.
func NewEngine(grid *core.GridMap, config SimulationConfig, opts ...Option) (*Engine, error) {
	if grid == nil {
		return nil, fmt.Errorf("%w: nil grid", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	planner, err := algo.NewPlanner(grid, config.Planner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	e := &Engine{
		config:   config,
		grid:     grid,
		planner:  planner,
		agents:   make(map[string]*core.Drone),
		releases: make(map[string][]release),
		log:      logging.NoOpLogger{},
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sched = NewScheduler(e.log)
	e.metrics.RunID = e.runID
	return e, nil
}

// RunID identifies this engine's run in snapshots and metrics.
func (e *Engine) RunID() string { return e.runID }

// Grid returns the engine's grid. Callers must not mutate it directly.
func (e *Engine) Grid() *core.GridMap { return e.grid }

// Now returns the current simulation time.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Now()
}

// Pending returns the number of queued events, stale ones included.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Len()
}

// Agent returns a copy of the agent's current state.
func (e *Engine) Agent(id string) (core.Drone, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.agents[id]
	if !ok {
		return core.Drone{}, false
	}
	return *d, true
}

// AgentIDs returns all agent IDs in sorted order.
func (e *Engine) AgentIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

// AddAgent registers an agent at its start cell. If the spec has a goal the
// mission is assigned, or scheduled for ReleaseAt.
func (e *Engine) AddAgent(spec AgentSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if spec.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidAgent)
	}
	if _, ok := e.agents[spec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, spec.ID)
	}
	speed := spec.Speed
	if speed == 0 {
		speed = e.config.DefaultSpeed
	}
	if speed < 0 {
		return fmt.Errorf("%w: %s speed must be positive, got %v", ErrInvalidAgent, spec.ID, speed)
	}
	if e.grid.IsObstacle(spec.Start) {
		return fmt.Errorf("%w: %s start %v is blocked or out of bounds", ErrInvalidAgent, spec.ID, spec.Start)
	}
	bc := e.config.Battery
	if spec.Battery != nil {
		bc = *spec.Battery
	}
	if err := bc.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAgent, spec.ID, err)
	}

	now := e.sched.Now()
	d := core.NewDrone(spec.ID, e.grid.GridToWorld(spec.Start), speed, bc)
	d.Home = spec.Start
	d.Clock = now
	e.agents[spec.ID] = d
	i := sort.SearchStrings(e.order, spec.ID)
	e.order = append(e.order, "")
	copy(e.order[i+1:], e.order[i:])
	e.order[i] = spec.ID
	e.log.Debug("agent added", "agent", spec.ID, "start", spec.Start.String(), "speed", speed)

	if spec.Goal == nil {
		return nil
	}
	if spec.ReleaseAt > now {
		e.scheduleMission(d, *spec.Goal, spec.ReleaseAt)
		return nil
	}
	return e.assign(d, *spec.Goal)
}

// AssignMission gives an agent a new goal now. A mission already in progress
// is replaced.
func (e *Engine) AssignMission(id string, goal core.Cell) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return e.assign(d, goal)
}

func (e *Engine) assign(d *core.Drone, goal core.Cell) error {
	now := e.sched.Now()
	if d.Status.IsFlying() {
		// bring the drone up to date before re-targeting
		e.report(d, d.Advance(now, e.grid, e.config.flightParams()), now)
	}
	if err := d.Assign(goal, now); err != nil {
		return err
	}
	e.log.Info("mission assigned", "agent", d.ID, "goal", goal.String(), "t", now)
	e.sched.Schedule(Event{
		Timestamp: now,
		Priority:  PriorityPlan,
		AgentID:   d.ID,
		Kind:      EventRecomputePath,
		Epoch:     d.Epoch,
	})
	return nil
}

// ScheduleMission releases a mission for the agent at time at.
func (e *Engine) ScheduleMission(id string, goal core.Cell, at float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	if d.Status == core.StatusCrashed {
		return fmt.Errorf("%w: %s is %s", core.ErrTerminal, id, d.Status)
	}
	e.scheduleMission(d, goal, at)
	return nil
}

func (e *Engine) scheduleMission(d *core.Drone, goal core.Cell, at float64) {
	e.relSeq++
	id := e.relSeq
	e.sched.Schedule(Event{Timestamp: at, Priority: PriorityMission, AgentID: d.ID, Kind: EventMissionStart, Epoch: id})
	// the scheduler re-stamps past releases to now
	if now := e.sched.Now(); at < now {
		at = now
	}
	rs := e.releases[d.ID]
	i := sort.Search(len(rs), func(i int) bool { return rs[i].at > at })
	rs = append(rs, release{})
	copy(rs[i+1:], rs[i:])
	rs[i] = release{id: id, at: at, goal: goal}
	e.releases[d.ID] = rs
	e.log.Debug("mission scheduled", "agent", d.ID, "goal", goal.String(), "at", at)
}

// CancelMission aborts the agent's mission and any scheduled releases. The
// agent returns to IDLE where it stands; pending events become stale.
func (e *Engine) CancelMission(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	if err := d.Cancel(e.sched.Now()); err != nil {
		return err
	}
	delete(e.releases, id)
	e.log.Info("mission cancelled", "agent", id, "t", e.sched.Now())
	return nil
}

// AddObstacle marks obstacle cells on the grid between steps. Agents whose
// remaining route crosses a new obstacle re-plan on their next update.
func (e *Engine) AddObstacle(o core.Obstacle) (int, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.grid.AddObstacle(o)
	e.log.Info("obstacle added", "kind", o.Kind(), "cells", n, "t", e.sched.Now())
	return n, nil
}

// AssignGoals matches idle, finished and failed agents to goals minimising
// total path cost, then assigns the missions. It returns the chosen goal per
// agent; agents with no reachable goal are left out.
func (e *Engine) AssignGoals(ctx context.Context, goals []core.Cell) (map[string]core.Cell, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []string
	var starts []core.Cell
	for _, id := range e.order {
		d := e.agents[id]
		if d.Status.IsFlying() || d.Status == core.StatusPlanning || d.Status == core.StatusCrashed {
			continue
		}
		ids = append(ids, id)
		starts = append(starts, e.grid.WorldToGrid(d.Position))
	}

	match, err := algo.AssignGoals(ctx, e.planner, starts, goals, e.config.PlanWorkers)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.Cell, len(match))
	for i, id := range ids {
		j, ok := match[i]
		if !ok {
			continue
		}
		if err := e.assign(e.agents[id], goals[j]); err != nil {
			return out, err
		}
		out[id] = goals[j]
	}
	return out, nil
}

// Step dispatches exactly one event. It returns false when the queue is empty.
func (e *Engine) Step() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step()
}

func (e *Engine) step() bool {
	ev, ok := e.sched.Next()
	if !ok {
		return false
	}
	e.metrics.EventsDispatched++
	now := ev.Timestamp

	d, ok := e.agents[ev.AgentID]
	switch {
	case !ok:
		e.metrics.StaleEvents++
		e.log.Error("event for unknown agent", "event", ev.String())
	case ev.Kind == EventMissionStart:
		e.releaseMission(d, ev.Epoch)
	case ev.Epoch != d.Epoch:
		e.metrics.StaleEvents++
	default:
		switch ev.Kind {
		case EventAdvance:
			e.advance(d, now)
		case EventRecomputePath:
			e.replan(d, now)
		}
	}

	e.observe(now)
	return true
}

func (e *Engine) releaseMission(d *core.Drone, id uint64) {
	rs := e.releases[d.ID]
	k := -1
	for i, r := range rs {
		if r.id == id {
			k = i
			break
		}
	}
	if k < 0 {
		// cancelled
		e.metrics.StaleEvents++
		return
	}
	r := rs[k]
	if len(rs) == 1 {
		delete(e.releases, d.ID)
	} else {
		e.releases[d.ID] = append(rs[:k:k], rs[k+1:]...)
	}
	if err := e.assign(d, r.goal); err != nil {
		e.log.Warn("scheduled mission dropped", "agent", d.ID, "err", err)
	}
}

func (e *Engine) advance(d *core.Drone, now float64) {
	out := d.Advance(now, e.grid, e.config.flightParams())
	e.report(d, out, now)
	switch out {
	case core.OutcomeContinue:
		e.scheduleAdvance(d, now)
	case core.OutcomeBlocked:
		e.sched.Schedule(Event{Timestamp: now, Priority: PriorityPlan, AgentID: d.ID, Kind: EventRecomputePath, Epoch: d.Epoch})
	}
}

// report logs a flight outcome and counts blocked routes.
func (e *Engine) report(d *core.Drone, out core.FlightOutcome, now float64) {
	switch out {
	case core.OutcomeArrived:
		e.log.Info("agent finished", "agent", d.ID, "t", now, "battery", d.Battery.Level)
	case core.OutcomeCrashed:
		e.log.Warn("agent crashed", "agent", d.ID, "t", now, "position", d.Position.String())
	case core.OutcomeBlocked:
		e.metrics.ReplanEvents++
		e.log.Info("route blocked, replanning", "agent", d.ID, "t", now)
	}
}

func (e *Engine) scheduleAdvance(d *core.Drone, now float64) {
	e.sched.Schedule(Event{
		Timestamp: now + e.config.TimeStep,
		Priority:  PriorityAdvance,
		AgentID:   d.ID,
		Kind:      EventAdvance,
		Epoch:     d.Epoch,
	})
}

func (e *Engine) replan(d *core.Drone, now float64) {
	if d.Status != core.StatusPlanning || d.Requested == nil {
		e.metrics.StaleEvents++
		return
	}
	r := e.computeRoute(e.grid.WorldToGrid(d.Position), *d.Requested)
	e.applyRoute(d, r, now)
}

// computeRoute tries the requested goal, then each enabled fallback tier.
func (e *Engine) computeRoute(start, goal core.Cell) route {
	began := time.Now()
	r := route{tier: core.TierHold}
	plan := func(target core.Cell, tier core.PlanTier) bool {
		path, st := e.planner.FindPath(start, target)
		r.expanded += st.Expanded
		if path == nil {
			return false
		}
		r.path, r.tier = path, tier
		return true
	}

	done := plan(goal, core.TierDirect)
	if !done && e.config.Fallback.Nearest {
		if t, ok := e.planner.NearestReachable(start, goal); ok {
			done = plan(t, core.TierNearest)
		}
	}
	if !done && e.config.Fallback.Adjacent {
		if t, ok := e.planner.AdjacentFree(start, goal); ok {
			plan(t, core.TierAdjacent)
		}
	}
	r.elapsed = time.Since(began)
	return r
}

func (e *Engine) applyRoute(d *core.Drone, r route, now float64) {
	e.metrics.PlanningAttempts++
	e.metrics.NodesExpanded += r.expanded
	e.metrics.TotalPlanningTimeMs += float64(r.elapsed.Microseconds()) / 1000

	switch r.tier {
	case core.TierDirect:
		e.metrics.PlanningSuccesses++
	case core.TierNearest:
		e.metrics.FallbackNearest++
	case core.TierAdjacent:
		e.metrics.FallbackAdjacent++
	case core.TierHold:
		e.metrics.FallbackHold++
		d.Fail(now)
		e.log.Warn("no route, holding position", "agent", d.ID, "goal", d.Requested.String(), "t", now)
		return
	}
	if r.tier != core.TierDirect {
		e.log.Info("fallback route", "agent", d.ID, "tier", r.tier.String(), "target", r.path.Goal().String())
	}
	d.Follow(r.path, r.tier, e.grid, now)
	e.log.Debug("route planned", "agent", d.ID, "waypoints", len(r.path), "expanded", r.expanded)
	e.scheduleAdvance(d, now)
}

// PlanPending computes routes for every agent awaiting one, concurrently,
// and applies them in agent-ID order. The queued recompute events of those
// agents then find nothing to do.
func (e *Engine) PlanPending(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var pending []*core.Drone
	for _, id := range e.order {
		if d := e.agents[id]; d.Status == core.StatusPlanning && d.Requested != nil {
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	routes := make([]route, len(pending))
	g, ctx := errgroup.WithContext(ctx)
	if e.config.PlanWorkers > 0 {
		g.SetLimit(e.config.PlanWorkers)
	}
	for i, d := range pending {
		start, goal := e.grid.WorldToGrid(d.Position), *d.Requested
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			routes[i] = e.computeRoute(start, goal)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := e.sched.Now()
	for i, d := range pending {
		e.applyRoute(d, routes[i], now)
	}
	return nil
}

// RunUntil dispatches every event with a timestamp at or before t.
func (e *Engine) RunUntil(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		ev, ok := e.sched.Peek()
		if !ok || ev.Timestamp > t {
			return
		}
		e.step()
	}
}

// Run executes the simulation until the queue drains, MaxTime is reached or
// ctx is done.
func (e *Engine) Run(ctx context.Context) (*SimulationMetrics, error) {
	e.mu.Lock()
	e.metrics.StartTime = time.Now()
	e.mu.Unlock()

	var err error
	for {
		if err = ctx.Err(); err != nil {
			break
		}
		e.mu.Lock()
		ev, ok := e.sched.Peek()
		if !ok || ev.Timestamp > e.config.MaxTime {
			e.mu.Unlock()
			break
		}
		e.step()
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.metrics.EndTime = time.Now()
	e.mu.Unlock()

	m := e.Metrics()
	e.log.Info("simulation finished",
		"t", m.SimulatedTime, "events", m.EventsDispatched,
		"finished", m.AgentsFinished, "crashed", m.AgentsCrashed, "failed", m.AgentsFailed)
	return &m, err
}

// Metrics returns current simulation metrics
func (e *Engine) Metrics() SimulationMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.metrics
	m.SimulatedTime = e.sched.Now()
	m.OrderingViolations = e.sched.Violations()
	m.Agents = len(e.order)
	battery := 0.0
	for _, id := range e.order {
		d := e.agents[id]
		switch d.Status {
		case core.StatusFinished:
			m.AgentsFinished++
		case core.StatusCrashed:
			m.AgentsCrashed++
		case core.StatusFailed:
			m.AgentsFailed++
		}
		m.TotalDistance += d.Stats.Distance
		battery += d.Battery.Percentage()
	}
	if len(e.order) > 0 {
		m.AvgBatteryLevel = battery / float64(len(e.order))
	}
	return m
}

// Missions returns one record per agent in ID order.
func (e *Engine) Missions() []MissionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.sched.Now()
	out := make([]MissionRecord, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, missionRecord(e.agents[id], now))
	}
	return out
}

// Snapshot returns the current world state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(e.sched.Now())
}

func (e *Engine) snapshot(now float64) Snapshot {
	s := Snapshot{
		RunID:     e.runID,
		Time:      now,
		Agents:    make([]AgentState, 0, len(e.order)),
		Obstacles: e.grid.ObstacleCells(),
	}
	for _, id := range e.order {
		d := e.agents[id]
		st := AgentState{ID: id, Position: d.Position, Status: d.Status, BatteryLevel: d.Battery.Level}
		if d.Goal != nil {
			g := *d.Goal
			st.Goal = &g
		}
		s.Agents = append(s.Agents, st)
	}
	return s
}

// observe notifies observers once all events at now have been dispatched.
func (e *Engine) observe(now float64) {
	if len(e.observers) == 0 {
		return
	}
	if next, ok := e.sched.Peek(); ok && next.Timestamp <= now {
		return
	}
	if e.observed && now <= e.lastObserved {
		return
	}
	e.observed, e.lastObserved = true, now
	s := e.snapshot(now)
	for _, o := range e.observers {
		o.Observe(s)
	}
}
