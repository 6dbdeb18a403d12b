package sim

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
)

// SimulationMetrics collects metrics during simulation
type SimulationMetrics struct {
	RunID string `json:"run_id"`

	// Timing
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	SimulatedTime float64   `json:"simulated_time"` // Simulated seconds

	// Scheduler
	EventsDispatched   int `json:"events_dispatched"`
	StaleEvents        int `json:"stale_events"`
	OrderingViolations int `json:"ordering_violations"`

	// Planning
	PlanningAttempts    int     `json:"planning_attempts"`
	PlanningSuccesses   int     `json:"planning_successes"`
	FallbackNearest     int     `json:"fallback_nearest"`
	FallbackAdjacent    int     `json:"fallback_adjacent"`
	FallbackHold        int     `json:"fallback_hold"`
	NodesExpanded       int     `json:"nodes_expanded"`
	TotalPlanningTimeMs float64 `json:"total_planning_time_ms"`
	ReplanEvents        int     `json:"replan_events"`

	// Agents
	Agents          int     `json:"agents"`
	AgentsFinished  int     `json:"agents_finished"`
	AgentsCrashed   int     `json:"agents_crashed"`
	AgentsFailed    int     `json:"agents_failed"`
	TotalDistance   float64 `json:"total_distance"`
	AvgBatteryLevel float64 `json:"avg_battery_level"` // percent
}

// MissionRecord summarises one agent's current or last mission.
type MissionRecord struct {
	AgentID      string        `json:"agent_id"`
	Status       core.Status   `json:"status"`
	Tier         core.PlanTier `json:"tier"`
	Distance     float64       `json:"distance"`
	BatteryLevel float64       `json:"battery_level"`
	MissionTime  float64       `json:"mission_time"`
	Replans      int           `json:"replans"`
}

func missionRecord(d *core.Drone, now float64) MissionRecord {
	end := d.Stats.EndedAt
	if !d.Status.IsTerminal() {
		end = now
	}
	return MissionRecord{
		AgentID:      d.ID,
		Status:       d.Status,
		Tier:         d.Stats.Tier,
		Distance:     d.Stats.Distance,
		BatteryLevel: d.Battery.Level,
		MissionTime:  end - d.Stats.StartedAt,
		Replans:      d.Stats.Replans,
	}
}

// Report is the document written by ExportMetrics.
type Report struct {
	Metrics  SimulationMetrics `json:"metrics"`
	Missions []MissionRecord   `json:"missions"`
}

// ExportMetrics writes metrics and mission records to a JSON file
func (e *Engine) ExportMetrics(path string) error {
	report := Report{Metrics: e.Metrics(), Missions: e.Missions()}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ExportMissionsCSV writes one row per agent to a CSV file.
func (e *Engine) ExportMissionsCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteMissionsCSV(f, e.Missions()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var missionHeader = []string{"agent_id", "status", "tier", "distance", "battery_level", "mission_time", "replans"}

// WriteMissionsCSV writes records with a header row.
func WriteMissionsCSV(w io.Writer, records []MissionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(missionHeader); err != nil {
		return err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	for _, r := range records {
		row := []string{
			r.AgentID,
			r.Status.String(),
			r.Tier.String(),
			ff(r.Distance),
			ff(r.BatteryLevel),
			ff(r.MissionTime),
			strconv.Itoa(r.Replans),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write mission %s: %w", r.AgentID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
