package sim

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
)

// AgentState is the read-only view of one agent in a Snapshot.
type AgentState struct {
	ID           string      `json:"id"`
	Position     core.Vec3   `json:"position"`
	Status       core.Status `json:"status"`
	BatteryLevel float64     `json:"battery_level"`
	Goal         *core.Cell  `json:"goal,omitempty"`
}

// Snapshot is the world state at one simulation time. It is the only view
// presentation and telemetry consumers get of the engine.
type Snapshot struct {
	RunID     string       `json:"run_id"`
	Time      float64      `json:"time"`
	Agents    []AgentState `json:"agents"`
	Obstacles []core.Cell  `json:"obstacles"`
}

// Observer receives a snapshot once per distinct simulation timestamp.
// Observe runs on the simulation goroutine and must not call back into the engine.
type Observer interface {
	Observe(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }

// JSONLObserver writes each snapshot as one JSON line.
type JSONLObserver struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewJSONLObserver writes snapshots to w.
func NewJSONLObserver(w io.Writer) *JSONLObserver {
	return &JSONLObserver{enc: json.NewEncoder(w)}
}

func (o *JSONLObserver) Observe(s Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return
	}
	o.err = o.enc.Encode(s)
}

// Err returns the first write error.
func (o *JSONLObserver) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}
