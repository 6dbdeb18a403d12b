package sim

import (
	"container/heap"
	"fmt"

	"github.com/elektrokombinacija/skymind-sim/internal/logging"
)

// EventKind identifies what a dispatched event does.
type EventKind int

const (
	// EventAdvance integrates an agent's motion up to the event time.
	EventAdvance EventKind = iota
	// EventRecomputePath plans (or re-plans) an agent's route.
	EventRecomputePath
	// EventMissionStart releases a mission scheduled for later.
	EventMissionStart
)

func (k EventKind) String() string {
	switch k {
	case EventAdvance:
		return "advance"
	case EventRecomputePath:
		return "recompute_path"
	case EventMissionStart:
		return "mission_start"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event priorities; lower fires first among events with equal timestamps.
const (
	PriorityMission = -1
	PriorityPlan    = 0
	PriorityAdvance = 1
)

// Event is a timestamped instruction for one agent. Events hold the agent ID
// only, never the agent itself.
type Event struct {
	Timestamp float64
	Priority  int
	AgentID   string
	Kind      EventKind
	// Epoch is the agent's mission generation when the event was scheduled.
	// Events whose epoch no longer matches are stale and dropped on dispatch.
	// EventMissionStart carries the release id instead.
	Epoch uint64

	seq uint64
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%.3f(%s,p=%d,e=%d)", e.Kind, e.Timestamp, e.AgentID, e.Priority, e.Epoch)
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.seq < b.seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(Event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Scheduler is a time-ordered event queue. Dispatch order is
// (Timestamp, Priority, insertion order) and dispatched timestamps never
// decrease. Not safe for concurrent use.
type Scheduler struct {
	queue      eventHeap
	now        float64
	seq        uint64
	violations int
	log        logging.Logger
}

// NewScheduler creates an empty scheduler at time 0.
func NewScheduler(log logging.Logger) *Scheduler {
	return &Scheduler{log: logging.OrNoOp(log)}
}

// Schedule inserts ev. An event stamped before Now is a logic error: it is
// logged, counted, and re-stamped to Now so time never moves backward.
func (s *Scheduler) Schedule(ev Event) {
	if ev.Timestamp < s.now {
		s.violations++
		s.log.Warn("event scheduled in the past",
			"event", ev.String(), "now", s.now, "violations", s.violations)
		ev.Timestamp = s.now
	}
	ev.seq = s.seq
	s.seq++
	heap.Push(&s.queue, ev)
}

// Next pops the earliest event and advances Now to its timestamp.
func (s *Scheduler) Next() (Event, bool) {
	if len(s.queue) == 0 {
		return Event{}, false
	}
	ev := heap.Pop(&s.queue).(Event)
	s.now = ev.Timestamp
	return ev, true
}

// Peek returns the earliest event without removing it.
func (s *Scheduler) Peek() (Event, bool) {
	if len(s.queue) == 0 {
		return Event{}, false
	}
	return s.queue[0], true
}

func (s *Scheduler) IsEmpty() bool { return len(s.queue) == 0 }
func (s *Scheduler) Len() int      { return len(s.queue) }

// Now is the timestamp of the most recently dispatched event.
func (s *Scheduler) Now() float64 { return s.now }

// Violations counts events that were scheduled in the past.
func (s *Scheduler) Violations() int { return s.violations }
