package sim

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/skymind-sim/internal/logging"
)

func TestSchedulerEarliestFirst(t *testing.T) {
	s := NewScheduler(nil)
	s.Schedule(Event{Timestamp: 5, AgentID: "late"})
	s.Schedule(Event{Timestamp: 2, AgentID: "early"})

	ev, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, 2.0, ev.Timestamp)
	assert.Equal(t, "early", ev.AgentID)
	assert.Equal(t, 2.0, s.Now())

	ev, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, 5.0, ev.Timestamp)
	assert.True(t, s.IsEmpty())

	_, ok = s.Next()
	assert.False(t, ok)
}

func TestSchedulerTieBreak(t *testing.T) {
	s := NewScheduler(nil)
	s.Schedule(Event{Timestamp: 1, Priority: PriorityAdvance, AgentID: "a1"})
	s.Schedule(Event{Timestamp: 1, Priority: PriorityPlan, AgentID: "p1"})
	s.Schedule(Event{Timestamp: 1, Priority: PriorityAdvance, AgentID: "a2"})
	s.Schedule(Event{Timestamp: 1, Priority: PriorityPlan, AgentID: "p2"})
	s.Schedule(Event{Timestamp: 1, Priority: PriorityMission, AgentID: "m"})

	var got []string
	for !s.IsEmpty() {
		ev, _ := s.Next()
		got = append(got, ev.AgentID)
	}
	assert.Equal(t, []string{"m", "p1", "p2", "a1", "a2"}, got)
}

func TestSchedulerPeek(t *testing.T) {
	s := NewScheduler(nil)
	_, ok := s.Peek()
	assert.False(t, ok)

	s.Schedule(Event{Timestamp: 3})
	s.Schedule(Event{Timestamp: 1})
	ev, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, 1.0, ev.Timestamp)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 0.0, s.Now(), "peek must not advance time")
}

func TestSchedulerPastEventIsRestamped(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(logging.NewSlogLoggerTo(&buf, logging.LevelWarn, "json"))

	s.Schedule(Event{Timestamp: 5})
	s.Next()
	s.Schedule(Event{Timestamp: 1, AgentID: "x"})

	assert.Equal(t, 1, s.Violations())
	assert.True(t, strings.Contains(buf.String(), "event scheduled in the past"), buf.String())

	ev, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, 5.0, ev.Timestamp)
	assert.Equal(t, "x", ev.AgentID)
	assert.Equal(t, 5.0, s.Now())
}

func TestSchedulerMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewScheduler(nil)
	for i := 0; i < 50; i++ {
		s.Schedule(Event{Timestamp: rng.Float64() * 100, Priority: rng.Intn(3)})
	}

	last := 0.0
	for i := 0; !s.IsEmpty(); i++ {
		ev, _ := s.Next()
		require.GreaterOrEqual(t, ev.Timestamp, last, "dispatch %d went backwards", i)
		last = ev.Timestamp
		// interleave new events, some of them in the past
		if i < 100 {
			s.Schedule(Event{Timestamp: last + rng.Float64()*20 - 10})
		}
	}
	assert.Positive(t, s.Violations())
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "advance", EventAdvance.String())
	assert.Equal(t, "recompute_path", EventRecomputePath.String())
	assert.Equal(t, "mission_start", EventMissionStart.String())
	assert.Equal(t, "EventKind(9)", EventKind(9).String())
}
