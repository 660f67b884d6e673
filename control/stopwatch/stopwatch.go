// Package stopwatch implements the start/pause/reset stopwatch driven by the two buttons.
//
// The whole state of the stopwatch is one immutable State value.  Buttons replace it with a
// compare-and-swap, and the display loop reads it with a single atomic load, so a reader can never
// see the phase of one transition paired with the timestamps of another.
package stopwatch

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phase is the variant of a State.
type Phase int

const (
	Idle Phase = iota
	Running
	Paused
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Event is a logical button press.
type Event int

const (
	// StartReset starts an idle stopwatch, and resets a running or paused one.  It is not a
	// start/stop toggle.
	StartReset Event = iota
	// PauseResume pauses a running stopwatch and resumes a paused one.  It does nothing while
	// idle.
	PauseResume
)

func (e Event) String() string {
	switch e {
	case StartReset:
		return "start/reset"
	case PauseResume:
		return "pause/resume"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

var transitionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stopwatch_transitions_total",
	Help: "count of stopwatch state transitions",
}, []string{"from", "to"})

// State is a tagged stopwatch state.  Only the fields valid for Phase are set; the rest are zero.
//
//	Idle:    nothing
//	Running: Start, Since
//	Paused:  Start, PausedAt, Since
//
// Start is shifted forward by the length of every pause, so that while running the elapsed time
// is simply now-Start.  Since is the instant of the transition into the current phase.
type State struct {
	Phase    Phase
	Start    time.Time
	PausedAt time.Time
	Since    time.Time
}

// Apply returns the state that follows s when ev happens at now.  It does not modify s.
func (s State) Apply(ev Event, now time.Time) State {
	switch ev {
	case StartReset:
		if s.Phase == Idle {
			return State{Phase: Running, Start: now, Since: now}
		}
		return State{}
	case PauseResume:
		switch s.Phase {
		case Running:
			if now.Before(s.Since) {
				now = s.Since
			}
			return State{Phase: Paused, Start: s.Start, PausedAt: now, Since: now}
		case Paused:
			if now.Before(s.PausedAt) {
				now = s.PausedAt
			}
			return State{Phase: Running, Start: s.Start.Add(now.Sub(s.PausedAt)), Since: now}
		}
	}
	return s
}

// Elapsed returns the stopwatch reading at now.  Readings taken with a now slightly before the last
// transition (which happens when the display loop sampled the time just before a button was pushed)
// are clamped to the reading at the transition, so the display never moves backwards.
func (s State) Elapsed(now time.Time) time.Duration {
	switch s.Phase {
	case Running:
		if now.Before(s.Since) {
			now = s.Since
		}
		return now.Sub(s.Start)
	case Paused:
		return s.PausedAt.Sub(s.Start)
	default:
		return 0
	}
}

// Valid reports whether the fields of s agree with its phase.
func (s State) Valid() bool {
	switch s.Phase {
	case Idle:
		return s == State{}
	case Running:
		return !s.Start.IsZero() && !s.Since.IsZero() && s.PausedAt.IsZero() && !s.Since.Before(s.Start)
	case Paused:
		return !s.Start.IsZero() && !s.PausedAt.IsZero() && s.PausedAt.Equal(s.Since) && !s.PausedAt.Before(s.Start)
	default:
		return false
	}
}

// Stopwatch is the shared stopwatch.  It is safe for concurrent use.
type Stopwatch struct {
	state atomic.Pointer[State]
}

// New returns an idle stopwatch.
func New() *Stopwatch {
	s := new(Stopwatch)
	s.state.Store(&State{})
	return s
}

// State returns a consistent snapshot of the stopwatch.
func (s *Stopwatch) State() State {
	return *s.state.Load()
}

// Elapsed returns the stopwatch reading at now.
func (s *Stopwatch) Elapsed(now time.Time) time.Duration {
	return s.State().Elapsed(now)
}

// Press applies ev at now and returns the states before and after.
func (s *Stopwatch) Press(ev Event, now time.Time) (from, to State) {
	for {
		old := s.state.Load()
		next := old.Apply(ev, now)
		if next == *old {
			return *old, *old
		}
		if s.state.CompareAndSwap(old, &next) {
			transitionsCounter.WithLabelValues(old.Phase.String(), next.Phase.String()).Inc()
			return *old, next
		}
	}
}
