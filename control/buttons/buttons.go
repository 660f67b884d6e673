// Package buttons turns edges on the two button lines into stopwatch transitions.
//
// Each button line is watched by its own goroutine, which plays the part of an interrupt handler:
// it wakes on a falling edge, debounces it, applies the transition to the shared stopwatch, and goes
// back to waiting.  It never renders anything and never blocks on anything but the next edge.
package buttons

import (
	"context"
	"fmt"
	"time"

	"github.com/jrockway/beaglebone-desk-clock/control/debounce"
	"github.com/jrockway/beaglebone-desk-clock/control/journal"
	"github.com/jrockway/beaglebone-desk-clock/control/stopwatch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
	"periph.io/x/conn/v3/gpio"
)

// Button identifies one of the two physical buttons.
type Button int

const (
	A Button = iota // start, or reset
	B               // pause, or resume
)

func (b Button) String() string {
	switch b {
	case A:
		return "A"
	case B:
		return "B"
	default:
		return fmt.Sprintf("Button(%d)", int(b))
	}
}

// Event returns the stopwatch event that a press of b causes.
func (b Button) Event() stopwatch.Event {
	if b == A {
		return stopwatch.StartReset
	}
	return stopwatch.PauseResume
}

// pollInterval bounds how long Watch takes to notice that its context is done.
const pollInterval = 100 * time.Millisecond

var (
	edgesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "button_edges_total",
		Help: "count of falling edges seen on the button lines, by whether the debouncer accepted them",
	}, []string{"button", "result"})

	journalDropsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "button_journal_drops_total",
		Help: "count of accepted presses not journaled because the journal was busy",
	})
)

// EdgePin is the part of a periph.io gpio.PinIn that Watch needs.
type EdgePin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) bool
	String() string
}

// Source delivers debounced button presses to the stopwatch.
type Source struct {
	sw       *stopwatch.Stopwatch
	debounce *debounce.Debouncer
	journal  chan<- journal.Press
	l        trace.EventLog
}

// New returns a Source that drives sw.  Accepted presses are also offered to presses, if non-nil,
// without ever waiting for it.
func New(sw *stopwatch.Stopwatch, presses chan<- journal.Press) *Source {
	return &Source{
		sw:       sw,
		debounce: debounce.New(debounce.Window),
		journal:  presses,
		l:        trace.NewEventLog("service", "buttons"),
	}
}

// Handle processes one falling edge of b that happened at now, and reports whether it was accepted
// as a press.
func (s *Source) Handle(b Button, now time.Time) bool {
	if !s.debounce.Accept(int(b), now) {
		edgesCounter.WithLabelValues(b.String(), "bounce").Inc()
		return false
	}
	edgesCounter.WithLabelValues(b.String(), "accepted").Inc()
	from, to := s.sw.Press(b.Event(), now)
	s.l.Printf("button %v: %v -> %v", b, from.Phase, to.Phase)
	if s.journal != nil {
		select {
		case s.journal <- journal.Press{At: now, Button: b.String(), From: from.Phase.String(), To: to.Phase.String()}:
		default:
			journalDropsCounter.Inc()
		}
	}
	return true
}

// Watch configures pin as a pulled-up input that detects falling edges, and handles every edge on
// it as a press of b until the context is done.  Each edge is consumed by WaitForEdge before it is
// handled, whether or not it is accepted, so a rejected bounce never fires again.
func (s *Source) Watch(ctx context.Context, pin EdgePin, b Button) error {
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("configure button %v on %s: %w", b, pin, err)
	}
	defer func() {
		if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			s.l.Errorf("disable edge detection on %s: %v", pin, err)
		}
	}()
	s.l.Printf("watching button %v on %s", b, pin)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("watch button %v: %w", b, err)
		}
		if !pin.WaitForEdge(pollInterval) {
			continue
		}
		s.Handle(b, time.Now())
	}
}

// Close releases the event log.
func (s *Source) Close() {
	s.l.Finish()
}
