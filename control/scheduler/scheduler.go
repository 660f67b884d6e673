// Package scheduler runs the clock's main loop: every period it advances the wall clock, reads the
// stopwatch, and pushes the result to the displays.  On the hour it also updates the hour indicator
// and sounds the chime.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jrockway/beaglebone-desk-clock/control/clock"
	"github.com/jrockway/beaglebone-desk-clock/control/render"
	"github.com/jrockway/beaglebone-desk-clock/control/stopwatch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

// Period is how often the main loop runs.
const Period = 100 * time.Millisecond

var (
	missedTicksCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missed_ticks",
		Help: "count of ticks that were generated but never received by anything",
	})

	tickDelayMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_delay",
		Help:    "amount of time between the scheduled tick and when it is sent to the channel, in nanoseconds",
		Buckets: prometheus.ExponentialBuckets(1000, 10, 20),
	})

	renderErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_errors_total",
		Help: "count of errors returned by output devices",
	}, []string{"output"})

	chimesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chimes_total",
		Help: "count of hourly chimes",
	})
)

// Tick sends the current time to the provided channel at every multiple of period.  An absent
// listener will not receive an outdated time; the tick will be skipped and the missedTicksCounter
// incremented.  Cancelling the context causes this to return immediately.
func Tick(ctx context.Context, period time.Duration, ch chan<- time.Time) error {
	for {
		next := time.Now().Add(period).Truncate(period)

		// Wait until the next period starts.
		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			return fmt.Errorf("waiting for next tick: %w", ctx.Err())
		}

		// Send the time to the channel.
		select {
		case <-time.After(period / 2):
			missedTicksCounter.Inc()
		case <-ctx.Done():
			return fmt.Errorf("waiting to send tick: %w", ctx.Err())
		case ch <- next:
			tickDelayMetric.Observe(float64(time.Since(next).Nanoseconds()))
		}
	}
}

// Scheduler owns the wall clock and reads the shared stopwatch.
type Scheduler struct {
	Clock     *clock.Clock
	Stopwatch *stopwatch.Stopwatch
	Display   render.Display

	// Optional.  Hour is shown at startup and on every hour boundary, followed by Chime.
	Hour  render.HourIndicator
	Chime render.Chimer

	lastHour int // hour of day seen by the last Step
	l        trace.EventLog
}

// New returns a scheduler.  hour and chime may be nil.
func New(c *clock.Clock, sw *stopwatch.Stopwatch, d render.Display, hour render.HourIndicator, chime render.Chimer) *Scheduler {
	lastHour := c.SecondsOfDay() / 3600
	if clock.IsHourBoundary(c.SecondsOfDay()) {
		// Starting on the hour still chimes for it.
		lastHour = (lastHour + 23) % 24
	}
	return &Scheduler{
		Clock:     c,
		Stopwatch: sw,
		Display:   d,
		Hour:      hour,
		Chime:     chime,
		lastHour:  lastHour,
		l:         trace.NewEventLog("service", "scheduler"),
	}
}

func (s *Scheduler) errorf(output string, format string, args ...interface{}) {
	renderErrorsCounter.WithLabelValues(output).Inc()
	s.l.Errorf(format, args...)
}

// Step runs one iteration of the main loop at now, and returns the snapshot it rendered.
func (s *Scheduler) Step(now time.Time) render.Snapshot {
	s.Clock.Tick(now)
	sw := s.Stopwatch.State()
	snap := render.Snapshot{
		ClockSeconds:     s.Clock.SecondsOfDay(),
		StopwatchSeconds: int(sw.Elapsed(now) / time.Second),
		Phase:            sw.Phase,
	}
	if s.Display != nil {
		if err := s.Display.Render(snap); err != nil {
			s.errorf("display", "render %v: %v", snap, err)
		}
	}

	// The hour changes once per boundary, even if a stall made the clock skip hh:00:00.
	if hour := snap.ClockSeconds / 3600; hour != s.lastHour {
		s.lastHour = hour
		s.onHour(snap.ClockSeconds)
	}
	return snap
}

func (s *Scheduler) showHour(secondsOfDay int) {
	if s.Hour == nil {
		return
	}
	h, pm := clock.Hour12(secondsOfDay)
	if err := s.Hour.ShowHour(h, pm); err != nil {
		s.errorf("hour", "show hour %d (pm: %v): %v", h, pm, err)
	}
}

func (s *Scheduler) onHour(secondsOfDay int) {
	s.l.Printf("hour boundary at %s", clock.FormatTimeOfDay(secondsOfDay))
	s.showHour(secondsOfDay)
	if s.Chime == nil {
		return
	}
	// This blocks the loop; the clock catches up on the next Step.
	chimesCounter.Inc()
	if err := s.Chime.Chime(); err != nil {
		s.errorf("chime", "chime: %v", err)
	}
}

// Run runs the main loop until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.l.Finish()
	s.showHour(s.Clock.SecondsOfDay())
	log.Printf("scheduler starting at %s", clock.FormatTimeOfDay(s.Clock.SecondsOfDay()))

	tickErrCh := make(chan error)
	tickCh := make(chan time.Time)
	go func() {
		err := Tick(ctx, Period, tickCh)
		select {
		case tickErrCh <- err:
		case <-ctx.Done():
		}
		close(tickErrCh)
	}()
	for {
		select {
		case <-tickCh:
			s.Step(time.Now())
		case err := <-tickErrCh:
			return fmt.Errorf("ticker: %w", err)
		case <-ctx.Done():
			return fmt.Errorf("scheduler: %w", ctx.Err())
		}
	}
}
