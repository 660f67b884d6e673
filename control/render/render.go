// Package render describes what the scheduler shows on the clock's outputs each tick.
package render

import (
	"errors"
	"fmt"

	"github.com/jrockway/beaglebone-desk-clock/control/stopwatch"
)

// Snapshot is the state of the clock at one scheduler tick.  It is a value; sinks must not retain
// anything but copies of it.
type Snapshot struct {
	ClockSeconds     int             // seconds since midnight, [0, 86399]
	StopwatchSeconds int             // whole seconds on the stopwatch
	Phase            stopwatch.Phase // phase of the same stopwatch state StopwatchSeconds was read from
}

func hms(s int) (int, int, int) { return s / 3600, (s % 3600) / 60, s % 60 }

// Clock returns the wall clock as hours (0-23), minutes, and seconds.
func (s Snapshot) Clock() (h, m, sec int) { return hms(s.ClockSeconds) }

// Stopwatch returns the stopwatch reading as hours, minutes, and seconds.  Hours are not wrapped.
func (s Snapshot) Stopwatch() (h, m, sec int) { return hms(s.StopwatchSeconds) }

func (s Snapshot) String() string {
	ch, cm, cs := s.Clock()
	sh, sm, ss := s.Stopwatch()
	return fmt.Sprintf("clock %02d:%02d:%02d stopwatch %02d:%02d:%02d", ch, cm, cs, sh, sm, ss)
}

// Display shows a snapshot.  It is called once per scheduler tick and must not block for long.
type Display interface {
	Render(s Snapshot) error
}

// HourIndicator shows the hour on a 12-hour dial.  It is called on hour boundaries.
type HourIndicator interface {
	ShowHour(hour int, pm bool) error
}

// Chimer sounds the hourly chime.  Chime blocks until the chime is over.
type Chimer interface {
	Chime() error
}

// Displays renders to every display in order, even if some fail.
type Displays []Display

func (ds Displays) Render(s Snapshot) error {
	var errs []error
	for i, d := range ds {
		if err := d.Render(s); err != nil {
			errs = append(errs, fmt.Errorf("display %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
