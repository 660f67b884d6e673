// Package clock keeps wall-clock time for a clock that has no RTC.  The time of day is advanced by
// sampling a monotonic time source, so it is only as good as the crystal on the board and starts
// over from a configured time of day after every restart.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// SecondsPerDay is where the time of day wraps back to midnight.
	SecondsPerDay  = 24 * 60 * 60
	secondsPerHour = 60 * 60
)

var secondsAdvancedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "clock_seconds_advanced",
	Help: "number of whole seconds the wall clock has been advanced by since startup",
})

// Clock is the wall clock.  It is not safe for concurrent use; the scheduler owns it.
type Clock struct {
	secondsOfDay int
	last         time.Time // instant at which secondsOfDay was exactly correct
}

// New returns a clock that reads secondsOfDay at the instant now.
func New(secondsOfDay int, now time.Time) *Clock {
	return &Clock{secondsOfDay: wrap(secondsOfDay), last: now}
}

func wrap(s int) int {
	s %= SecondsPerDay
	if s < 0 {
		s += SecondsPerDay
	}
	return s
}

// Tick advances the clock by the number of whole seconds that have elapsed since the last whole
// second it counted, and returns that number.  The sub-second remainder is kept for the next call,
// so calling Tick every 100ms (or irregularly) does not cause drift.
func (c *Clock) Tick(now time.Time) int {
	n := int(now.Sub(c.last) / time.Second)
	if n <= 0 {
		return 0
	}
	c.secondsOfDay = wrap(c.secondsOfDay + n)
	c.last = c.last.Add(time.Duration(n) * time.Second)
	secondsAdvancedCounter.Add(float64(n))
	return n
}

// SecondsOfDay returns the current time of day in seconds since midnight.
func (c *Clock) SecondsOfDay() int { return c.secondsOfDay }

// HMS splits a time of day into hours (0-23), minutes, and seconds.
func HMS(secondsOfDay int) (h, m, s int) {
	secondsOfDay = wrap(secondsOfDay)
	return secondsOfDay / secondsPerHour, (secondsOfDay % secondsPerHour) / 60, secondsOfDay % 60
}

// Hour12 returns the hour on a 12-hour dial (1-12) and whether it is afternoon.
func Hour12(secondsOfDay int) (int, bool) {
	h24 := wrap(secondsOfDay) / secondsPerHour
	h := h24 % 12
	if h == 0 {
		h = 12
	}
	return h, h24 >= 12
}

// IsHourBoundary is true during the first second of every hour.
func IsHourBoundary(secondsOfDay int) bool {
	return wrap(secondsOfDay)%secondsPerHour == 0
}

// FormatTimeOfDay formats a time of day as 15:04:05.
func FormatTimeOfDay(secondsOfDay int) string {
	h, m, s := HMS(secondsOfDay)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseTimeOfDay parses HH:MM or HH:MM:SS on a 24-hour clock.
func ParseTimeOfDay(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("parse time of day %q: want HH:MM or HH:MM:SS", v)
	}
	limits := []int{24, 60, 60}
	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("parse time of day %q: field %d: %w", v, i, err)
		}
		if n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("parse time of day %q: field %d out of range [0, %d)", v, i, limits[i])
		}
		fields[i] = n
	}
	return fields[0]*secondsPerHour + fields[1]*60 + fields[2], nil
}
