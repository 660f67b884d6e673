package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrockway/beaglebone-desk-clock/control/buttons"
	"github.com/jrockway/beaglebone-desk-clock/control/clock"
	"github.com/jrockway/beaglebone-desk-clock/control/render"
	"github.com/jrockway/beaglebone-desk-clock/control/stopwatch"
)

var t0 = time.Date(2021, 9, 14, 0, 0, 0, 0, time.UTC)

type recorder struct {
	snaps []render.Snapshot
	err   error
}

func (r *recorder) Render(s render.Snapshot) error {
	r.snaps = append(r.snaps, s)
	return r.err
}

type hourRecorder struct {
	hours []int
	pms   []bool
}

func (h *hourRecorder) ShowHour(hour int, pm bool) error {
	h.hours = append(h.hours, hour)
	h.pms = append(h.pms, pm)
	return nil
}

type chimeCounter struct {
	n   int
	err error
}

func (c *chimeCounter) Chime() error {
	c.n++
	return c.err
}

type chanDisplay chan render.Snapshot

func (c chanDisplay) Render(s render.Snapshot) error {
	select {
	case c <- s:
	default:
	}
	return nil
}

func TestTick(t *testing.T) {
	ctx, c := context.WithCancel(context.Background())
	period := 50 * time.Millisecond
	timeout := 3 * period
	jitter := 20 * time.Millisecond

	tch := make(chan time.Time)
	errch := make(chan error)
	go func() {
		errch <- Tick(ctx, period, tch)
		close(errch)
	}()

	// Check that ticks arrive about a period apart, and on a multiple of the period.
	var a, b time.Time
	for _, tick := range []*time.Time{&a, &b} {
		select {
		case <-time.After(timeout):
			t.Fatal("timeout waiting for tick")
		case err := <-errch:
			t.Fatalf("unexpected error waiting for tick: %v", err)
		case *tick = <-tch:
			if delay := time.Since(*tick); delay > jitter {
				t.Errorf("delayed tick: %s", delay)
			}
			if !tick.Equal(tick.Truncate(period)) {
				t.Errorf("tick %v is not on a period boundary", *tick)
			}
		}
	}
	if diff := b.Sub(a); diff > 2*period {
		t.Errorf("too much delay between ticks: %s", diff)
	}

	// Check that missed ticks do not block the ticker.
	select {
	case <-time.After(5 * period):
	case err := <-errch:
		t.Fatalf("unexpected error while sleeping: %v", err)
	}
	select {
	case <-time.After(timeout):
		t.Fatal("timeout waiting for tick after sleeping")
	case err := <-errch:
		t.Fatalf("unexpected error waiting for tick after sleeping: %v", err)
	case new := <-tch:
		if delay := time.Since(new); delay > jitter {
			t.Errorf("delayed tick after sleeping: %s", delay)
		}
	}

	// Check that cancelling the context stops the ticking.
	c()
	select {
	case <-time.After(timeout):
		t.Fatal("timeout waiting for cancel")
	case err := <-errch:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error after cancel: %v", err)
		}
	}
}

func TestStepAdvancesClockBySeconds(t *testing.T) {
	start := 12*3600 + 34*60 + 56
	d := new(recorder)
	s := New(clock.New(start, t0), stopwatch.New(), d, nil, nil)
	for i := 1; i <= 50; i++ {
		s.Step(t0.Add(time.Duration(i) * Period))
	}
	if got, want := s.Clock.SecondsOfDay(), start+5; got != want {
		t.Errorf("clock after 5s of 100ms steps:\n  got: %v\n want: %v", clock.FormatTimeOfDay(got), clock.FormatTimeOfDay(want))
	}
	if got, want := len(d.snaps), 50; got != want {
		t.Errorf("renders:\n  got: %v\n want: %v", got, want)
	}
	if h, m, sec := d.snaps[len(d.snaps)-1].Clock(); h != 12 || m != 35 || sec != 1 {
		t.Errorf("last render: %02d:%02d:%02d", h, m, sec)
	}
}

func TestStopwatchScenario(t *testing.T) {
	sw := stopwatch.New()
	src := buttons.New(sw, nil)
	defer src.Close()
	s := New(clock.New(0, t0), sw, nil, nil, nil)

	presses := map[time.Duration]buttons.Button{
		1 * time.Second:  buttons.A, // start
		11 * time.Second: buttons.B, // pause after 10s
		16 * time.Second: buttons.B, // resume after 5s
		19 * time.Second: buttons.A, // reset after 3s
	}
	var observed []int
	for d := time.Duration(0); d <= 20*time.Second; d += Period {
		now := t0.Add(d)
		snap := s.Step(now)
		if len(observed) == 0 || observed[len(observed)-1] != snap.StopwatchSeconds {
			observed = append(observed, snap.StopwatchSeconds)
		}
		if b, ok := presses[d]; ok {
			src.Handle(b, now)
		}

		switch {
		case d > 11*time.Second && d <= 16*time.Second:
			if snap.StopwatchSeconds != 10 {
				t.Errorf("at %v while paused: stopwatch reads %d", d, snap.StopwatchSeconds)
			}
		case d > 19*time.Second:
			if snap.StopwatchSeconds != 0 {
				t.Errorf("at %v after reset: stopwatch reads %d", d, snap.StopwatchSeconds)
			}
		}
	}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 0}
	if len(observed) != len(want) {
		t.Fatalf("observed stopwatch readings:\n  got: %v\n want: %v", observed, want)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("observed stopwatch readings:\n  got: %v\n want: %v", observed, want)
			break
		}
	}
}

func TestHourBoundaryFiresOnce(t *testing.T) {
	start := 12*3600 + 59*60 + 58 // 12:59:58
	hour := new(hourRecorder)
	chime := new(chimeCounter)
	s := New(clock.New(start, t0), stopwatch.New(), new(recorder), hour, chime)

	// 12:59:58 through 13:00:05 at 100ms; 13:00:00 is seen by ten steps.
	for d := time.Duration(0); d <= 7*time.Second; d += Period {
		s.Step(t0.Add(d))
	}
	if got, want := chime.n, 1; got != want {
		t.Errorf("chimes:\n  got: %v\n want: %v", got, want)
	}
	if len(hour.hours) != 1 || hour.hours[0] != 1 || !hour.pms[0] {
		t.Errorf("hour indicator updates:\n  got: %v %v\n want: [1] [true]", hour.hours, hour.pms)
	}

	// And again at the next hour, including midnight on a 12-hour dial.
	s = New(clock.New(23*3600+59*60+59, t0), stopwatch.New(), new(recorder), hour, chime)
	for d := time.Duration(0); d <= 3*time.Second; d += Period {
		s.Step(t0.Add(d))
	}
	if got, want := chime.n, 2; got != want {
		t.Errorf("chimes after midnight:\n  got: %v\n want: %v", got, want)
	}
	if got := hour.hours[len(hour.hours)-1]; got != 12 || hour.pms[len(hour.pms)-1] {
		t.Errorf("midnight shown as %d (pm: %v)", got, hour.pms[len(hour.pms)-1])
	}
}

func TestStallAcrossHourStillChimes(t *testing.T) {
	hour := new(hourRecorder)
	chime := new(chimeCounter)
	s := New(clock.New(13*3600-1, t0), stopwatch.New(), nil, hour, chime)

	// 12:59:59, then a stall that lands on 13:00:01 without ever seeing 13:00:00.
	s.Step(t0.Add(900 * time.Millisecond))
	snap := s.Step(t0.Add(2100 * time.Millisecond))
	if got, want := snap.ClockSeconds, 13*3600+1; got != want {
		t.Fatalf("clock after stall:\n  got: %v\n want: %v", clock.FormatTimeOfDay(got), clock.FormatTimeOfDay(want))
	}
	if got, want := chime.n, 1; got != want {
		t.Errorf("chimes:\n  got: %v\n want: %v", got, want)
	}
	if len(hour.hours) != 1 || hour.hours[0] != 1 || !hour.pms[0] {
		t.Errorf("hour indicator updates:\n  got: %v %v\n want: [1] [true]", hour.hours, hour.pms)
	}

	// The rest of the hour stays quiet.
	for d := 3 * time.Second; d <= 10*time.Second; d += Period {
		s.Step(t0.Add(d))
	}
	if got, want := chime.n, 1; got != want {
		t.Errorf("chimes later in the hour:\n  got: %v\n want: %v", got, want)
	}
}

func TestStartOnTheHourChimes(t *testing.T) {
	chime := new(chimeCounter)
	s := New(clock.New(0, t0), stopwatch.New(), nil, nil, chime)
	s.Step(t0)
	s.Step(t0.Add(Period))
	if got, want := chime.n, 1; got != want {
		t.Errorf("chimes after starting at midnight:\n  got: %v\n want: %v", got, want)
	}

	chime = new(chimeCounter)
	s = New(clock.New(12*3600+34*60+56, t0), stopwatch.New(), nil, nil, chime)
	s.Step(t0.Add(time.Second))
	if got, want := chime.n, 0; got != want {
		t.Errorf("chimes after starting mid-hour:\n  got: %v\n want: %v", got, want)
	}
}

func TestSnapshotCarriesPhase(t *testing.T) {
	sw := stopwatch.New()
	s := New(clock.New(0, t0), sw, nil, nil, nil)
	sw.Press(stopwatch.StartReset, t0)
	sw.Press(stopwatch.PauseResume, t0.Add(3*time.Second))
	snap := s.Step(t0.Add(5 * time.Second))
	if snap.Phase != stopwatch.Paused || snap.StopwatchSeconds != 3 {
		t.Errorf("snapshot:\n  got: %v %d\n want: paused 3", snap.Phase, snap.StopwatchSeconds)
	}
}

func TestSlowChimeDoesNotLoseTime(t *testing.T) {
	start := 13*3600 - 1
	chime := new(chimeCounter)
	s := New(clock.New(start, t0), stopwatch.New(), nil, nil, chime)

	s.Step(t0.Add(1 * time.Second)) // 13:00:00, chimes
	// Pretend the chime took 2.5s; the next step happens late.
	snap := s.Step(t0.Add(3500 * time.Millisecond))
	if got, want := snap.ClockSeconds, 13*3600+2; got != want {
		t.Errorf("clock after chime:\n  got: %v\n want: %v", clock.FormatTimeOfDay(got), clock.FormatTimeOfDay(want))
	}
	if got, want := chime.n, 1; got != want {
		t.Errorf("chimes:\n  got: %v\n want: %v", got, want)
	}
}

func TestCollaboratorErrorsAreNotFatal(t *testing.T) {
	disp := &recorder{err: errors.New("i2c: nack")}
	chime := &chimeCounter{err: errors.New("gpio: busy")}
	s := New(clock.New(3600-1, t0), stopwatch.New(), disp, nil, chime)
	for d := time.Duration(0); d <= 2*time.Second; d += Period {
		s.Step(t0.Add(d))
	}
	if got, want := len(disp.snaps), 21; got != want {
		t.Errorf("renders:\n  got: %v\n want: %v", got, want)
	}
	if got, want := chime.n, 1; got != want {
		t.Errorf("chimes:\n  got: %v\n want: %v", got, want)
	}
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hour := new(hourRecorder)
	rendered := make(chan render.Snapshot, 100)
	d := chanDisplay(rendered)
	s := New(clock.New(15*3600, time.Now()), stopwatch.New(), d, hour, nil)

	errch := make(chan error)
	go func() { errch <- s.Run(ctx) }()
	select {
	case snap := <-rendered:
		if h, _, _ := snap.Clock(); h != 15 {
			t.Errorf("unexpected first render: %v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for a render")
	}
	cancel()
	select {
	case err := <-errch:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error after cancel: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Run to return")
	}
	if len(hour.hours) == 0 || hour.hours[0] != 3 || !hour.pms[0] {
		t.Errorf("hour shown at startup:\n  got: %v %v\n want: [3] [true]", hour.hours, hour.pms)
	}
}
