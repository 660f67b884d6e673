package status

import (
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrockway/beaglebone-desk-clock/control/ambient"
	"github.com/jrockway/beaglebone-desk-clock/control/render"
	"github.com/jrockway/beaglebone-desk-clock/control/stopwatch"
	"periph.io/x/conn/v3/physic"
)

func TestTemplate(t *testing.T) {
	p := &Page{
		Face: func(s render.Snapshot) image.Image {
			img := image.NewRGBA(image.Rect(0, 0, 2, 1))
			img.Set(0, 0, color.White)
			return img
		},
	}
	if err := p.Render(render.Snapshot{ClockSeconds: 12*3600 + 34*60 + 56, StopwatchSeconds: 3725, Phase: stopwatch.Running}); err != nil {
		t.Fatal(err)
	}
	p.SetAmbient(ambient.Reading{
		Env: physic.Env{Temperature: physic.ZeroCelsius + 20*physic.Kelvin, Pressure: 100000 * physic.Pascal, Humidity: 40 * physic.PercentRH},
		At:  time.Now(),
	})
	p.SetPresses(map[string]int{"A": 3, "B": 1})

	st := p.current()
	if got, want := st.Clock, "12:34:56"; got != want {
		t.Errorf("clock:\n  got: %v\n want: %v", got, want)
	}
	if got, want := st.Stopwatch, "01:02:05"; got != want {
		t.Errorf("stopwatch:\n  got: %v\n want: %v", got, want)
	}
	if got, want := st.Phase, stopwatch.Running; got != want {
		t.Errorf("phase:\n  got: %v\n want: %v", got, want)
	}

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)
	if got, want := rec.Code, http.StatusOK; got != want {
		t.Errorf("render index.html: response code:\n  got: %v\n want: %v", got, want)
	}
	body := rec.Body.String()
	for _, want := range []string{"12:34:56", "01:02:05", "running", "20.0 &deg;C", "data:image/png;base64,"} {
		if !strings.Contains(body, want) {
			t.Errorf("index.html does not contain %q", want)
		}
	}
}

func TestPhaseComesFromSnapshot(t *testing.T) {
	p := new(Page)
	for _, snap := range []render.Snapshot{
		{StopwatchSeconds: 10, Phase: stopwatch.Paused},
		{StopwatchSeconds: 0, Phase: stopwatch.Idle},
	} {
		if err := p.Render(snap); err != nil {
			t.Fatal(err)
		}
		st := p.current()
		if got, want := st.Phase, snap.Phase; got != want {
			t.Errorf("phase for %v:\n  got: %v\n want: %v", snap, got, want)
		}
	}
}

func TestEmptyPage(t *testing.T) {
	p := new(Page)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if got, want := rec.Code, http.StatusOK; got != want {
		t.Errorf("response code:\n  got: %v\n want: %v", got, want)
	}
	if strings.Contains(rec.Body.String(), "Ambient") {
		t.Error("page without a sensor reading shows the ambient section")
	}
}

func TestFormatImage(t *testing.T) {
	if got := string(formatImage(nil)); !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("nil image: %.40s", got)
	}
}
