// Package status serves an HTML page showing what the clock is displaying.
package status

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/jrockway/beaglebone-desk-clock/control/ambient"
	"github.com/jrockway/beaglebone-desk-clock/control/render"
	"github.com/jrockway/beaglebone-desk-clock/control/stopwatch"
)

var (
	//go:embed index.html.tmpl
	indexHTML string
	funcMap   = template.FuncMap{
		"unixtime": formatUnixTime,
		"float1":   formatFloat1,
		"image":    formatImage,
	}
	index = template.Must(template.New("index").Funcs(funcMap).Parse(indexHTML))
)

// Status is everything shown on the page.
type Status struct {
	Face      image.Image
	Clock     string
	Stopwatch string
	Phase     stopwatch.Phase
	Updated   time.Time
	Ambient   *ambient.Reading
	Presses   map[string]int
}

// Page holds the latest Status.  It is a render.Display, so the scheduler keeps it current.
type Page struct {
	// Optional.  Face draws the clock face for a snapshot.
	Face func(render.Snapshot) image.Image

	mu     sync.RWMutex
	status Status
}

// Render records snap.
func (p *Page) Render(snap render.Snapshot) error {
	var face image.Image
	if p.Face != nil {
		face = p.Face(snap)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Face = face
	h, m, s := snap.Clock()
	p.status.Clock = fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	h, m, s = snap.Stopwatch()
	p.status.Stopwatch = fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	p.status.Phase = snap.Phase
	p.status.Updated = time.Now()
	return nil
}

// SetAmbient records a sensor reading.
func (p *Page) SetAmbient(r ambient.Reading) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Ambient = &r
}

// SetPresses records how many times each button has been pressed.
func (p *Page) SetPresses(presses map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Presses = presses
}

func (p *Page) current() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	buf := new(bytes.Buffer)
	p.mu.RLock()
	err := index.Execute(buf, p.status)
	p.mu.RUnlock()
	if err != nil {
		log.Printf("execute template: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func formatUnixTime(t time.Time) string { return t.In(time.UTC).Format(time.UnixDate) }

func formatFloat1(x float64) string { return fmt.Sprintf("%.1f", x) }

func formatImage(src image.Image) template.URL {
	enlarge, space := 16, 2
	if src == nil {
		src = image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	b := src.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, enlarge*b.Dx(), enlarge*b.Dy()))
	for x := 0; x < b.Dx(); x++ {
		for y := 0; y < b.Dy(); y++ {
			val := src.At(b.Min.X+x, b.Min.Y+y)
			for i := space; i < enlarge-space; i++ {
				for j := space; j < enlarge-space; j++ {
					img.Set(x*enlarge+i, y*enlarge+j, val)
				}
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		log.Printf("problem encoding image: %v", err)
		return template.URL("data:text/plain,error")
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
}
