package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fulr/spidev"
	"github.com/goiot/devices/dotstar"
	"github.com/jrockway/beaglebone-desk-clock/control/ambient"
	"github.com/jrockway/beaglebone-desk-clock/control/buttons"
	"github.com/jrockway/beaglebone-desk-clock/control/buzzer"
	"github.com/jrockway/beaglebone-desk-clock/control/clock"
	"github.com/jrockway/beaglebone-desk-clock/control/hourled"
	"github.com/jrockway/beaglebone-desk-clock/control/journal"
	"github.com/jrockway/beaglebone-desk-clock/control/render"
	"github.com/jrockway/beaglebone-desk-clock/control/scheduler"
	"github.com/jrockway/beaglebone-desk-clock/control/screen"
	"github.com/jrockway/beaglebone-desk-clock/control/segment"
	"github.com/jrockway/beaglebone-desk-clock/control/status"
	"github.com/jrockway/beaglebone-desk-clock/control/stopwatch"
	"github.com/jrockway/periphflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	xspi "golang.org/x/exp/io/spi"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/extra/hostextra"
	"periph.io/x/host/v3"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
)

var (
	bind        = flag.String("bind", ":8080", "address to bind for debug/metrics server")
	previewOnly = flag.Bool("preview-only", false, "if true, don't drive the led display; only serve its preview image")
	segmentDev  = flag.String("segment", "", "spidev device of the max7219 stopwatch display; empty for none")
	hourMatrix  = flag.String("hour-matrix", "", "spidev device of the 5x5 dotstar hour matrix; empty for none")
	buttonA     = flag.String("button-a", "", "gpio pin of the start/reset button")
	buttonB     = flag.String("button-b", "", "gpio pin of the pause/resume button")
	buzzerPin   = flag.String("buzzer", "", "gpio pin of the hourly chime buzzer; empty for none")
	i2cBus      = flag.String("i2c", "", "i2c bus of the bme280 ambient sensor; empty for none")
	start       = flag.String("start", "12:34:56", "time of day that the clock shows at startup")
	dbFile      = flag.String("db", "", "sqlite file to journal button presses to; empty for none")
	spiName     string
)

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no gpio pin named %q", name)
	}
	return p, nil
}

func main() {
	if _, err := hostextra.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io/x/host/v3: %v", err)
	}
	periphflag.SPIDevVar(&spiName, "spi", "", "spi bus that the display is on")
	flag.Parse()

	startAt, err := clock.ParseTimeOfDay(*start)
	if err != nil {
		log.Fatalf("parse -start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var spiPort spi.Port
	if !*previewOnly {
		spiPort, err = spireg.Open(spiName)
		if err != nil {
			log.Fatalf("open spi port %q: %v", spiName, err)
		}
	}
	leds, err := screen.NewScreen(spiPort)
	if err != nil {
		log.Fatalf("init screen: %v", err)
	}
	leds.Blank()

	// os.Exit skips deferred calls, so devices are closed from this list instead.
	var closers []func()

	sw := stopwatch.New()
	page := &status.Page{Face: func(s render.Snapshot) image.Image { return leds.Frame(s) }}
	displays := render.Displays{leds, page}
	blankers := []func() error{leds.Blank}

	if *segmentDev != "" {
		dev, err := spidev.NewSPIDevice(*segmentDev)
		if err != nil {
			log.Fatalf("open max7219 on %s: %v", *segmentDev, err)
		}
		closers = append(closers, func() { dev.Close() })
		seg, err := segment.New(segment.BusFunc(func(reg, value byte) error {
			_, err := dev.Xfer([]byte{reg, value})
			return err
		}), 0x0F)
		if err != nil {
			log.Fatalf("init max7219: %v", err)
		}
		displays = append(displays, seg)
		blankers = append(blankers, seg.Blank)
	}

	var hour render.HourIndicator
	if *hourMatrix != "" {
		d, err := dotstar.Open(&xspi.Devfs{Dev: *hourMatrix, Mode: xspi.Mode3}, hourled.N)
		if err != nil {
			log.Fatalf("open dotstar: %v", err)
		}
		closers = append(closers, func() { d.Close() })
		m := hourled.New(d)
		if err := m.Blank(); err != nil {
			log.Fatalf("blank hour matrix: %v", err)
		}
		hour = m
		blankers = append(blankers, m.Blank)
	}

	var chime render.Chimer
	if *buzzerPin != "" {
		p, err := pin(*buzzerPin)
		if err != nil {
			log.Fatalf("buzzer: %v", err)
		}
		b, err := buzzer.New(p)
		if err != nil {
			log.Fatalf("init buzzer: %v", err)
		}
		log.Printf("hourly chime on %s stalls the scheduler for %v", p, b.Duration())
		chime = b
	}

	// Everything below runs until the first one of these fails.
	doneCh := make(chan error, 8)
	run := func(name string, f func(context.Context) error) {
		go func() {
			err := f(ctx)
			doneCh <- fmt.Errorf("%s: %w", name, err)
		}()
	}

	var presses chan journal.Press
	if *dbFile != "" {
		db, err := journal.OpenDatabase(*dbFile)
		if err != nil {
			log.Fatalf("open journal: %v", err)
		}
		closers = append(closers, func() { db.Close() })
		presses = make(chan journal.Press, 16)
		run("journal", func(ctx context.Context) error { return db.Record(ctx, presses) })
		run("journal counts", func(ctx context.Context) error {
			t := time.NewTicker(10 * time.Second)
			defer t.Stop()
			for {
				if counts, err := db.Counts(); err != nil {
					log.Printf("count presses: %v", err)
				} else {
					page.SetPresses(counts)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-t.C:
				}
			}
		})
	}

	src := buttons.New(sw, presses)
	closers = append(closers, src.Close)
	for _, b := range []struct {
		name   string
		button buttons.Button
	}{{*buttonA, buttons.A}, {*buttonB, buttons.B}} {
		if b.name == "" {
			log.Printf("no pin for button %v; it will not work", b.button)
			continue
		}
		p, err := pin(b.name)
		if err != nil {
			log.Fatalf("button %v: %v", b.button, err)
		}
		button := b.button
		run("button "+button.String(), func(ctx context.Context) error { return src.Watch(ctx, p, button) })
	}

	if *i2cBus != "" {
		bus, err := i2creg.Open(*i2cBus)
		if err != nil {
			log.Fatalf("open i2c bus %q: %v", *i2cBus, err)
		}
		closers = append(closers, func() { bus.Close() })
		dev, err := ambient.OpenBME280(bus)
		if err != nil {
			log.Fatalf("ambient sensor: %v", err)
		}
		m := ambient.NewMonitor(dev)
		m.OnReading = page.SetAmbient
		run("ambient", m.Run)
	}

	http.Handle("/", page)
	http.Handle("/display.png", leds)
	http.Handle("/metrics", promhttp.Handler())

	httpDoneCh := make(chan error)
	httpServer := http.Server{Addr: *bind}
	go func() {
		log.Printf("http server listening on %s", httpServer.Addr)
		err := httpServer.ListenAndServe()
		select {
		case httpDoneCh <- err:
		case <-ctx.Done():
		}
		close(httpDoneCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	s := scheduler.New(clock.New(startAt, time.Now()), sw, displays, hour, chime)
	schedulerDoneCh := make(chan error, 1)
	go func() { schedulerDoneCh <- s.Run(ctx) }()

	httpAlive, schedulerAlive := true, true
	select {
	case err := <-httpDoneCh:
		log.Printf("http server died: %v", err)
		httpAlive = false
	case err := <-doneCh:
		log.Printf("loop died: %v", err)
	case err := <-schedulerDoneCh:
		log.Printf("scheduler died: %v", err)
		schedulerAlive = false
	case <-sigCh:
		log.Printf("interrupt")
	}
	signal.Stop(sigCh)
	cancel()
	if schedulerAlive {
		select {
		case <-schedulerDoneCh:
		case <-time.After(time.Second):
			log.Printf("scheduler did not stop; blanking anyway")
		}
	}
	for _, blank := range blankers {
		if err := blank(); err != nil {
			log.Printf("blank: %v", err)
		}
	}
	if httpAlive {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	for _, c := range closers {
		c()
	}
	os.Exit(1)
}
