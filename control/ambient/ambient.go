// Package ambient reads the temperature, pressure, and humidity near the clock from a BME280.
package ambient

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// Address is the I2C address of the BME280 on the clock's board.
const Address = 0x77

var (
	temperatureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ambient_temperature_celsius",
		Help: "temperature near the clock",
	})
	pressureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ambient_pressure_pascals",
		Help: "air pressure near the clock",
	})
	humidityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ambient_relative_humidity_percent",
		Help: "relative humidity near the clock",
	})
	readErrorsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ambient_read_errors_total",
		Help: "count of failed sensor reads",
	})
)

// Sensor is anything that senses the environment, like a *bmxx80.Dev.
type Sensor interface {
	Sense(e *physic.Env) error
}

// OpenBME280 opens the BME280 on bus with 16x oversampling on every channel.
func OpenBME280(bus i2c.Bus) (*bmxx80.Dev, error) {
	opts := bmxx80.Opts{Temperature: bmxx80.O16x, Pressure: bmxx80.O16x, Humidity: bmxx80.O16x}
	dev, err := bmxx80.NewI2C(bus, Address, &opts)
	if err != nil {
		return nil, fmt.Errorf("init bme280: %w", err)
	}
	return dev, nil
}

// Reading is one sample from the sensor.
type Reading struct {
	physic.Env
	At time.Time
}

// Celsius returns the temperature in degrees Celsius.
func (r Reading) Celsius() float64 {
	return float64(r.Temperature-physic.ZeroCelsius) / float64(physic.Kelvin)
}

// Pascals returns the pressure in pascals.
func (r Reading) Pascals() float64 { return float64(r.Pressure) / float64(physic.Pascal) }

// Percent returns the relative humidity in percent.
func (r Reading) Percent() float64 { return float64(r.Humidity) / float64(physic.PercentRH) }

// Monitor polls a sensor.
type Monitor struct {
	Sensor   Sensor
	Interval time.Duration

	// OnReading, if set, is called with every successful reading.
	OnReading func(Reading)
}

// NewMonitor returns a monitor that reads s every 30 seconds.
func NewMonitor(s Sensor) *Monitor {
	return &Monitor{Sensor: s, Interval: 30 * time.Second}
}

// Poll takes one reading.
func (m *Monitor) Poll(now time.Time) (Reading, error) {
	r := Reading{At: now}
	if err := m.Sensor.Sense(&r.Env); err != nil {
		readErrorsCounter.Inc()
		return Reading{}, fmt.Errorf("read sensor: %w", err)
	}
	temperatureGauge.Set(r.Celsius())
	pressureGauge.Set(r.Pascals())
	humidityGauge.Set(r.Percent())
	if m.OnReading != nil {
		m.OnReading(r)
	}
	return r, nil
}

// Run polls immediately and then every Interval until the context is done.  Read errors are
// logged and do not stop the loop.
func (m *Monitor) Run(ctx context.Context) error {
	l := trace.NewEventLog("sensor", "environment")
	defer l.Finish()
	log.Printf("starting bme280 loop")
	t := time.NewTicker(m.Interval)
	defer t.Stop()
	for {
		if r, err := m.Poll(time.Now()); err != nil {
			l.Errorf("error: %v", err)
		} else {
			l.Printf("Temp: %v, Pressure: %v, Humidity: %v", r.Temperature, r.Pressure, r.Humidity)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ambient monitor: %w", ctx.Err())
		case <-t.C:
		}
	}
}
