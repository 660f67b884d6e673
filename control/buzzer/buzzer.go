// Package buzzer sounds the hourly chime on a buzzer attached to a GPIO line.
package buzzer

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Out is the part of a periph.io gpio.PinOut that Buzzer needs.
type Out interface {
	Out(l gpio.Level) error
	String() string
}

// Buzzer drives a buzzer that sounds while its line is high.
type Buzzer struct {
	pin Out

	Pulses int           // number of beeps per chime
	On     time.Duration // length of each beep
	Off    time.Duration // silence after each beep
}

// New returns a Buzzer with the default chime of three 200ms beeps, and makes sure it is silent.
func New(pin Out) (*Buzzer, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("silence buzzer on %s: %w", pin, err)
	}
	return &Buzzer{
		pin:    pin,
		Pulses: 3,
		On:     200 * time.Millisecond,
		Off:    200 * time.Millisecond,
	}, nil
}

// Duration returns how long Chime blocks.
func (b *Buzzer) Duration() time.Duration {
	return time.Duration(b.Pulses) * (b.On + b.Off)
}

// Chime beeps Pulses times and returns when the last silence is over.  The line is left low even
// if a write fails partway through.
func (b *Buzzer) Chime() (retErr error) {
	defer func() {
		if err := b.pin.Out(gpio.Low); err != nil && retErr == nil {
			retErr = fmt.Errorf("silence buzzer on %s: %w", b.pin, err)
		}
	}()
	for i := 0; i < b.Pulses; i++ {
		if err := b.pin.Out(gpio.High); err != nil {
			return fmt.Errorf("beep %d on %s: %w", i, b.pin, err)
		}
		time.Sleep(b.On)
		if err := b.pin.Out(gpio.Low); err != nil {
			return fmt.Errorf("end beep %d on %s: %w", i, b.pin, err)
		}
		time.Sleep(b.Off)
	}
	return nil
}
