// Package segment drives an 8-digit MAX7219 7-segment display, on which the stopwatch is shown as
// HH.MM.SS with the digits in positions 8-7, 5-4, and 2-1.
package segment

import (
	"fmt"

	"github.com/jrockway/beaglebone-desk-clock/control/render"
)

// MAX7219 registers.
const (
	regDecodeMode  = 0x09
	regIntensity   = 0x0A
	regScanLimit   = 0x0B
	regShutdown    = 0x0C
	regDisplayTest = 0x0F

	blank      = 0x0F // code B blank
	decimalDot = 0x80
)

// Bus sends one 2-byte register write to the display.
type Bus interface {
	Write(reg, value byte) error
}

// BusFunc adapts a function to a Bus.
type BusFunc func(reg, value byte) error

func (f BusFunc) Write(reg, value byte) error { return f(reg, value) }

// Display is the stopwatch display.
type Display struct {
	bus Bus
}

// New initializes the display with intensity 0-15 and blanks it.
func New(bus Bus, intensity byte) (*Display, error) {
	d := &Display{bus: bus}
	init := [][2]byte{
		{regScanLimit, 0x07},
		{regDecodeMode, 0xFF},
		{regDisplayTest, 0x00},
		{regShutdown, 0x01},
		{regIntensity, intensity & 0x0F},
	}
	if err := d.write(init); err != nil {
		return nil, fmt.Errorf("init max7219: %w", err)
	}
	if err := d.write(digits(blanked)); err != nil {
		return nil, fmt.Errorf("blank max7219: %w", err)
	}
	return d, nil
}

func (d *Display) write(regs [][2]byte) error {
	for _, r := range regs {
		if err := d.bus.Write(r[0], r[1]); err != nil {
			return fmt.Errorf("write register %#x: %w", r[0], err)
		}
	}
	return nil
}

// blanked has every digit off except the last decimal point, so someone looking at the clock can
// tell that it still has power.
var blanked = [8]byte{blank | decimalDot, blank, blank, blank, blank, blank, blank, blank}

// stopwatchDigits returns the code B values for digit registers 1 through 8.
func stopwatchDigits(h, m, s int) [8]byte {
	h %= 100
	return [8]byte{
		byte(s % 10),
		byte(s / 10),
		blank,
		byte(m%10) | decimalDot,
		byte(m / 10),
		blank,
		byte(h%10) | decimalDot,
		byte(h / 10),
	}
}

func digits(v [8]byte) [][2]byte {
	result := make([][2]byte, 0, len(v))
	for i := len(v) - 1; i >= 0; i-- {
		result = append(result, [2]byte{byte(i + 1), v[i]})
	}
	return result
}

// Render shows the stopwatch part of snap.
func (d *Display) Render(snap render.Snapshot) error {
	h, m, s := snap.Stopwatch()
	if err := d.write(digits(stopwatchDigits(h, m, s))); err != nil {
		return fmt.Errorf("show stopwatch: %w", err)
	}
	return nil
}

// Blank turns off every digit except one decimal point.
func (d *Display) Blank() error {
	if err := d.write(digits(blanked)); err != nil {
		return fmt.Errorf("blank: %w", err)
	}
	return nil
}
