// Package hourled shows the current hour on a 5x5 matrix of APA102 LEDs.
//
// LEDs are numbered row-major from the top left.  Hours 1 through 9 are drawn as a 3x5 numeral in
// the middle three columns; 10, 11, and 12 put a one-column "1" in the first column and the second
// digit in the last three.
package hourled

import (
	"fmt"

	"github.com/goiot/devices/dotstar"
)

// Size is the width and height of the matrix.
const Size = 5

// N is the number of LEDs in the matrix.
const N = Size * Size

// numerals are 3x5 digits, top row first.
var numerals = [10][Size]string{
	{"###", "#.#", "#.#", "#.#", "###"},
	{".#.", "##.", ".#.", ".#.", "###"},
	{"###", "..#", "###", "#..", "###"},
	{"###", "..#", ".##", "..#", "###"},
	{"#.#", "#.#", "###", "..#", "..#"},
	{"###", "#..", "###", "..#", "###"},
	{"###", "#..", "###", "#.#", "###"},
	{"###", "..#", ".#.", ".#.", ".#."},
	{"###", "#.#", "###", "#.#", "###"},
	{"###", "#.#", "###", "..#", "###"},
}

var (
	amColor = dotstar.RGBA{R: 0xff, G: 0x60, B: 0x00, A: 4}
	pmColor = dotstar.RGBA{R: 0x10, G: 0x40, B: 0xff, A: 4}
	off     = dotstar.RGBA{}
)

// Pattern returns which LEDs are lit for hour, which must be in [1, 12].
func Pattern(hour int) ([N]bool, error) {
	var lit [N]bool
	if hour < 1 || hour > 12 {
		return lit, fmt.Errorf("hour %d out of range [1, 12]", hour)
	}
	digit, col := hour, 1
	if hour >= 10 {
		for y := 0; y < Size; y++ {
			lit[y*Size] = true
		}
		digit, col = hour-10, 2
	}
	for y, row := range numerals[digit] {
		for x, c := range row {
			if c == '#' {
				lit[y*Size+col+x] = true
			}
		}
	}
	return lit, nil
}

// Strip is the part of a dotstar.LEDs that Matrix needs.
type Strip interface {
	SetRGBA(i int, v dotstar.RGBA)
	Draw() error
}

// Matrix is an hour indicator.
type Matrix struct {
	strip Strip
}

// New returns a Matrix that draws to strip, which must have at least N LEDs.
func New(strip Strip) *Matrix {
	return &Matrix{strip: strip}
}

// ShowHour draws hour in amber before noon and blue after.
func (m *Matrix) ShowHour(hour int, pm bool) error {
	lit, err := Pattern(hour)
	if err != nil {
		return err
	}
	color := amColor
	if pm {
		color = pmColor
	}
	for i, on := range lit {
		if on {
			m.strip.SetRGBA(i, color)
		} else {
			m.strip.SetRGBA(i, off)
		}
	}
	if err := m.strip.Draw(); err != nil {
		return fmt.Errorf("draw hour %d: %w", hour, err)
	}
	return nil
}

// Blank turns off every LED.
func (m *Matrix) Blank() error {
	for i := 0; i < N; i++ {
		m.strip.SetRGBA(i, off)
	}
	return m.strip.Draw()
}
