// Package fixed58 is a 5x8 bitmap font for the LED face.  It only has the characters a clock
// needs: digits, space, and a little punctuation.  Glyphs are four pixels wide so that adjacent
// characters have a column of space between them.
package fixed58

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const (
	Width  = 5
	Height = 8
)

// glyphs are in the order of Ranges.
var glyphs = [][Height]string{
	// ' '
	{".....", ".....", ".....", ".....", ".....", ".....", ".....", "....."},
	// '-'
	{".....", ".....", ".....", "####.", ".....", ".....", ".....", "....."},
	// '.'
	{".....", ".....", ".....", ".....", ".....", ".....", ".#...", "....."},
	// '/'
	{"...#.", "..#..", "..#..", ".#...", ".#...", "#....", "#....", "....."},
	// '0'
	{".##..", "#..#.", "#..#.", "#..#.", "#..#.", "#..#.", ".##..", "....."},
	// '1'
	{"..#..", ".##..", "..#..", "..#..", "..#..", "..#..", ".###.", "....."},
	// '2'
	{".##..", "#..#.", "...#.", "..#..", ".#...", "#....", "####.", "....."},
	// '3'
	{"###..", "...#.", "...#.", ".##..", "...#.", "...#.", "###..", "....."},
	// '4'
	{"#..#.", "#..#.", "#..#.", "####.", "...#.", "...#.", "...#.", "....."},
	// '5'
	{"####.", "#....", "###..", "...#.", "...#.", "#..#.", ".##..", "....."},
	// '6'
	{".##..", "#....", "#....", "###..", "#..#.", "#..#.", ".##..", "....."},
	// '7'
	{"####.", "...#.", "..#..", "..#..", ".#...", ".#...", ".#...", "....."},
	// '8'
	{".##..", "#..#.", "#..#.", ".##..", "#..#.", "#..#.", ".##..", "....."},
	// '9'
	{".##..", "#..#.", "#..#.", ".###.", "...#.", "...#.", ".##..", "....."},
	// ':'
	{".....", ".....", ".#...", ".....", ".....", ".#...", ".....", "....."},
	// replacement character
	{"####.", "#..#.", "#..#.", "#..#.", "#..#.", "#..#.", "####.", "....."},
}

// Ranges maps runes to glyph indices.
var Ranges = []basicfont.Range{
	{Low: ' ', High: '!', Offset: 0},
	{Low: '-', High: ';', Offset: 1},
	{Low: '\ufffd', High: '\ufffe', Offset: 15},
}

// Mask5x8 holds every glyph, stacked vertically.
var Mask5x8 = buildMask()

func buildMask() *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, Width, Height*len(glyphs)))
	for i, g := range glyphs {
		for y, row := range g {
			for x, c := range row {
				if c == '#' {
					m.Pix[m.PixOffset(x, i*Height+y)] = 0xff
				}
			}
		}
	}
	return m
}

// Face returns a font.Face that draws with this font.
func Face() font.Face {
	return &basicfont.Face{
		Advance: Width,
		Width:   Width,
		Height:  Height,
		Ascent:  Height,
		Descent: 0,
		Mask:    Mask5x8,
		Ranges:  Ranges,
	}
}
