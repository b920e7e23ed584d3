// SPDX-License-Identifier: MIT
/*
Package gradient builds the colour lookup table used to paint spectrogram
columns. A table is derived from 1..7 user stops spaced evenly over [0,1]
and is immutable once built; the Palette swaps whole tables atomically so
the render loop never observes a partial rebuild.
*/
package gradient

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	TableSize = 2048 // Number of entries in a gradient table.
	MaxStops  = 7    // Maximum number of user colour stops.

	channelMax = 65535.0 // Full scale of a stop channel.
)

// ErrStopCount is returned when a table is requested from zero or more than
// MaxStops stops.
var ErrStopCount = errors.New("gradient: stop count must be between 1 and 7")

// Stop is a user colour anchor. Channels use the 16-bit range of the
// persisted "R G B" encoding.
type Stop struct {
	R, G, B uint16
}

// Color is an opaque packed pixel, 0xFFRRGGBB.
type Color uint32

// RGB packs 8-bit channels into an opaque Color.
func RGB(r, g, b uint8) Color {
	return Color(0xFF000000 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGB unpacks the colour channels.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Luminance returns the Rec. 601 luma of c in [0,255].
func (c Color) Luminance() float64 {
	r, g, b := c.RGB()
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Table is a fixed-size gradient lookup table.
type Table [TableSize]Color

// At returns the colour at index i, clamping i to the table bounds.
func (t *Table) At(i int) Color {
	if i < 0 {
		i = 0
	} else if i >= TableSize {
		i = TableSize - 1
	}
	return t[i]
}

// Build interpolates stops into a new table. Stop n sits at position
// n/(len(stops)-1); entry i samples position i/TableSize.
func Build(stops []Stop) (*Table, error) {
	if len(stops) == 0 || len(stops) > MaxStops {
		return nil, fmt.Errorf("%w: got %d", ErrStopCount, len(stops))
	}

	t := new(Table)
	segments := len(stops) - 1
	if segments == 0 {
		c := pack(stops[0].keypoint())
		for i := range t {
			t[i] = c
		}
		return t, nil
	}

	keys := make([]colorful.Color, len(stops))
	for i, s := range stops {
		keys[i] = s.keypoint()
	}

	for i := range t {
		position := foldPosition(float64(i) / TableSize)
		m := float64(segments) * position
		n := int(m)
		f := m - float64(n)

		switch {
		case n < segments:
			t[i] = pack(keys[n].BlendRgb(keys[n+1], f))
		default:
			// n == segments only at position 1.0.
			t[i] = pack(keys[segments])
		}
	}
	return t, nil
}

// foldPosition maps positions above 1 back into range: an exact integer
// becomes 1, anything else keeps its fractional part.
func foldPosition(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p <= 1 {
		return p
	}
	frac := p - math.Floor(p)
	if frac == 0 {
		return 1
	}
	return frac
}

func (s Stop) keypoint() colorful.Color {
	return colorful.Color{
		R: float64(s.R) / channelMax,
		G: float64(s.G) / channelMax,
		B: float64(s.B) / channelMax,
	}
}

func pack(c colorful.Color) Color {
	return RGB(c.Clamped().RGB255())
}

// Palette holds the current table. Readers call Load once per frame and use
// the returned table for the whole frame.
type Palette struct {
	table atomic.Pointer[Table]
}

// NewPalette builds the initial table from stops.
func NewPalette(stops []Stop) (*Palette, error) {
	p := &Palette{}
	if err := p.Rebuild(stops); err != nil {
		return nil, err
	}
	return p, nil
}

// Load returns the current table. It is never nil for a Palette created by
// NewPalette.
func (p *Palette) Load() *Table {
	return p.table.Load()
}

// Rebuild builds a new table from stops and swaps it in. On error the
// previous table stays in place.
func (p *Palette) Rebuild(stops []Stop) error {
	t, err := Build(stops)
	if err != nil {
		return err
	}
	p.table.Store(t)
	return nil
}
