// SPDX-License-Identifier: MIT
/*
Package render paints power spectra into a scrolling spectrogram image.

Each Draw produces one column: spectral bins are mapped onto a logarithmic
frequency axis (low frequencies get more rows), compressed to decibels over a
fixed 70 dB range and looked up in a gradient table. New columns appear at the
right edge and older ones scroll left.

Columns are stored in a ring indexed by head, so a tick writes H pixels
instead of moving W*H; Pixels reorders the ring oldest to newest when the
image is presented.
*/
package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"sync"

	"spectro/internal/gradient"
)

const (
	// Blank is the colour of pixels that have not been drawn yet.
	Blank uint32 = 0xFF000000

	dbRange = 70.0 // Displayed dynamic range in decibels.

	// Row i samples bins around 10^((i+rowOffset)/logScale); the offset skips
	// the lowest bins, which carry DC and window leakage.
	rowOffset = 10
)

// State is the lifecycle of a Renderer.
type State int

const (
	Uninitialized State = iota // No column drawn yet.
	Ready                      // At least one column drawn.
	TornDown                   // Closed; Draw is a no-op.
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case TornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Renderer owns the spectrogram image. Draw is called from the render loop;
// the presentation methods may be called from any goroutine.
type Renderer struct {
	mu     sync.RWMutex
	state  State
	width  int
	height int

	// columns holds width columns of height pixels each, column-major.
	// head is the slot the next column is written to, i.e. the oldest one.
	columns []uint32
	head    int

	scratch []uint32 // Column being built, reused across ticks.
	drawn   uint64   // Columns drawn since the last resize.
}

// NewRenderer creates a renderer for a width x height viewport. Zero sizes
// are allowed; drawing into them is a no-op until Resize.
func NewRenderer(width, height int) *Renderer {
	r := &Renderer{}
	r.resize(width, height)
	return r
}

// Resize discards the image and allocates a blank one at the new size. It is
// a no-op when the size is unchanged.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == TornDown || (width == r.width && height == r.height) {
		return
	}
	r.resize(width, height)
}

func (r *Renderer) resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	r.width, r.height = width, height
	r.columns = make([]uint32, width*height)
	for i := range r.columns {
		r.columns[i] = Blank
	}
	r.scratch = make([]uint32, height)
	r.head = 0
	r.drawn = 0
}

// Draw maps one power spectrum through table into a new rightmost column and
// scrolls the image left by one pixel. It reports whether a column was drawn.
func (r *Renderer) Draw(power []float64, table *gradient.Table) bool {
	if len(power) == 0 || table == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == TornDown || r.width == 0 || r.height == 0 {
		return false
	}

	fillColumn(r.scratch, power, table)

	slot := r.head * r.height
	copy(r.columns[slot:slot+r.height], r.scratch)
	r.head = (r.head + 1) % r.width
	r.drawn++
	r.state = Ready
	return true
}

// fillColumn writes one column of len(dst) pixels, top row first.
func fillColumn(dst []uint32, power []float64, table *gradient.Table) {
	height := len(dst)
	bins := len(power)
	if bins < 2 {
		// log10(1) is zero; every row reads bin 0.
		c := uint32(table.At(ColorIndex(Decibels(power[0]))))
		for i := range dst {
			dst[i] = c
		}
		return
	}

	logScale := float64(height) / math.Log10(float64(bins))
	for i := 0; i < height; i++ {
		index0 := binIndex(i+rowOffset, logScale, bins)
		index1 := binIndex(i+rowOffset+1, logScale, bins)

		var magnitude float64
		if i == height-1 {
			magnitude = power[index0]
		} else {
			magnitude = peak(power, index0, index1)
		}

		dst[height-1-i] = uint32(table.At(ColorIndex(Decibels(magnitude))))
	}
}

// binIndex returns round(10^(row/logScale)) clamped to [0, bins-1].
func binIndex(row int, logScale float64, bins int) int {
	v := math.Round(math.Pow(10, float64(row)/logScale))
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > float64(bins-1) {
		return bins - 1
	}
	return int(v)
}

func peak(power []float64, from, to int) float64 {
	if to < from {
		from, to = to, from
	}
	m := power[from]
	for _, v := range power[from+1 : to+1] {
		if v > m {
			m = v
		}
	}
	return m
}

// Decibels converts power to dB clamped to [0, 70]. Zero, negative and NaN
// power map to 0 dB.
func Decibels(power float64) float64 {
	if !(power > 0) {
		return 0
	}
	db := 10 * math.Log10(power)
	if db < 0 {
		return 0
	}
	if db > dbRange {
		return dbRange
	}
	return db
}

// ColorIndex maps a decibel value to a gradient table index; louder values
// map toward the start of the table.
func ColorIndex(db float64) int {
	idx := gradient.TableSize - int(math.Round(gradient.TableSize/dbRange*db))
	if idx < 0 {
		return 0
	}
	if idx > gradient.TableSize-1 {
		return gradient.TableSize - 1
	}
	return idx
}

// State returns the current lifecycle state.
func (r *Renderer) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Size returns the viewport dimensions.
func (r *Renderer) Size() (width, height int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.width, r.height
}

// Drawn returns the number of columns drawn since the last resize.
func (r *Renderer) Drawn() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.drawn
}

// Pixels copies the image into dst in row-major order, 0xFFRRGGBB per pixel,
// and returns it. dst is reallocated when too small.
func (r *Renderer) Pixels(dst []uint32) []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.width * r.height
	if cap(dst) < n {
		dst = make([]uint32, n)
	}
	dst = dst[:n]
	for x := 0; x < r.width; x++ {
		col := r.column(x)
		for y, c := range col {
			dst[y*r.width+x] = c
		}
	}
	return dst
}

// LatestColumn copies the rightmost column into dst.
func (r *Renderer) LatestColumn(dst []uint32) []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.width == 0 {
		return dst[:0]
	}
	return append(dst[:0], r.column(r.width-1)...)
}

// column returns the storage of screen column x. Callers hold r.mu.
func (r *Renderer) column(x int) []uint32 {
	slot := (r.head + x) % r.width
	return r.columns[slot*r.height : (slot+1)*r.height]
}

// Image converts the spectrogram to an *image.RGBA.
func (r *Renderer) Image() *image.RGBA {
	r.mu.RLock()
	defer r.mu.RUnlock()

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	for x := 0; x < r.width; x++ {
		for y, c := range r.column(x) {
			off := img.PixOffset(x, y)
			img.Pix[off+0] = uint8(c >> 16)
			img.Pix[off+1] = uint8(c >> 8)
			img.Pix[off+2] = uint8(c)
			img.Pix[off+3] = 0xFF
		}
	}
	return img
}

// WritePNG encodes the current image as PNG.
func (r *Renderer) WritePNG(w io.Writer) error {
	if err := png.Encode(w, r.Image()); err != nil {
		return fmt.Errorf("render: failed to encode png: %w", err)
	}
	return nil
}

// Close releases the image. Draw and Resize become no-ops.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = TornDown
	r.columns = nil
	r.scratch = nil
	r.width, r.height = 0, 0
	r.head = 0
}
