// SPDX-License-Identifier: MIT
package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"spectro/internal/gradient"
)

const testBins = 4096

func blackToWhite(t testing.TB) *gradient.Table {
	t.Helper()
	table, err := gradient.Build([]gradient.Stop{{}, {R: 65535, G: 65535, B: 65535}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return table
}

func flatSpectrum(power float64) []float64 {
	s := make([]float64, testBins)
	for i := range s {
		s[i] = power
	}
	return s
}

func rampSpectrum() []float64 {
	s := make([]float64, testBins)
	for i := range s {
		s[i] = math.Pow(10, 7*float64(i)/testBins)
	}
	return s
}

func TestDecibels(t *testing.T) {
	tests := []struct {
		name  string
		power float64
		want  float64
	}{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"NaN", math.NaN(), 0},
		{"below floor", 0.001, 0},
		{"unity", 1, 0},
		{"mid", 1e3, 30},
		{"ceiling", 1e7, 70},
		{"above ceiling", 1e12, 70},
		{"infinite", math.Inf(1), 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decibels(tt.power); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Decibels(%v) = %v, want %v", tt.power, got, tt.want)
			}
		})
	}
}

func TestColorIndexPinsToTableBounds(t *testing.T) {
	tests := []struct {
		db   float64
		want int
	}{
		{-10, gradient.TableSize - 1},
		{0, gradient.TableSize - 1},
		{35, 1024},
		{70, 0},
		{100, 0},
	}
	for _, tt := range tests {
		if got := ColorIndex(tt.db); got != tt.want {
			t.Errorf("ColorIndex(%v) = %d, want %d", tt.db, got, tt.want)
		}
	}

	// Silence and overload land on the table edges after the full mapping.
	if got := ColorIndex(Decibels(1e-9)); got != gradient.TableSize-1 {
		t.Errorf("quiet bin index = %d, want %d", got, gradient.TableSize-1)
	}
	if got := ColorIndex(Decibels(1e15)); got != 0 {
		t.Errorf("loud bin index = %d, want 0", got)
	}
}

func TestDrawBeforeFirstColumn(t *testing.T) {
	r := NewRenderer(8, 16)
	if r.State() != Uninitialized {
		t.Fatalf("State() = %v, want uninitialized", r.State())
	}
	for i, p := range r.Pixels(nil) {
		if p != Blank {
			t.Fatalf("pixel %d = %#x before first draw", i, p)
		}
	}
	if !r.Draw(flatSpectrum(1), blackToWhite(t)) {
		t.Fatal("Draw returned false")
	}
	if r.State() != Ready {
		t.Errorf("State() = %v after draw, want ready", r.State())
	}
}

func TestDrawMapsLoudnessThroughGradient(t *testing.T) {
	table := blackToWhite(t)
	r := NewRenderer(4, 32)

	// 0 dB maps to the end of the table (white), 70 dB to the start (black).
	r.Draw(flatSpectrum(0), table)
	for y, c := range r.LatestColumn(nil) {
		if c != uint32(table[gradient.TableSize-1]) {
			t.Fatalf("silent row %d = %#x, want %#x", y, c, uint32(table[gradient.TableSize-1]))
		}
	}

	r.Draw(flatSpectrum(1e9), table)
	for y, c := range r.LatestColumn(nil) {
		if c != uint32(table[0]) {
			t.Fatalf("loud row %d = %#x, want %#x", y, c, uint32(table[0]))
		}
	}
}

func TestHigherFrequenciesDrawnNearTop(t *testing.T) {
	table := blackToWhite(t)
	r := NewRenderer(1, 64)

	// Power rises with frequency, so the top row is loudest (darkest) and the
	// bottom row quietest (brightest).
	r.Draw(rampSpectrum(), table)
	col := r.LatestColumn(nil)
	top := gradient.Color(col[0]).Luminance()
	bottom := gradient.Color(col[len(col)-1]).Luminance()
	if top >= bottom {
		t.Errorf("top luminance %v >= bottom %v", top, bottom)
	}
}

func TestScrollShiftsColumnsLeft(t *testing.T) {
	table := blackToWhite(t)
	const w, h = 5, 12
	r := NewRenderer(w, h)

	loud := flatSpectrum(1e9)
	quiet := flatSpectrum(0)
	r.Draw(loud, table)
	before := r.Pixels(nil)

	r.Draw(quiet, table)
	after := r.Pixels(nil)

	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			if after[y*w+x] != before[y*w+x+1] {
				t.Fatalf("pixel (%d,%d) = %#x, want shifted %#x", x, y, after[y*w+x], before[y*w+x+1])
			}
		}
		if after[y*w+w-1] != uint32(table[gradient.TableSize-1]) {
			t.Fatalf("new column row %d = %#x", y, after[y*w+w-1])
		}
		if after[y*w+w-2] != uint32(table[0]) {
			t.Fatalf("previous column row %d = %#x", y, after[y*w+w-2])
		}
	}
}

func TestSteadyStateAfterWidthTicks(t *testing.T) {
	table := blackToWhite(t)
	const w, h = 7, 24
	r := NewRenderer(w, h)

	spectrum := rampSpectrum()
	for range w + 3 {
		r.Draw(spectrum, table)
	}

	want := r.LatestColumn(nil)
	pixels := r.Pixels(nil)
	for x := 0; x < w; x++ {
		for y := range want {
			if got := pixels[y*w+x]; got != want[y] {
				t.Fatalf("column %d row %d = %#x, want %#x", x, y, got, want[y])
			}
		}
	}
	if r.Drawn() != w+3 {
		t.Errorf("Drawn() = %d, want %d", r.Drawn(), w+3)
	}
}

func TestResizeDiscardsHistory(t *testing.T) {
	table := blackToWhite(t)
	r := NewRenderer(4, 4)
	r.Draw(flatSpectrum(1e9), table)

	r.Resize(6, 3)
	if w, h := r.Size(); w != 6 || h != 3 {
		t.Fatalf("Size() = %dx%d, want 6x3", w, h)
	}
	pixels := r.Pixels(nil)
	if len(pixels) != 18 {
		t.Fatalf("len(Pixels) = %d, want 18", len(pixels))
	}
	for i, p := range pixels {
		if p != Blank {
			t.Fatalf("pixel %d = %#x after resize, want blank", i, p)
		}
	}
	if r.Drawn() != 0 {
		t.Errorf("Drawn() = %d after resize", r.Drawn())
	}
}

func TestZeroSizedViewportIsNoop(t *testing.T) {
	table := blackToWhite(t)
	for _, size := range [][2]int{{0, 0}, {0, 10}, {10, 0}, {-1, 5}} {
		r := NewRenderer(size[0], size[1])
		if r.Draw(flatSpectrum(1), table) {
			t.Errorf("Draw on %v viewport returned true", size)
		}
		if got := r.Pixels(nil); len(got) != 0 {
			t.Errorf("Pixels on %v viewport = %d pixels", size, len(got))
		}
		if got := r.LatestColumn(nil); len(got) != 0 {
			t.Errorf("LatestColumn on %v viewport = %d pixels", size, len(got))
		}
	}
}

func TestDrawRejectsMissingInput(t *testing.T) {
	r := NewRenderer(2, 2)
	if r.Draw(nil, blackToWhite(t)) {
		t.Error("Draw with empty spectrum returned true")
	}
	if r.Draw(flatSpectrum(1), nil) {
		t.Error("Draw with nil table returned true")
	}
	if r.State() != Uninitialized {
		t.Errorf("State() = %v, want uninitialized", r.State())
	}
}

func TestSingleBinSpectrum(t *testing.T) {
	table := blackToWhite(t)
	r := NewRenderer(1, 8)
	if !r.Draw([]float64{1e9}, table) {
		t.Fatal("Draw returned false")
	}
	for y, c := range r.LatestColumn(nil) {
		if c != uint32(table[0]) {
			t.Fatalf("row %d = %#x", y, c)
		}
	}
}

func TestCloseTearsDown(t *testing.T) {
	r := NewRenderer(4, 4)
	r.Close()
	if r.State() != TornDown {
		t.Fatalf("State() = %v, want torn-down", r.State())
	}
	if r.Draw(flatSpectrum(1), blackToWhite(t)) {
		t.Error("Draw after Close returned true")
	}
	r.Resize(8, 8)
	if w, h := r.Size(); w != 0 || h != 0 {
		t.Errorf("Resize after Close changed size to %dx%d", w, h)
	}
	r.Close()
}

func TestWritePNG(t *testing.T) {
	table := blackToWhite(t)
	r := NewRenderer(3, 5)
	r.Draw(flatSpectrum(1e9), table)

	var buf bytes.Buffer
	if err := r.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 5 {
		t.Fatalf("bounds = %v, want 3x5", b)
	}

	// Newest column is black from the table, older columns blank (also black).
	rr, g, b, a := img.At(2, 0).RGBA()
	if rr != 0 || g != 0 || b != 0 || a != 0xFFFF {
		t.Errorf("pixel (2,0) = %d,%d,%d,%d", rr, g, b, a)
	}
}

func TestDrawHotPath(t *testing.T) {
	table := blackToWhite(t)
	r := NewRenderer(256, 128)
	spectrum := rampSpectrum()

	allocs := testing.AllocsPerRun(50, func() {
		r.Draw(spectrum, table)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Draw hot path, got %.1f", allocs)
	}
}

func BenchmarkDraw(b *testing.B) {
	table := blackToWhite(b)
	r := NewRenderer(1024, 512)
	spectrum := rampSpectrum()

	b.ReportAllocs()
	for b.Loop() {
		r.Draw(spectrum, table)
	}
}
