// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Meter tracks the peak absolute amplitude of the last buffer. Update is
// called from the audio callback, Peak from any goroutine.
type Meter struct {
	bits atomic.Uint64
}

// Update records the peak of buffer.
func (m *Meter) Update(buffer []float32) {
	var peak float32
	for _, s := range buffer {
		if a := abs32(s); a > peak {
			peak = a
		}
	}
	m.bits.Store(math.Float64bits(float64(min(peak, 1))))
}

// Peak returns the last recorded peak in [0, 1].
func (m *Meter) Peak() float64 {
	return math.Float64frombits(m.bits.Load())
}

// PeakDBFS returns the last peak in dBFS, floored at -96.
func (m *Meter) PeakDBFS() float64 {
	p := m.Peak()
	if p <= 0 {
		return -96
	}
	return max(20*math.Log10(p), -96)
}

// abs32 clears the sign bit instead of branching.
func abs32(v float32) float32 {
	return math.Float32frombits(math.Float32bits(v) &^ (1 << 31))
}
