// SPDX-License-Identifier: MIT
/*
Package window keeps the most recent N samples of a live audio stream at the
canonical rate.

Thread Safety:
- Push is called from the audio producer (potentially a real-time callback)
- Snapshot/SnapshotInto are called from the render loop
- Both take the same mutex; the lock is never held while analysing
*/
package window

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

const (
	CanonicalRate = 44100 // All input is resampled to this rate (Hz).
	DefaultSize   = 8192  // Reference analysis window size.
)

var (
	// ErrInitBuffers is returned when the window storage cannot be set up.
	ErrInitBuffers = errors.New("failed to initialize analysis buffers")
	// ErrClosed is returned when reading a window whose storage was released.
	ErrClosed = errors.New("sample window closed")
)

// Frame is one unit of decoded audio delivered by the host: Frames frames of
// Channels interleaved samples each.
type Frame struct {
	SampleRate float64
	Channels   int
	Frames     int
	Data       []float32
}

// SampleWindow is a fixed-capacity history of the most recent samples.
// The zero value has no storage and ignores pushes.
type SampleWindow struct {
	mu       sync.Mutex
	samples  []float64
	buffered int
}

// NewSampleWindow allocates a window of size samples.
func NewSampleWindow(size int) (*SampleWindow, error) {
	if size < 2 {
		return nil, fmt.Errorf("%w: window size must be at least 2, got %d", ErrInitBuffers, size)
	}
	return &SampleWindow{samples: make([]float64, size)}, nil
}

// Push appends a frame, resampled to CanonicalRate by nearest neighbour and
// downmixed by taking the largest absolute channel value. The oldest samples
// are discarded to make room.
func (w *SampleWindow) Push(f Frame) {
	if f.SampleRate <= 0 || f.Channels <= 0 || f.Frames <= 0 {
		return
	}
	frames := f.Frames
	if avail := len(f.Data) / f.Channels; frames > avail {
		frames = avail
	}
	if frames == 0 {
		return
	}
	ratio := f.SampleRate / CanonicalRate

	w.mu.Lock()
	defer w.mu.Unlock()

	size := len(w.samples)
	if size == 0 {
		return
	}

	sz := int(float64(frames) / ratio)
	if sz > size {
		sz = size
	}
	if sz <= 0 {
		return
	}

	// Shift left by sz, leaving the gap at the end.
	n := size - sz
	copy(w.samples, w.samples[sz:])

	pos := 0.0
	for i := 0; i < sz; i, pos = i+1, pos+ratio {
		idx := int(math.Round(pos))
		if idx >= frames {
			idx = frames - 1
		}
		base := idx * f.Channels
		var peak float64
		for c := 0; c < f.Channels; c++ {
			if v := math.Abs(float64(f.Data[base+c])); v > peak {
				peak = v
			}
		}
		w.samples[n+i] = peak
	}

	w.buffered += sz
	if w.buffered > size {
		w.buffered = size
	}
}

// Snapshot returns a copy of the window, oldest sample first. It returns nil
// once the window has been closed.
func (w *SampleWindow) Snapshot() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.samples == nil {
		return nil
	}
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}

// SnapshotInto copies the window into dst without allocating and returns the
// number of slots holding real data. dst must have length Size().
func (w *SampleWindow) SnapshotInto(dst []float64) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.samples == nil {
		return 0, ErrClosed
	}
	if len(dst) != len(w.samples) {
		return 0, fmt.Errorf("destination length %d does not match window size %d", len(dst), len(w.samples))
	}
	copy(dst, w.samples)
	return w.buffered, nil
}

// Buffered reports how many slots hold real data.
func (w *SampleWindow) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buffered
}

// Ready reports whether at least half the window holds real data, the
// minimum for a meaningful analysis pass.
func (w *SampleWindow) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.samples != nil && w.buffered >= len(w.samples)/2
}

// Size returns the window capacity, or 0 after Close.
func (w *SampleWindow) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

// Close releases the storage. Later pushes are ignored.
func (w *SampleWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = nil
	w.buffered = 0
}
