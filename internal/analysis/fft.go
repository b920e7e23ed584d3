// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	applog "spectro/internal/log"
	"spectro/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

var logger = applog.For("analysis")

var (
	// ErrInitBuffers is returned when the analyzer cannot set up its
	// transform workspace.
	ErrInitBuffers = errors.New("failed to initialize analysis buffers")
	// ErrClosed is returned by Analyze after Close.
	ErrClosed = errors.New("analyzer closed")
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions. The zero value is Hann.
const (
	Hann WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[WindowFunc]string{
	BartlettHann:    "BartlettHann",
	Blackman:        "Blackman",
	BlackmanNuttall: "BlackmanNuttall",
	Hann:            "Hann",
	Hamming:         "Hamming",
	Lanczos:         "Lanczos",
	Nuttall:         "Nuttall",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// Pre-allocated buffers for one analysis pass.
type fftWorkspace struct {
	input  []float64    // Windowed input signal.
	coeffs []complex128 // FFT complex results, N/2+1 bins.
	power  []float64    // Power spectrum handed to the caller, N/2 bins.
	window []float64    // Pre-calculated window coefficients.
}

// Analyzer turns a window of samples into a power spectrum. Each spectrogram
// owns its own Analyzer; the workspace is allocated once in NewAnalyzer and
// reused by every Analyze call.
//
// Analyze is meant to be called from a single render goroutine. The mutex
// only orders Analyze against Close.
type Analyzer struct {
	mu            sync.Mutex
	fftCalculator *fourier.FFT
	fftSize       int
	windowType    WindowFunc
	workspace     fftWorkspace
	closed        bool
}

// Compile-time check for interface implementation.
var _ Transformer = (*Analyzer)(nil)

// NewAnalyzer allocates the transform plan and buffers for fftSize samples.
func NewAnalyzer(fftSize int, windowType WindowFunc) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(fftSize) || fftSize < 4 {
		return nil, fmt.Errorf("%w: fft size must be a power of 2 >= 4, got %d", ErrInitBuffers, fftSize)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	logger.Infof("Initializing analyzer (Size: %d, Bins: %d, Window: %s)", fftSize, fftSize/2, windowType)

	return &Analyzer{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		windowType:    windowType,
		workspace: fftWorkspace{
			input:  make([]float64, fftSize),
			coeffs: make([]complex128, fftSize/2+1),
			power:  make([]float64, fftSize/2),
			window: windowCoeffs,
		},
	}, nil
}

// Analyze windows samples, runs the real FFT and returns the power spectrum
// |X[k]|² for k in [0, N/2). No normalisation is applied.
//
// The returned slice is owned by the Analyzer and overwritten by the next
// call; copy it to keep it.
func (a *Analyzer) Analyze(samples []float64) ([]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}
	if len(samples) != a.fftSize {
		return nil, fmt.Errorf("analysis: expected %d samples, got %d", a.fftSize, len(samples))
	}

	ws := &a.workspace
	for i, s := range samples {
		ws.input[i] = s * ws.window[i]
	}

	a.fftCalculator.Coefficients(ws.coeffs, ws.input)

	for i := range ws.power {
		c := ws.coeffs[i]
		re, im := real(c), imag(c)
		ws.power[i] = re*re + im*im
	}
	return ws.power, nil
}

// FrequencyForBin returns the centre frequency (Hz) of bin at sampleRate.
func (a *Analyzer) FrequencyForBin(bin int, sampleRate float64) float64 {
	if bin < 0 || bin >= a.Bins() {
		return 0
	}
	return float64(bin) * sampleRate / float64(a.fftSize)
}

// Size returns the number of input samples per pass.
func (a *Analyzer) Size() int {
	return a.fftSize
}

// Bins returns the number of power bins per pass (N/2).
func (a *Analyzer) Bins() int {
	return a.fftSize / 2
}

// Close releases the workspace. It must be called after the render loop has
// stopped; Analyze calls after Close return ErrClosed.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.fftCalculator = nil
	a.workspace = fftWorkspace{}
	logger.Debugf("Closed analyzer (Size: %d)", a.fftSize)
	return nil
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall back
// to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// gonum window functions scale the slice in place.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		logger.Warnf("Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
