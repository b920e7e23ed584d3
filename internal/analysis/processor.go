// SPDX-License-Identifier: MIT
package analysis

// Transformer turns a full sample window into a power spectrum. The render
// loop depends on this rather than on *Analyzer so tests can substitute a
// fixed spectrum.
type Transformer interface {
	// Analyze returns Bins() power values for Size() input samples. The
	// result may alias internal storage and is only valid until the next call.
	Analyze(samples []float64) ([]float64, error)
	// FrequencyForBin returns the centre frequency of bin in Hz.
	FrequencyForBin(bin int, sampleRate float64) float64
	Size() int
	Bins() int
	Close() error
}
