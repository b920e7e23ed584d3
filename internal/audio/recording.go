// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrRecordingFull    = errors.New("recording reached maximum duration")
	ErrRecorderClosed   = errors.New("recorder closed")
	ErrAlreadyRecording = errors.New("already recording")
)

// Recorder writes interleaved float32 samples to a PCM WAV file.
type Recorder struct {
	mu        sync.Mutex
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion
	channels  int
	fullScale float64
	maxFrames int // 0 for unlimited
	frames    int
}

// NewRecorder creates path and writes a WAV header for the given format.
// bitDepth is 16, 24 or 32. maxDuration of zero records without limit.
func NewRecorder(path string, sampleRate, channels, bitDepth int, maxDuration time.Duration) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if channels < 1 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid format: %d channels @ %d Hz", channels, sampleRate)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		file:      file,
		encoder:   wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		channels:  channels,
		fullScale: float64(int64(1)<<(bitDepth-1) - 1),
		maxFrames: int(maxDuration.Seconds() * float64(sampleRate)),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
		},
	}
	return r, nil
}

// Write appends interleaved samples in [-1, 1]; values outside are clipped.
// Once the maximum duration is reached the remaining samples are dropped
// and ErrRecordingFull is returned.
func (r *Recorder) Write(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return ErrRecorderClosed
	}

	frames := len(samples) / r.channels
	full := false
	if r.maxFrames > 0 && r.frames+frames >= r.maxFrames {
		frames = r.maxFrames - r.frames
		full = true
	}
	samples = samples[:frames*r.channels]

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]
	for i, s := range samples {
		s = min(max(s, -1), 1)
		r.sampleBuf.Data[i] = int(float64(s) * r.fullScale)
	}

	if len(samples) > 0 {
		if err := r.encoder.Write(r.sampleBuf); err != nil {
			return err
		}
	}
	r.frames += frames

	if full {
		return ErrRecordingFull
	}
	return nil
}

// Frames returns the number of frames written.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalises the WAV header and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return nil
	}
	encErr := r.encoder.Close()
	fileErr := r.file.Close()
	r.encoder = nil
	r.file = nil
	return errors.Join(encErr, fileErr)
}

// StartRecording begins writing captured input to filename. An empty
// filename generates one in the configured output directory.
func (e *Engine) StartRecording(filename string) error {
	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}

	if filename == "" {
		dir := e.rec.OutputDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
		filename = filepath.Join(dir, fmt.Sprintf("input-%s.wav", time.Now().Format("20060102-150405")))
	}

	bitDepth := e.rec.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	r, err := NewRecorder(filename, int(e.cfg.SampleRate), e.cfg.InputChannels, bitDepth,
		time.Duration(e.rec.MaxDuration)*time.Second)
	if err != nil {
		return err
	}

	if !e.recorder.CompareAndSwap(nil, r) {
		_ = r.Close()
		_ = os.Remove(filename)
		return ErrAlreadyRecording
	}
	logger.Infof("Recording input to %s", filename)
	return nil
}

// StopRecording finalises the current recording, if any.
func (e *Engine) StopRecording() error {
	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	logger.Infof("Recording stopped after %d frames", r.Frames())
	return r.Close()
}

// Recording reports whether input is being recorded.
func (e *Engine) Recording() bool {
	return e.recorder.Load() != nil
}
