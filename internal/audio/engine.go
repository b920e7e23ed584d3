// SPDX-License-Identifier: MIT
/*
Package audio captures live input with PortAudio and reads and writes WAV
files.

The capture callback is the producer side of the spectrogram: each buffer
PortAudio delivers is wrapped in a window.Frame and pushed to a FrameSink.

Thread Safety:
- Recording state is swapped atomically; the callback never blocks on Start/StopRecording
- Buffers are pre-allocated to avoid GC in the hot path
- The callback locks its OS thread while processing
*/
package audio

import (
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"spectro/internal/config"
	applog "spectro/internal/log"
	"spectro/internal/window"
)

var logger = applog.For("audio")

// FrameSink receives captured audio. Push is called from the audio callback
// and must not block.
type FrameSink interface {
	Push(f window.Frame)
}

type Engine struct {
	cfg  config.AudioConfig
	rec  config.RecordingConfig
	sink FrameSink

	// Audio input handling.
	inputBuffer  []float32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	level Meter

	// Recording state. The callback loads the pointer once per buffer.
	recorder      atomic.Pointer[Recorder]
	writeFailures int // Consecutive failed writes, callback only.
}

// NewEngine resolves the configured input device. PortAudio must be
// initialized.
func NewEngine(cfg *config.Config, sink FrameSink) (*Engine, error) {
	if sink == nil {
		return nil, errors.New("audio: frame sink cannot be nil")
	}
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	e := newEngine(cfg, sink)
	e.inputDevice = inputDevice
	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	logger.Infof("Using input device %q (%d ch @ %.0f Hz, %d frames/buffer, latency %s)",
		inputDevice.Name, cfg.Audio.InputChannels, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer, e.inputLatency)
	return e, nil
}

func newEngine(cfg *config.Config, sink FrameSink) *Engine {
	return &Engine{
		cfg:         cfg.Audio,
		rec:         cfg.Recording,
		sink:        sink,
		inputBuffer: make([]float32, cfg.Audio.FramesPerBuffer*cfg.Audio.InputChannels),
	}
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		SampleRate:      e.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}

	logger.Debugf("Input stream started")
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
		logger.Debugf("Input stream stopped")
	}

	return nil
}

// processInputStream is the audio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(e.inputBuffer, in)
	buffer := e.inputBuffer[:n]
	channels := e.cfg.InputChannels

	e.level.Update(buffer)
	e.sink.Push(window.Frame{
		SampleRate: e.cfg.SampleRate,
		Channels:   channels,
		Frames:     n / channels,
		Data:       buffer,
	})

	if r := e.recorder.Load(); r != nil {
		e.record(r, buffer)
	}
}

func (e *Engine) record(r *Recorder, buffer []float32) {
	err := r.Write(buffer)
	switch {
	case err == nil:
		e.writeFailures = 0
		return
	case errors.Is(err, ErrRecordingFull):
		logger.Infof("Recording reached %ds limit", e.rec.MaxDuration)
	default:
		e.writeFailures++
		logger.Errorf("Error writing to WAV file: %v", err)
		if e.writeFailures < config.DefaultMaxConsecutiveWriteFailures {
			return
		}
		logger.Errorf("Stopping recording after %d consecutive write failures", e.writeFailures)
	}

	// Closing the file must not happen on the audio thread.
	if e.recorder.CompareAndSwap(r, nil) {
		e.writeFailures = 0
		go func() {
			if err := r.Close(); err != nil {
				logger.Errorf("Error closing recording: %v", err)
			}
		}()
	}
}

// LevelDBFS returns the peak amplitude of the most recent buffer in dBFS.
func (e *Engine) LevelDBFS() float64 {
	return e.level.PeakDBFS()
}

func (e *Engine) Close() error {
	if err := e.StopInputStream(); err != nil {
		return err
	}
	return e.StopRecording()
}
