// SPDX-License-Identifier: MIT
/*
Package spectrogram wires the sample window, the analyzer, the gradient
palette and the renderer into one instance.

The audio producer calls Push from its own goroutine. A ticker goroutine
(Start/Stop) or the caller (Tick) runs the render pass: snapshot the window,
analyse it, draw one column and hand the column to subscribed transports.
Each Instance owns its own analyzer; nothing is shared between instances.

Teardown runs in reverse order of acquisition: ticker, analyzer, window,
renderer.
*/
package spectrogram

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spectro/internal/analysis"
	"spectro/internal/config"
	"spectro/internal/gradient"
	applog "spectro/internal/log"
	"spectro/internal/render"
	"spectro/internal/transport"
	"spectro/internal/window"
)

var logger = applog.For("spectrogram")

// ErrClosed is returned by operations on a closed Instance.
var ErrClosed = errors.New("spectrogram: instance closed")

// Options configures a new Instance. Zero fields take the defaults from the
// config package.
type Options struct {
	FFTSize  int
	Window   analysis.WindowFunc
	Width    int
	Height   int
	Interval time.Duration

	// Store holds the persisted gradient. Nil uses an in-memory store with
	// the built-in gradient.
	Store config.Store
}

func (o Options) withDefaults() Options {
	if o.FFTSize == 0 {
		o.FFTSize = config.DefaultFFTSize
	}
	if o.Interval <= 0 {
		o.Interval = config.DefaultInterval
	}
	if o.Store == nil {
		o.Store = &config.MapStore{}
	}
	return o
}

// Stats counts render passes since the instance was created.
type Stats struct {
	Drawn   uint64 // Ticks that produced a column.
	Skipped uint64 // Ticks skipped because the window was not primed.
}

// Instance is one live spectrogram.
type Instance struct {
	opts Options

	window   *window.SampleWindow
	analyzer analysis.Transformer
	palette  *gradient.Palette
	renderer *render.Renderer

	// tickMu serialises render passes against Close and against each other.
	tickMu  sync.Mutex
	samples []float64 // Snapshot buffer, owned by the render pass.
	closed  bool

	configMu sync.Mutex // Serialises gradient reloads and saves.

	sinksMu sync.RWMutex
	sinks   []transport.Transport

	// Ticker lifecycle, same shape as the UDP publisher.
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	seq     atomic.Uint64
	drawn   atomic.Uint64
	skipped atomic.Uint64
}

// New allocates the analysis buffers, loads the persisted gradient and
// creates a blank image. Any allocation failure is returned wrapped; the
// instance is unusable in that case.
func New(opts Options) (*Instance, error) {
	opts = opts.withDefaults()

	win, err := window.NewSampleWindow(opts.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("spectrogram: %w", err)
	}

	analyzer, err := analysis.NewAnalyzer(opts.FFTSize, opts.Window)
	if err != nil {
		win.Close()
		return nil, fmt.Errorf("spectrogram: %w", err)
	}

	settings := config.LoadGradient(opts.Store)
	palette, err := gradient.NewPalette(settings.Active())
	if err != nil {
		_ = analyzer.Close()
		win.Close()
		return nil, fmt.Errorf("spectrogram: failed to build gradient: %w", err)
	}

	logger.Infof("Created (FFT: %d, Window: %s, Image: %dx%d, Interval: %s, Stops: %d)",
		opts.FFTSize, opts.Window, opts.Width, opts.Height, opts.Interval, settings.Count)

	return &Instance{
		opts:     opts,
		window:   win,
		analyzer: analyzer,
		palette:  palette,
		renderer: render.NewRenderer(opts.Width, opts.Height),
		samples:  make([]float64, opts.FFTSize),
	}, nil
}

// Push feeds decoded audio into the sample window. It is safe to call from
// the audio callback.
func (s *Instance) Push(f window.Frame) {
	s.window.Push(f)
}

// Tick runs one render pass and reports whether a column was drawn. A tick
// with fewer than N/2 buffered samples is skipped and leaves the image as
// it was.
func (s *Instance) Tick() bool {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.closed {
		return false
	}
	if !s.window.Ready() {
		s.skipped.Add(1)
		return false
	}

	// The window lock is released before the transform runs.
	if _, err := s.window.SnapshotInto(s.samples); err != nil {
		logger.Errorf("Snapshot failed: %v", err)
		return false
	}

	power, err := s.analyzer.Analyze(s.samples)
	if err != nil {
		logger.Errorf("Analyze failed: %v", err)
		return false
	}

	if !s.renderer.Draw(power, s.palette.Load()) {
		return false
	}
	s.drawn.Add(1)
	s.publish()
	return true
}

// publish sends the new column to every subscriber. Nothing is copied when
// there are no subscribers.
func (s *Instance) publish() {
	s.sinksMu.RLock()
	defer s.sinksMu.RUnlock()

	if len(s.sinks) == 0 {
		return
	}

	pixels := s.renderer.LatestColumn(nil)
	msg := transport.Column{
		Type:      transport.TypeColumn,
		Seq:       s.seq.Add(1),
		Timestamp: time.Now().UnixNano(),
		Height:    len(pixels),
		Pixels:    pixels,
	}
	for _, t := range s.sinks {
		if err := t.Send(msg); err != nil {
			logger.Debugf("Send failed: %v", err)
		}
	}
}

func (s *Instance) broadcast(ev transport.Event) {
	s.sinksMu.RLock()
	defer s.sinksMu.RUnlock()
	for _, t := range s.sinks {
		_ = t.Send(ev)
	}
}

// Subscribe adds a transport that receives every drawn column and state
// events. Subscribed transports are closed by Close.
func (s *Instance) Subscribe(t transport.Transport) {
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()
	s.sinks = append(s.sinks, t)
}

// Start begins rendering on the configured interval. Calling Start on a
// running instance is a no-op.
func (s *Instance) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		logger.Warnf("Start called but already running.")
		return
	}

	s.ticker = time.NewTicker(s.opts.Interval)
	s.doneChan = make(chan struct{})
	s.stopOnce = sync.Once{}

	ticker := s.ticker
	doneChan := s.doneChan
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger.Debugf("Render loop started (Interval: %s)", s.opts.Interval)
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-doneChan:
				logger.Debugf("Render loop received stop signal.")
				return
			}
		}
	}()
}

// Stop halts the render loop and waits for an in-flight tick to finish.
// It is safe to call Stop multiple times.
func (s *Instance) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.stopOnce.Do(func() {
		close(s.doneChan)
		s.ticker.Stop()
		s.ticker = nil
	})
	s.mu.Unlock()

	s.wg.Wait()
}

// Running reports whether the render loop is active.
func (s *Instance) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

// Resize reallocates the image. History is discarded.
func (s *Instance) Resize(width, height int) {
	w, h := s.renderer.Size()
	if w == width && h == height {
		return
	}
	s.renderer.Resize(width, height)
	logger.Debugf("Resized to %dx%d", width, height)
	s.broadcast(transport.Event{Type: transport.TypeResize, Width: width, Height: height})
}

type reloader interface {
	Load() error
}

type saver interface {
	Save() error
}

// OnConfigChanged re-reads the persisted gradient and swaps in a new table.
// The renderer keeps drawing with the old table until the swap.
func (s *Instance) OnConfigChanged() error {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	if r, ok := s.opts.Store.(reloader); ok {
		if err := r.Load(); err != nil {
			return fmt.Errorf("spectrogram: reload gradient: %w", err)
		}
	}
	return s.rebuild()
}

// rebuild applies the store contents. Callers hold configMu.
func (s *Instance) rebuild() error {
	settings := config.LoadGradient(s.opts.Store)
	if err := s.palette.Rebuild(settings.Active()); err != nil {
		return fmt.Errorf("spectrogram: rebuild gradient: %w", err)
	}
	logger.Infof("Gradient rebuilt with %d stops", len(settings.Active()))
	s.broadcast(transport.Event{
		Type:    transport.TypeConfig,
		Message: fmt.Sprintf("%d stops", len(settings.Active())),
	})
	return nil
}

// Gradient returns the persisted gradient settings.
func (s *Instance) Gradient() config.GradientSettings {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	return config.LoadGradient(s.opts.Store)
}

// UpdateGradient persists g and rebuilds the table from it.
func (s *Instance) UpdateGradient(g config.GradientSettings) error {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	config.SaveGradient(s.opts.Store, g)
	if sv, ok := s.opts.Store.(saver); ok {
		if err := sv.Save(); err != nil {
			return fmt.Errorf("spectrogram: save gradient: %w", err)
		}
	}
	return s.rebuild()
}

// Renderer returns the image owner for presenters.
func (s *Instance) Renderer() *render.Renderer { return s.renderer }

// Palette returns the current gradient palette.
func (s *Instance) Palette() *gradient.Palette { return s.palette }

// Interval returns the render tick period.
func (s *Instance) Interval() time.Duration { return s.opts.Interval }

// TopFrequency returns the centre frequency in Hz of the highest bin drawn.
// Input is resampled to window.CanonicalRate before analysis.
func (s *Instance) TopFrequency() float64 {
	return s.analyzer.FrequencyForBin(s.analyzer.Bins()-1, window.CanonicalRate)
}

// Ready reports whether the sample window holds enough audio for a tick to
// draw.
func (s *Instance) Ready() bool { return s.window.Ready() }

// LatestColumn implements transport.ColumnProvider.
func (s *Instance) LatestColumn(dst []uint32) []uint32 {
	return s.renderer.LatestColumn(dst)
}

var _ transport.ColumnProvider = (*Instance)(nil)

// Stats returns the render pass counters.
func (s *Instance) Stats() Stats {
	return Stats{Drawn: s.drawn.Load(), Skipped: s.skipped.Load()}
}

// Close stops the render loop and releases everything the instance owns, in
// reverse order of acquisition. Subscribed transports are closed last. It
// is safe to call Close more than once.
func (s *Instance) Close() error {
	s.Stop()

	s.tickMu.Lock()
	if s.closed {
		s.tickMu.Unlock()
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.analyzer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close analyzer: %w", err))
	}
	s.window.Close()
	s.samples = nil
	s.renderer.Close()
	s.tickMu.Unlock()

	s.broadcast(transport.Event{Type: transport.TypeStopped})

	s.sinksMu.Lock()
	for _, t := range s.sinks {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	s.sinks = nil
	s.sinksMu.Unlock()

	stats := s.Stats()
	logger.Infof("Closed (drawn: %d, skipped: %d)", stats.Drawn, stats.Skipped)
	return errors.Join(errs...)
}
