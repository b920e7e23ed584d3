// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"spectro/internal/audio"
	"spectro/internal/config"
)

// renderFile draws a WAV file offline, one column per display interval of
// audio, and writes the final image to out. With fit the image is exactly
// as wide as the number of columns drawn once the window has filled.
func renderFile(cfg *config.Config, in, out string, fit bool) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	src, err := audio.OpenWAV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	step := src.FramesPer(cfg.Display.Interval)
	columns := (src.TotalFrames() + int64(step) - 1) / int64(step)
	if fit {
		cfg.Display.Width = fitWidth(columns)
	}

	sg, err := newInstance(cfg)
	if err != nil {
		return err
	}
	defer sg.Close()

	sized := !fit
	for pushed := int64(0); ; pushed++ {
		frame, err := src.Next(step)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		sg.Push(frame)

		// Ticks before the window fills draw nothing, so the fitted image
		// only spans the remaining pushes.
		if !sized && sg.Ready() {
			sg.Resize(fitWidth(columns-pushed), cfg.Display.Height)
			sized = true
		}
		sg.Tick()
	}

	stats := sg.Stats()
	logger.Infof("Rendered %s (%s, %d columns, %d skipped)", in, src.Duration(), stats.Drawn, stats.Skipped)

	o, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := sg.Renderer().WritePNG(o); err != nil {
		o.Close()
		return err
	}
	if err := o.Close(); err != nil {
		return err
	}
	logger.Infof("Wrote %s", out)
	return nil
}

func fitWidth(columns int64) int {
	return int(min(max(columns, 1), config.MaxViewport))
}
