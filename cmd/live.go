// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"spectro/internal/audio"
	"spectro/internal/config"
	applog "spectro/internal/log"
	"spectro/internal/spectrogram"
	"spectro/internal/transport"
	"spectro/internal/transport/udp"
	"spectro/internal/tui"
)

// tuiLogFile receives log output while the terminal viewer owns the screen.
const tuiLogFile = "spectro.log"

// runLive captures from the input device until interrupted. The program flow:
//
//  1. Startup: PortAudio, the spectrogram instance, transports, the engine.
//  2. Running: the audio callback pushes frames; the render loop draws.
//     SIGHUP reloads the gradient.
//  3. Shutdown: in reverse order of startup.
func runLive(cfg *config.Config, opts *cliOptions) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if opts.pick {
		sel, err := tui.PickDevice(audio.HostDevices)
		if err != nil {
			return err
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
	}

	sg, err := newInstance(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sg.Close(); err != nil {
			logger.Errorf("Error closing spectrogram: %v", err)
		}
	}()

	stopTransports, err := startTransports(sg, cfg)
	if err != nil {
		return err
	}
	defer stopTransports()

	engine, err := audio.NewEngine(cfg, sg)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Errorf("Error closing audio engine: %v", err)
		}
	}()

	// The first callback marks the start of the real-time path.
	if err := engine.StartInputStream(); err != nil {
		return err
	}
	if cfg.Recording.Enabled {
		if err := engine.StartRecording(opts.output); err != nil {
			return err
		}
	}

	sg.Start()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if err := sg.OnConfigChanged(); err != nil {
				logger.Errorf("Reload failed: %v", err)
			}
		}
	}()

	if cfg.Display.TUI {
		return runViewer(sg, engine)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	logger.Infof("Drawing %dx%d every %s. Press Ctrl+C to stop.",
		cfg.Display.Width, cfg.Display.Height, cfg.Display.Interval)
	sig := <-done
	logger.Infof("Received %s, shutting down", sig)
	return nil
}

// runViewer blocks in the terminal viewer. Logs go to a file meanwhile.
func runViewer(sg *spectrogram.Instance, engine *audio.Engine) error {
	f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()
	applog.SetOutput(f)
	defer applog.SetOutput(os.Stderr)

	return tui.Run(sg, engine.LevelDBFS, sg.Interval())
}

// startTransports subscribes the configured column sinks. The returned
// function stops what the instance does not own.
func startTransports(sg *spectrogram.Instance, cfg *config.Config) (func(), error) {
	if cfg.Debug {
		sg.Subscribe(transport.NewLoggingTransport())
	}

	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start websocket server: %w", err)
		}
		sg.Subscribe(ws)
	}

	if !cfg.Transport.UDPEnabled {
		return func() {}, nil
	}

	sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
	if err != nil {
		return nil, err
	}
	publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, sg)
	if err != nil {
		_ = sender.Close()
		return nil, err
	}
	publisher.Start()

	return func() {
		err := errors.Join(publisher.Stop(), sender.Close())
		if err != nil {
			logger.Errorf("Error stopping UDP publisher: %v", err)
		}
	}, nil
}
