// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"spectro/internal/log"
	"spectro/pkg/bitint"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Audio capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectral analysis settings.
	Display   DisplayConfig   `yaml:"display"`   // Spectrogram image settings.
	Gradient  GradientConfig  `yaml:"gradient"`  // Colour gradient persistence.
	Recording RecordingConfig `yaml:"recording"` // Input recording settings.
	Transport TransportConfig `yaml:"transport"` // Column publishing settings.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames delivered per callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // Number of input channels to capture.
}

// AnalysisConfig holds settings for the spectral analyzer.
type AnalysisConfig struct {
	FFTSize int    `yaml:"fft_size"` // Samples per analysis window, power of two.
	Window  string `yaml:"window"`   // Window function name (e.g., "Hann", "Blackman").
}

// DisplayConfig holds settings for the spectrogram image.
type DisplayConfig struct {
	Width    int           `yaml:"width"`    // Image width in columns (ticks of history).
	Height   int           `yaml:"height"`   // Image height in rows.
	Interval time.Duration `yaml:"interval"` // Render tick period.
	TUI      bool          `yaml:"tui"`      // Show the terminal viewer when running live.
}

// GradientConfig holds settings for the persisted colour gradient.
type GradientConfig struct {
	StorePath string `yaml:"store_path"` // YAML key/value file holding the gradient stops; empty keeps them in memory.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`              // Enable audio recording to file.
	OutputDir   string `yaml:"output_dir"`           // Directory to save recorded audio files.
	Format      string `yaml:"format"`               // File format for recordings ("wav").
	BitDepth    int    `yaml:"bit_depth"`            // Bit depth for recorded audio (16, 24 or 32).
	MaxDuration int    `yaml:"max_duration_seconds"` // Maximum duration of a single recording file in seconds (0 for unlimited).
}

// TransportConfig holds settings related to publishing spectrogram columns.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send the newest column over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast every drawn column over websocket.
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address for the websocket server.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
		},
		Analysis: AnalysisConfig{
			FFTSize: DefaultFFTSize,
			Window:  DefaultWindow,
		},
		Display: DisplayConfig{
			Width:    DefaultWidth,
			Height:   DefaultHeight,
			Interval: DefaultInterval,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			Format:    DefaultFormat,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultInterval,
			WebSocketAddr:    DefaultWebSocketAddr,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "spectro.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		if path == "" {
			return nil, fmt.Errorf("invalid default configuration: %w", err)
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	if c.Audio.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device must be >= %d", MinDeviceID))
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be in (0, %d]", MaxBufferFrames))
	}
	if c.Audio.InputChannels < 1 {
		errs = append(errs, errors.New("audio.input_channels must be positive"))
	}

	if !bitint.IsPowerOfTwo(c.Analysis.FFTSize) || c.Analysis.FFTSize < MinFFTSize || c.Analysis.FFTSize > MaxFFTSize {
		errs = append(errs, fmt.Errorf("analysis.fft_size %d must be a power of two in [%d, %d]", c.Analysis.FFTSize, MinFFTSize, MaxFFTSize))
	}

	if c.Display.Width < 0 || c.Display.Width > MaxViewport || c.Display.Height < 0 || c.Display.Height > MaxViewport {
		errs = append(errs, fmt.Errorf("display size %dx%d outside [0, %d]", c.Display.Width, c.Display.Height, MaxViewport))
	}
	if c.Display.Interval <= 0 {
		errs = append(errs, errors.New("display.interval must be positive"))
	}

	if c.Recording.Enabled {
		if !strings.EqualFold(c.Recording.Format, "wav") {
			errs = append(errs, fmt.Errorf("recording.format %q unsupported, only wav", c.Recording.Format))
		}
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			errs = append(errs, fmt.Errorf("recording.bit_depth %d unsupported", c.Recording.BitDepth))
		}
	}

	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddr == "" {
		errs = append(errs, errors.New("transport.websocket_addr must be set when websocket is enabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides lets ENV_* variables override file and default values.
// Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			log.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		log.Debugf("configuration: overriding log_level from env: %s", val)
	}
	// ENV_FFT_SIZE
	if val, ok := os.LookupEnv("ENV_FFT_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Analysis.FFTSize = n
			log.Debugf("configuration: overriding analysis.fft_size from env: %d", n)
		}
	}
	// ENV_GRADIENT_STORE
	if val, ok := os.LookupEnv("ENV_GRADIENT_STORE"); ok {
		cfg.Gradient.StorePath = val
		log.Debugf("configuration: overriding gradient.store_path from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			log.Debugf("configuration: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		log.Debugf("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			log.Debugf("configuration: overriding transport.udp_send_interval from env: %s", dur)
		}
	}
	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		cfg.Transport.WebSocketAddr = val
		log.Debugf("configuration: overriding transport.websocket_addr from env: %s", val)
	}
}
