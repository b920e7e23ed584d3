// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits shared by the YAML loader, the CLI flags and the
// engine.
const (
	// Audio capture
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultChannels        = 2           // Stereo, downmixed by the sample window
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultSampleRate      = 44100       // CD-quality audio

	// Analysis
	DefaultFFTSize = 8192
	DefaultWindow  = "Hann"

	// Display
	DefaultWidth    = 640
	DefaultHeight   = 256
	DefaultInterval = 33 * time.Millisecond // ~30Hz render tick

	// Recording
	DefaultFormat   = "wav"
	DefaultBitDepth = 16

	// Transport
	DefaultUDPTarget     = "127.0.0.1:9090"
	DefaultWebSocketAddr = "127.0.0.1:8080"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MinFFTSize      = 256
	MaxFFTSize      = 65536
	MaxViewport     = 8192

	// Error handling configuration
	DefaultMaxConsecutiveWriteFailures = 5 // Max failures before stopping
)
