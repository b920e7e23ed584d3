// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"spectro/internal/analysis"
	"spectro/internal/audio"
	"spectro/internal/config"
	applog "spectro/internal/log"
	"spectro/internal/spectrogram"
	"spectro/pkg/bitint"
	"spectro/pkg/build"
)

var logger = applog.For("cmd")

// cliOptions holds the raw flag values. They override the config file only
// when set on the command line.
type cliOptions struct {
	configPath string

	deviceID        int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	pick            bool

	record bool
	output string

	fftSize  int
	window   string
	width    int
	height   int
	interval time.Duration
	tui      bool

	udp           bool
	udpTarget     string
	ws            bool
	wsAddr        string
	gradientStore string

	logLevel string
	debug    bool
}

// NewRootCommand builds the command tree. The root command captures live
// input; subcommands list devices and render files offline.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&cliOptions{})
}

func newRootCommand(opts *cliOptions) *cobra.Command {
	buildInfo := build.GetBuildFlags()
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cfg, opts)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
	rootCmd.AddCommand(listCmd)

	var fit bool
	renderCmd := &cobra.Command{
		Use:   "render <file.wav>",
		Short: "Render a WAV file to a PNG spectrogram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.output
			if out == "" {
				out = "spectrogram.png"
			}
			return renderFile(cfg, args[0], out, fit)
		},
	}
	renderCmd.Flags().BoolVar(&fit, "fit", false,
		"Size the image width to the length of the file")
	rootCmd.AddCommand(renderCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml or ./spectro.yaml if present)")

	// Audio Device Configuration
	flags.IntVarP(&opts.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.IntVarP(&opts.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	flags.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&opts.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	flags.BoolVar(&opts.pick, "pick", false,
		"Choose the input device and sample rate interactively")

	// Recording Configuration
	flags.BoolVarP(&opts.record, "record", "r", false,
		"Record audio from the input device while drawing")
	flags.StringVarP(&opts.output, "output", "o", "",
		"Output file: the WAV recording when live, the PNG when rendering")

	// Spectrogram Configuration
	flags.IntVar(&opts.fftSize, "fft-size", config.DefaultFFTSize,
		"Samples per analysis window, rounded up to a power of two")
	flags.StringVar(&opts.window, "window", config.DefaultWindow,
		"Window function (Hann, Hamming, Blackman, BlackmanNuttall, BartlettHann, Lanczos, Nuttall)")
	flags.IntVar(&opts.width, "width", config.DefaultWidth,
		"Image width in columns")
	flags.IntVar(&opts.height, "height", config.DefaultHeight,
		"Image height in rows")
	flags.DurationVar(&opts.interval, "interval", config.DefaultInterval,
		"Time between drawn columns")
	flags.BoolVar(&opts.tui, "tui", false,
		"Show the spectrogram in the terminal")
	flags.StringVar(&opts.gradientStore, "gradient-store", "",
		"YAML file holding the colour gradient (empty keeps it in memory)")

	// Transport Configuration
	flags.BoolVar(&opts.udp, "udp", false,
		"Send the newest column over UDP")
	flags.StringVar(&opts.udpTarget, "udp-target", config.DefaultUDPTarget,
		"UDP target address (host:port)")
	flags.BoolVar(&opts.ws, "ws", false,
		"Serve drawn columns over websocket")
	flags.StringVar(&opts.wsAddr, "ws-addr", config.DefaultWebSocketAddr,
		"Websocket listen address")

	// Debug Configuration
	flags.StringVar(&opts.logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
	flags.BoolVarP(&opts.debug, "debug", "v", false,
		"Show debug output")

	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(os.Args[1:])
	return rootCmd.Execute()
}

// loadConfig reads the config file and layers the changed flags on top.
func loadConfig(cmd *cobra.Command, opts *cliOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if _, err := analysis.ParseWindowFunc(cfg.Analysis.Window); err != nil {
		return nil, err
	}
	if err := applog.Configure(cfg.LogLevel, cfg.Debug); err != nil {
		logger.Warnf("%v", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, opts *cliOptions, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.InputDevice = opts.deviceID
	}
	if changed("channels") {
		cfg.Audio.InputChannels = opts.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = opts.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = opts.lowLatency
	}
	if changed("record") {
		cfg.Recording.Enabled = opts.record
	}
	if changed("fft-size") {
		// The FFT only takes powers of two; round a request up rather than
		// reject it.
		cfg.Analysis.FFTSize = bitint.NextPowerOfTwo(opts.fftSize)
		if cfg.Analysis.FFTSize != opts.fftSize {
			logger.Infof("Rounded --fft-size %d up to %d", opts.fftSize, cfg.Analysis.FFTSize)
		}
	}
	if changed("window") {
		cfg.Analysis.Window = opts.window
	}
	if changed("width") {
		cfg.Display.Width = opts.width
	}
	if changed("height") {
		cfg.Display.Height = opts.height
	}
	if changed("interval") {
		cfg.Display.Interval = opts.interval
	}
	if changed("tui") {
		cfg.Display.TUI = opts.tui
	}
	if changed("gradient-store") {
		cfg.Gradient.StorePath = opts.gradientStore
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = opts.udp
	}
	if changed("udp-target") {
		cfg.Transport.UDPTargetAddress = opts.udpTarget
	}
	if changed("ws") {
		cfg.Transport.WebSocketEnabled = opts.ws
	}
	if changed("ws-addr") {
		cfg.Transport.WebSocketAddr = opts.wsAddr
	}
	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if changed("debug") {
		cfg.Debug = opts.debug
	}
}

// newInstance opens the gradient store and creates a spectrogram from cfg.
func newInstance(cfg *config.Config) (*spectrogram.Instance, error) {
	win, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return nil, err
	}
	store, err := config.OpenStore(cfg.Gradient.StorePath)
	if err != nil {
		return nil, err
	}
	return spectrogram.New(spectrogram.Options{
		FFTSize:  cfg.Analysis.FFTSize,
		Window:   win,
		Width:    cfg.Display.Width,
		Height:   cfg.Display.Height,
		Interval: cfg.Display.Interval,
		Store:    store,
	})
}
