// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"time"

	"beatclock/internal/config"
	"beatclock/pkg/build"

	"github.com/spf13/cobra"
)

// ParseArgs builds the configuration from the YAML file layered under
// any command line flags that were explicitly set. The returned config
// is nil when cobra handled the invocation itself (help, version).
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	// staging receives flag values; only flags the user actually set are
	// copied over the loaded file config.
	staging := config.NewConfig()
	var (
		configPath string
		cfg        *config.Config
	)

	load := func(cmd *cobra.Command) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, staging, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Track live metronome clicks and emit MIDI clock pulses",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cmd); err != nil {
				return err
			}
			cfg.Command = "list"
			return nil
		},
	}
	rootCmd.AddCommand(listCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Detect beats in a WAV file and report tempo statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cmd); err != nil {
				return err
			}
			cfg.Command = "analyze"
			cfg.AnalyzeFile = args[0]
			return nil
		},
	}
	rootCmd.AddCommand(analyzeCmd)

	pf := rootCmd.PersistentFlags()

	pf.StringVar(&configPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml if present)")

	// Audio device configuration
	pf.IntVarP(&staging.Audio.InputDevice, "device", "d", config.MinDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	pf.IntVar(&staging.Audio.OutputDevice, "output-device", config.MinDeviceID,
		"Output device ID for the rectified monitor signal")
	pf.Float64VarP(&staging.Audio.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&staging.Audio.FramesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&staging.Audio.LowLatency, "low-latency", "l", false,
		"Request low latency from the audio device")

	// Detector configuration
	pf.Float64Var(&staging.Detector.RisingDB, "rising-db", config.DefaultRisingDB,
		"Onset threshold in dB full scale")
	pf.Float64Var(&staging.Detector.FallingDB, "falling-db", config.DefaultFallingDB,
		"Offset threshold in dB full scale")
	pf.Float64Var(&staging.Detector.RefractoryMS, "refractory-ms", config.DefaultRefractoryMS,
		"Retrigger suppression window in milliseconds")
	pf.Uint64Var(&staging.Detector.WarmupBeats, "warmup-beats", config.DefaultWarmupBeats,
		"Beats to observe before the first clock pulse")

	// MIDI output
	pf.StringVarP(&staging.MIDI.Port, "midi-port", "m", "",
		"Rawmidi device node or FIFO for clock output (empty disables MIDI)")

	// Recording configuration
	pf.BoolVarP(&staging.Recording.Enabled, "record", "r", false,
		"Record the raw input signal to a WAV file")
	pf.StringVarP(&staging.Recording.OutputFile, "output", "o", "",
		"Recording file name. Default is capture-DD-MM-YYYY-HHMMSS.wav")

	// Run mode
	pf.BoolVarP(&staging.Effect, "effect", "e", false,
		"Run the lowpass/compressor/gain chain instead of the beat tracker")
	pf.BoolVar(&staging.Headless, "headless", false,
		"Run without the TUI until interrupted")
	pf.BoolVarP(&staging.Debug, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if cfg == nil {
		// Help or version output; nothing left to run.
		return nil, nil
	}

	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = "capture-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	return cfg, nil
}

// applyFlagOverrides copies explicitly-set flags from the staging config
// onto the loaded one. Flags the user never touched leave the file (or
// default) values alone.
func applyFlagOverrides(cmd *cobra.Command, staging, loaded *config.Config) {
	overrides := map[string]func(){
		"device":            func() { loaded.Audio.InputDevice = staging.Audio.InputDevice },
		"output-device":     func() { loaded.Audio.OutputDevice = staging.Audio.OutputDevice },
		"sample-rate":       func() { loaded.Audio.SampleRate = staging.Audio.SampleRate },
		"frames-per-buffer": func() { loaded.Audio.FramesPerBuffer = staging.Audio.FramesPerBuffer },
		"low-latency":       func() { loaded.Audio.LowLatency = staging.Audio.LowLatency },
		"rising-db":         func() { loaded.Detector.RisingDB = staging.Detector.RisingDB },
		"falling-db":        func() { loaded.Detector.FallingDB = staging.Detector.FallingDB },
		"refractory-ms":     func() { loaded.Detector.RefractoryMS = staging.Detector.RefractoryMS },
		"warmup-beats":      func() { loaded.Detector.WarmupBeats = staging.Detector.WarmupBeats },
		"midi-port":         func() { loaded.MIDI.Port = staging.MIDI.Port },
		"record":            func() { loaded.Recording.Enabled = staging.Recording.Enabled },
		"output":            func() { loaded.Recording.OutputFile = staging.Recording.OutputFile },
		"effect":            func() { loaded.Effect = staging.Effect },
		"headless":          func() { loaded.Headless = staging.Headless },
		"verbose":           func() { loaded.Debug = staging.Debug },
	}

	flags := cmd.Flags()
	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}
}
