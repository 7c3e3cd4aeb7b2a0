// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"time"
)

// Boundaries and defaults for the engine and the beat tracker.
const (
	// Audio defaults
	DefaultSampleRate      = 48000 // Hz
	DefaultFramesPerBuffer = 512   // balanced latency/stability
	DefaultInputDevice     = MinDeviceID
	DefaultOutputDevice    = MinDeviceID
	DefaultLowLatency      = false

	// Detector defaults. The thresholds suit a close-miked metronome
	// click; the operator tunes them live from the UI.
	DefaultRisingDB     = -20.0 // linear 0.1
	DefaultFallingDB    = -40.0 // linear 0.01
	DefaultRefractoryMS = 100.0
	DefaultWarmupBeats  = 4 // pulses held back until this many beats seen

	// Hardware and processing limits
	MinDeviceID     = -1 // -1 selects the system default device
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192

	// MIDI defaults
	DefaultPulseBuffer = 256 // pulse channel capacity between callback and writer

	// Transport defaults
	DefaultWebSocketAddr  = ":8080"
	DefaultUDPTarget      = "127.0.0.1:9090"
	DefaultStatusInterval = Duration(50 * time.Millisecond)
)

// Duration wraps time.Duration so YAML values can be written as "50ms" or
// "1s". A bare integer is read as nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := unmarshal(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full application configuration, loaded from YAML with
// environment and command line overrides applied on top.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
	Effect   bool   `yaml:"effect"` // run the effect chain instead of the beat tracker

	Audio     AudioConfig     `yaml:"audio"`
	Detector  DetectorConfig  `yaml:"detector"`
	MIDI      MIDIConfig      `yaml:"midi"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`

	// CLI-only fields, never read from the file.
	Command     string `yaml:"-"` // one-off command ("list", "analyze")
	AnalyzeFile string `yaml:"-"` // wav path for the analyze command
	Headless    bool   `yaml:"-"` // run without the TUI until a signal arrives
}

// AudioConfig holds the driver-facing stream settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio index, -1 for default
	OutputDevice    int     `yaml:"output_device"`     // PortAudio index, -1 for default
	SampleRate      float64 `yaml:"sample_rate"`       // Hz, fixed for the stream lifetime
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // block size the callback receives
	LowLatency      bool    `yaml:"low_latency"`       // request low latency from the device
}

// DetectorConfig holds the startup values of the live-tunable parameters.
type DetectorConfig struct {
	RisingDB     float64 `yaml:"rising_db"`     // onset threshold, dB full scale
	FallingDB    float64 `yaml:"falling_db"`    // offset threshold, dB full scale
	RefractoryMS float64 `yaml:"refractory_ms"` // retrigger suppression window
	WarmupBeats  uint64  `yaml:"warmup_beats"`  // beats before the first pulse
}

// MIDIConfig holds the clock output settings.
type MIDIConfig struct {
	Port        string `yaml:"port"`         // rawmidi device node or FIFO; empty disables output
	PulseBuffer int    `yaml:"pulse_buffer"` // buffered pulses between callback and writer
}

// RecordingConfig holds the input capture settings.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // empty generates a timestamped name
}

// TransportConfig holds the diagnostic status telemetry settings. Only
// status snapshots travel here; the clock signal itself is never networked.
type TransportConfig struct {
	WebSocketEnabled bool     `yaml:"websocket_enabled"`
	WebSocketAddr    string   `yaml:"websocket_addr"`
	UDPEnabled       bool     `yaml:"udp_enabled"`
	UDPTargetAddress string   `yaml:"udp_target_address"`
	StatusInterval   Duration `yaml:"status_interval"`
}

// NewConfig returns a Config populated with the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultInputDevice,
			OutputDevice:    DefaultOutputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
		},
		Detector: DetectorConfig{
			RisingDB:     DefaultRisingDB,
			FallingDB:    DefaultFallingDB,
			RefractoryMS: DefaultRefractoryMS,
			WarmupBeats:  DefaultWarmupBeats,
		},
		MIDI: MIDIConfig{
			PulseBuffer: DefaultPulseBuffer,
		},
		Recording: RecordingConfig{},
		Transport: TransportConfig{
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTarget,
			StatusInterval:   DefaultStatusInterval,
		},
	}
}
