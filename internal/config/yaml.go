// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"beatclock/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from the YAML file at path. An empty path
// searches the default location ("config.yaml"); if nothing is found the
// built-in defaults are used. Environment overrides apply after the file,
// and the result is validated.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
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

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the hard limits and normalizes the soft ones. Detector
// values are deliberately not rejected here: the parameter store clamps
// them into range at startup exactly as it does for live edits.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]",
			c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside (0, %d]",
			c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device %d below %d", c.Audio.InputDevice, MinDeviceID)
	}
	if c.Audio.OutputDevice < MinDeviceID {
		return fmt.Errorf("audio.output_device %d below %d", c.Audio.OutputDevice, MinDeviceID)
	}
	if c.MIDI.PulseBuffer <= 0 {
		c.MIDI.PulseBuffer = DefaultPulseBuffer
	} else {
		c.MIDI.PulseBuffer = bitint.NextPowerOfTwo(c.MIDI.PulseBuffer)
	}
	if c.Transport.StatusInterval <= 0 {
		c.Transport.StatusInterval = DefaultStatusInterval
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddr == "" {
		return fmt.Errorf("transport.websocket_addr must be set when the websocket transport is enabled")
	}
	if c.Transport.UDPEnabled && c.Transport.UDPTargetAddress == "" {
		return fmt.Errorf("transport.udp_target_address must be set when the UDP transport is enabled")
	}
	return nil
}

// applyEnvOverrides layers BEATCLOCK_* environment variables over the
// loaded values. Only operational knobs are exposed this way.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("BEATCLOCK_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		}
	}
	if val, ok := os.LookupEnv("BEATCLOCK_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("BEATCLOCK_MIDI_PORT"); ok {
		c.MIDI.Port = val
	}
	if val, ok := os.LookupEnv("BEATCLOCK_WS_ADDR"); ok {
		c.Transport.WebSocketAddr = val
		c.Transport.WebSocketEnabled = true
	}
	if val, ok := os.LookupEnv("BEATCLOCK_UDP_TARGET"); ok {
		c.Transport.UDPTargetAddress = val
		c.Transport.UDPEnabled = true
	}
	if val, ok := os.LookupEnv("BEATCLOCK_STATUS_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			c.Transport.StatusInterval = Duration(d)
		}
	}
}
