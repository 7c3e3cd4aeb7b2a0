// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"beatclock/cmd"
	"beatclock/internal/analysis"
	"beatclock/internal/audio"
	"beatclock/internal/clock"
	"beatclock/internal/config"
	"beatclock/internal/effects"
	applog "beatclock/internal/log"
	"beatclock/internal/midi"
	"beatclock/internal/params"
	"beatclock/internal/transport"
	"beatclock/internal/tui"
	"beatclock/pkg/build"
)

// main runs in three phases:
//
//  1. Startup (cold): build info, runtime tuning, PortAudio init,
//     argument parsing, one-off commands.
//  2. Concurrent (hot): the audio callback tracks beats and schedules
//     pulses; the MIDI writer, status publisher, and UI run alongside.
//  3. Shutdown (cold): stop the publishers, drain the writer, flush any
//     recording, close the stream.
func main() {
	if err := build.Initialize(); err != nil {
		// Development builds carry no ldflags; run with placeholders.
		applog.Debugf("build info unavailable: %v", err)
	}

	// One thread for the audio callback, one for everything else.
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer audio.Terminate()

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg == nil {
		// Help or version output already handled.
		return
	}

	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	} else if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}

	switch cfg.Command {
	case "list":
		if err := audio.ListDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	case "analyze":
		if err := runAnalyze(cfg); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

// runAnalyze runs the detector over a WAV file and prints the JSON
// report. The configured values pass through the store for clamping;
// the file's own sample rate drives the frame arithmetic.
func runAnalyze(cfg *config.Config) error {
	store := params.NewStore(cfg.Audio.SampleRate,
		cfg.Detector.RisingDB, cfg.Detector.FallingDB,
		cfg.Detector.RefractoryMS, cfg.Detector.WarmupBeats)

	report, err := analysis.AnalyzeFile(cfg.AnalyzeFile, analysis.Settings{
		RisingDB:     store.RisingDB(),
		FallingDB:    store.FallingDB(),
		RefractoryMS: store.RefractoryMS(),
	})
	if err != nil {
		return err
	}
	return report.WriteJSON(os.Stdout)
}

// run wires the live pipeline and blocks until the UI quits or a
// signal arrives.
func run(cfg *config.Config) error {
	store := params.NewStore(cfg.Audio.SampleRate,
		cfg.Detector.RisingDB, cfg.Detector.FallingDB,
		cfg.Detector.RefractoryMS, cfg.Detector.WarmupBeats)
	tracker := clock.NewTracker(cfg.Audio.SampleRate, clock.DefaultMaxPulsesPerBlock)

	port := midi.NullPort()
	if cfg.MIDI.Port != "" {
		opened, err := midi.OpenPort(cfg.MIDI.Port)
		if err != nil {
			return fmt.Errorf("failed to open MIDI port: %w", err)
		}
		port = opened
	}
	writer := midi.NewWriter(port, cfg.MIDI.PulseBuffer)
	writer.Start()
	defer writer.Stop()

	var (
		proc audio.Processor
		fx   *effects.Chain
	)
	if cfg.Effect {
		fx = effects.NewChain(effects.NewDefaultStore())
		proc = fx
	} else {
		proc = audio.NewClockProcessor(store, tracker, writer)
	}

	engine, err := audio.NewEngine(cfg, proc)
	if err != nil {
		return err
	}
	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Close()

	if cfg.Recording.Enabled {
		if err := engine.StartRecording(cfg.Recording.OutputFile); err != nil {
			return err
		}
		applog.Infof("Recording to %s", cfg.Recording.OutputFile)
	}

	var transports []transport.Transport
	if cfg.Transport.WebSocketEnabled {
		transports = append(transports, transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr))
	}
	if cfg.Transport.UDPEnabled {
		udp, err := transport.NewUDPTransport(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		transports = append(transports, udp)
	}
	if len(transports) > 0 {
		publisher := transport.NewStatusPublisher(cfg.Transport.StatusInterval.Std(),
			tracker.Telemetry(), cfg.Audio.SampleRate, transports...)
		publisher.Start()
		defer func() {
			publisher.Stop()
			for _, t := range transports {
				t.Close()
			}
		}()
	}

	if cfg.Headless {
		applog.Infof("Running headless; interrupt to stop")
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		<-done
	} else {
		var model tui.Model
		if fx != nil {
			model = tui.NewEffectModel(fx, tracker.Telemetry(), cfg.Audio.SampleRate, engine.InputName())
		} else {
			model = tui.NewClockModel(store, tracker.Telemetry(), cfg.Audio.SampleRate, engine.InputName())
		}
		if err := tui.Run(model); err != nil {
			return err
		}
	}

	if cfg.Recording.Enabled {
		if err := engine.StopRecording(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		} else {
			applog.Infof("Recording saved to %s", cfg.Recording.OutputFile)
		}
	}

	return nil
}
