// SPDX-License-Identifier: MIT
/*
Package audio owns the PortAudio plumbing around the beat tracking core:

- a duplex float32 stream (mono click input, rectified diagnostic output)
- an explicit monotonic frame counter passed into the core per block
- pulse forwarding to the MIDI writer over a non-blocking channel
- optional WAV capture of the raw input

Thread safety: the stream callback runs on the PortAudio thread with
pre-allocated buffers only; state shared with other goroutines is atomic.
*/
package audio

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"beatclock/internal/config"
	applog "beatclock/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Processor consumes one input block and fills one output block of the
// same length. startFrame is the absolute frame number of in[0].
// Implementations run inside the stream callback and must be realtime
// safe: no allocation, no locks, no blocking, bounded work per sample.
type Processor interface {
	ProcessBlock(in, out []float32, startFrame uint64)
}

// Engine drives the duplex audio stream and hands each block to its
// Processor with an explicit frame clock.
type Engine struct {
	config *config.Config
	proc   Processor

	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	stream        *portaudio.Stream

	// frame is the absolute frame number of the next block's first
	// sample. Owned by the callback; monotonically increasing.
	frame uint64

	// Recording state, armed from the cold path.
	isRecording int32 // atomic flag
	rec         *recorder
}

// NewEngine resolves the configured devices and prepares an engine that
// will feed proc. The stream is not opened until Start.
func NewEngine(cfg *config.Config, proc Processor) (*Engine, error) {
	if proc == nil {
		return nil, fmt.Errorf("audio: processor is required")
	}

	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:       cfg,
		proc:         proc,
		inputDevice:  inputDevice,
		outputDevice: outputDevice,
	}

	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
		e.outputLatency = outputDevice.DefaultLowOutputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
		e.outputLatency = outputDevice.DefaultHighOutputLatency
	}

	return e, nil
}

// Start opens the duplex stream and begins invoking the callback.
// From here on the hot path is live.
func (e *Engine) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   e.inputDevice,
			Channels: 1,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   e.outputDevice,
			Channels: 1,
			Latency:  e.outputLatency,
		},
		SampleRate:      e.config.Audio.SampleRate,
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, e.process)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	e.stream = stream

	if err := e.stream.Start(); err != nil {
		e.stream.Close()
		e.stream = nil
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	applog.Infof("Audio: stream started (in %q, out %q, %.0f Hz, %d frames/buffer)",
		e.inputDevice.Name, e.outputDevice.Name,
		e.config.Audio.SampleRate, e.config.Audio.FramesPerBuffer)
	return nil
}

// Stop halts and closes the stream. The callback is no longer invoked
// once Stop returns.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}
	if err := e.stream.Stop(); err != nil {
		return err
	}
	if err := e.stream.Close(); err != nil {
		return err
	}
	e.stream = nil
	return nil
}

// process is the realtime stream callback.
// Performance critical:
// - runs on the PortAudio thread (locked to its OS thread)
// - pre-allocated buffers only, no allocation
// - the frame counter, not wall time, is the only clock
func (e *Engine) process(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// The callback is the sole writer of the frame counter; atomics keep
	// the diagnostic Frame() reader well-defined.
	e.proc.ProcessBlock(in, out, atomic.LoadUint64(&e.frame))
	atomic.AddUint64(&e.frame, uint64(len(in)))

	if atomic.LoadInt32(&e.isRecording) == 1 && e.rec != nil {
		e.rec.write(in)
	}
}

// Frame returns the absolute frame number of the next block. Meaningful
// for diagnostics only while the stream is running.
func (e *Engine) Frame() uint64 {
	return atomic.LoadUint64(&e.frame)
}

// InputName returns the resolved input device name.
func (e *Engine) InputName() string { return e.inputDevice.Name }

// Close stops recording (flushing the file) and shuts the stream down.
func (e *Engine) Close() error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}
	return e.Stop()
}
