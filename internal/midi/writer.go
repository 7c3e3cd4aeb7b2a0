// SPDX-License-Identifier: MIT
/*
Package midi emits the synthesized clock as raw MIDI realtime bytes.

A pulse is a single Timing Clock status byte (0xF8) with no data bytes.
The audio callback hands pulses to a Writer through a non-blocking Offer;
a dedicated goroutine drains them onto the underlying port so the realtime
path never touches the file descriptor.
*/
package midi

import (
	"fmt"
	"io"
	"os"
	"sync"

	"beatclock/internal/clock"
	applog "beatclock/internal/log"
)

// TimingClock is the MIDI realtime Timing Clock status byte, sent 24 times
// per quarter note.
const TimingClock byte = 0xF8

// Writer forwards clock pulses from the audio callback to a byte-oriented
// MIDI port. Offer is wait-free and safe to call from the realtime path;
// everything else runs on the writer goroutine.
type Writer struct {
	port io.WriteCloser
	ch   chan clock.Pulse

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	stopOnce *sync.Once
	wg       sync.WaitGroup

	written uint64 // owned by the writer goroutine
}

// NewWriter builds a Writer over the given port with a pulse channel of
// the given capacity.
func NewWriter(port io.WriteCloser, buffer int) *Writer {
	if buffer <= 0 {
		buffer = 256
	}
	return &Writer{
		port: port,
		ch:   make(chan clock.Pulse, buffer),
	}
}

// OpenPort opens a byte-oriented MIDI destination: an ALSA rawmidi device
// node (e.g. /dev/snd/midiC0D0) or a FIFO another process reads from.
func OpenPort(path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open MIDI port %s: %w", path, err)
	}
	return f, nil
}

// Offer queues one pulse for transmission without blocking. When the
// channel is full the pulse is dropped and Offer reports false; a stalled
// MIDI port must never stall the audio callback.
func (w *Writer) Offer(p clock.Pulse) bool {
	select {
	case w.ch <- p:
		return true
	default:
		return false
	}
}

// Start launches the writer goroutine. Safe to call once per Stop cycle;
// redundant calls are no-ops.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		applog.Warnf("MIDI writer: Start called but already running")
		return
	}
	w.running = true
	w.done = make(chan struct{})
	w.stopOnce = &sync.Once{}

	done := w.done
	w.wg.Add(1)
	go w.run(done)
	applog.Infof("MIDI writer: started (buffer %d)", cap(w.ch))
}

func (w *Writer) run(done chan struct{}) {
	defer w.wg.Done()
	var buf [1]byte
	buf[0] = TimingClock

	for {
		select {
		case <-done:
			// Drain whatever the callback managed to queue before stop.
			for {
				select {
				case <-w.ch:
				default:
					return
				}
			}
		case p := <-w.ch:
			if _, err := w.port.Write(buf[:]); err != nil {
				applog.Errorf("MIDI writer: write failed at frame %d: %v", p.Frame, err)
				continue
			}
			w.written++
		}
	}
}

// Stop terminates the writer goroutine and closes the port. Idempotent.
func (w *Writer) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	once := w.stopOnce
	done := w.done
	w.mu.Unlock()

	once.Do(func() { close(done) })
	w.wg.Wait()
	if err := w.port.Close(); err != nil {
		return fmt.Errorf("failed to close MIDI port: %w", err)
	}
	return nil
}

// Written returns the number of clock bytes sent. Call after Stop; the
// counter is owned by the writer goroutine while running.
func (w *Writer) Written() uint64 { return w.written }

// nopPort discards clock bytes, for running without a configured port.
type nopPort struct{}

func (nopPort) Write(p []byte) (int, error) { return len(p), nil }
func (nopPort) Close() error                { return nil }

// NullPort returns a port that discards everything.
func NullPort() io.WriteCloser { return nopPort{} }
