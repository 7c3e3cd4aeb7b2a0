// SPDX-License-Identifier: MIT
package audio

import (
	"sync/atomic"

	"beatclock/internal/clock"
	"beatclock/internal/midi"
	"beatclock/internal/params"
)

// ClockProcessor is the hot-path glue: each block it loads the current
// tuning snapshot, runs the beat tracker, and offers every scheduled
// pulse to the MIDI writer. Everything it touches per block is either
// pre-allocated or atomic.
type ClockProcessor struct {
	store   *params.Store
	tracker *clock.Tracker
	writer  *midi.Writer

	dropped uint64 // pulses the writer's channel refused
}

// NewClockProcessor wires a tracker to its tuning source and pulse sink.
// writer may be nil when no MIDI output is configured.
func NewClockProcessor(store *params.Store, tracker *clock.Tracker, writer *midi.Writer) *ClockProcessor {
	return &ClockProcessor{
		store:   store,
		tracker: tracker,
		writer:  writer,
	}
}

// ProcessBlock implements Processor.
func (p *ClockProcessor) ProcessBlock(in, out []float32, startFrame uint64) {
	tun := p.store.Load()
	pulses := p.tracker.ProcessBlock(in, out, startFrame, tun)

	if p.writer == nil {
		return
	}
	for _, pulse := range pulses {
		if !p.writer.Offer(pulse) {
			atomic.AddUint64(&p.dropped, 1)
		}
	}
}

// Tracker exposes the underlying beat tracker for telemetry readers.
func (p *ClockProcessor) Tracker() *clock.Tracker { return p.tracker }

// DroppedPulses reports how many pulses were discarded because the MIDI
// writer's buffer was full.
func (p *ClockProcessor) DroppedPulses() uint64 {
	return atomic.LoadUint64(&p.dropped)
}
