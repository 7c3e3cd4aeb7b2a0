// SPDX-License-Identifier: MIT
package clock

import (
	"math"
	"sync/atomic"
)

// Telemetry mirrors the tracker's live counters for the UI and the status
// transports. The audio callback stores each field atomically once per
// block; readers on other goroutines may observe fields from two adjacent
// blocks, which is acceptable for diagnostics.
type Telemetry struct {
	frame          atomic.Uint64
	beats          atomic.Uint64
	pulses         atomic.Uint64
	framesPerPulse atomic.Uint64
	active         atomic.Bool
	peakBits       atomic.Uint32 // math.Float32bits of the running input peak
}

// TakePeak returns the peak rectified amplitude seen since the last call
// and resets it, so each UI redraw shows the peak of its own interval.
func (t *Telemetry) TakePeak() float32 {
	return math.Float32frombits(t.peakBits.Swap(0))
}

func (t *Telemetry) observePeak(p float32) {
	bits := math.Float32bits(p)
	for {
		old := t.peakBits.Load()
		if bits <= old {
			return
		}
		if t.peakBits.CompareAndSwap(old, bits) {
			return
		}
	}
}

// Status is a point-in-time copy of the telemetry counters, shaped for the
// UI and for JSON status transports.
type Status struct {
	Frame          uint64  `json:"frame"`
	Beats          uint64  `json:"beats"`
	Pulses         uint64  `json:"pulses"`
	FramesPerPulse uint64  `json:"frames_per_pulse"`
	BPM            float64 `json:"bpm"`
	Active         bool    `json:"active"`
	Peak           float32 `json:"peak"`
}

// Snapshot reads the telemetry counters. The peak is read without
// resetting; use TakePeak for redraw-interval metering.
func (t *Telemetry) Snapshot(sampleRate float64) Status {
	fpp := t.framesPerPulse.Load()
	return Status{
		Frame:          t.frame.Load(),
		Beats:          t.beats.Load(),
		Pulses:         t.pulses.Load(),
		FramesPerPulse: fpp,
		BPM:            BPMFromInterval(fpp, sampleRate),
		Active:         t.active.Load(),
		Peak:           math.Float32frombits(t.peakBits.Load()),
	}
}

// BPMFromInterval converts a per-pulse frame interval to beats per minute.
// A zero interval (scheduler not yet armed) reports 0.
func BPMFromInterval(framesPerPulse uint64, sampleRate float64) float64 {
	if framesPerPulse == 0 || sampleRate <= 0 {
		return 0
	}
	return 60 * sampleRate / float64(framesPerPulse*PulsesPerQuarter)
}

// Tracker is the per-block entry point of the core. It rectifies the input
// into the diagnostic output buffer, advances the detector one frame per
// sample, retunes the scheduler on each onset from the second beat onward,
// and collects the pulses that fall due inside the block.
type Tracker struct {
	det        Detector
	sched      Scheduler
	sampleRate float64

	// Reused across blocks; ProcessBlock never allocates in steady state.
	pulseBuf []Pulse

	telem Telemetry
}

// NewTracker builds a tracker for the given sample rate. maxPulsesPerBlock
// caps the pulse buffer; pulses beyond the cap in a single block (possible
// only with pathological tunings) are dropped rather than allocated for.
func NewTracker(sampleRate float64, maxPulsesPerBlock int) *Tracker {
	if maxPulsesPerBlock <= 0 {
		maxPulsesPerBlock = DefaultMaxPulsesPerBlock
	}
	return &Tracker{
		sampleRate: sampleRate,
		pulseBuf:   make([]Pulse, 0, maxPulsesPerBlock),
	}
}

// DefaultMaxPulsesPerBlock bounds pulse collection for one block. At sane
// tempos a block carries at most a handful of pulses; the cap only matters
// when the operator dials in degenerate thresholds.
const DefaultMaxPulsesPerBlock = 64

// ProcessBlock consumes one audio block. in holds normalized samples in
// [-1, 1]; startFrame is the absolute frame number of in[0]. The rectified
// amplitude of each sample is written to out when out is non-nil (out must
// then be at least len(in)). The returned slice aliases an internal buffer
// that is valid until the next call.
func (t *Tracker) ProcessBlock(in, out []float32, startFrame uint64, tun *Tuning) []Pulse {
	t.pulseBuf = t.pulseBuf[:0]
	var peak float32

	for i, sample := range in {
		amp := sample
		if amp < 0 {
			amp = -amp
		}
		if out != nil {
			out[i] = amp
		}
		if amp > peak {
			peak = amp
		}

		frame := startFrame + uint64(i)
		if t.det.Step(amp, frame, tun) == EdgeOnset && t.det.Beats() >= 2 {
			t.sched.Retune(t.det.Onsets())
		}

		// The schedule check runs for every frame, transition or not.
		if t.sched.Step(frame, t.det.Beats(), tun.WarmupBeats) {
			if len(t.pulseBuf) < cap(t.pulseBuf) {
				t.pulseBuf = append(t.pulseBuf, Pulse{Frame: frame, Offset: i})
			}
		}
	}

	t.telem.frame.Store(startFrame + uint64(len(in)))
	t.telem.beats.Store(t.det.Beats())
	t.telem.pulses.Store(t.sched.Pulses())
	if t.sched.Armed() {
		t.telem.framesPerPulse.Store(t.sched.FramesPerPulse())
	}
	t.telem.active.Store(t.det.State() == Active)
	t.telem.observePeak(peak)

	return t.pulseBuf
}

// Telemetry returns the tracker's shared counters.
func (t *Tracker) Telemetry() *Telemetry { return &t.telem }

// Detector exposes the detector for offline analysis and tests.
func (t *Tracker) Detector() *Detector { return &t.det }

// Scheduler exposes the scheduler for offline analysis and tests.
func (t *Tracker) Scheduler() *Scheduler { return &t.sched }

// SampleRate returns the rate the tracker was built for.
func (t *Tracker) SampleRate() float64 { return t.sampleRate }
