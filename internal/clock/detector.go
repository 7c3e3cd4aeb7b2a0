// SPDX-License-Identifier: MIT
/*
Package clock turns a live metronome click signal into a MIDI clock pulse
train. It is the hard-realtime core of the application:

  - a two-state hysteresis detector finds beat onsets and offsets in the
    rectified sample stream
  - the inter-beat period of the two most recent onsets is divided into 24
    MIDI clock intervals
  - a scheduler emits one pulse at the exact frame each interval elapses

Everything here runs inside the audio driver callback. No allocation, no
locks, no blocking, bounded work per sample. All timing is expressed in
absolute frame numbers from a monotonically increasing counter supplied by
the caller, never in elapsed durations, so block size changes cannot
introduce drift.
*/
package clock

// Tuning is one immutable set of detector parameters. The parameter store
// publishes a fresh Tuning on every mutation; the audio callback loads
// exactly one per block and therefore never observes a half-updated set.
type Tuning struct {
	Rising           float32 // linear amplitude an onset must exceed
	Falling          float32 // linear amplitude an offset must drop below
	RefractoryFrames uint64  // frames after an offset during which onsets are ignored
	WarmupBeats      uint64  // beats required before any pulse is emitted
}

// State is the detector position relative to the hysteresis envelope.
type State uint8

const (
	// Quiescent means the signal is outside a beat envelope.
	Quiescent State = iota
	// Active means the signal crossed the rising threshold and has not yet
	// fallen below the falling threshold.
	Active
)

func (s State) String() string {
	switch s {
	case Quiescent:
		return "quiescent"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Edge reports the transition, if any, produced by one detector step.
type Edge uint8

const (
	EdgeNone   Edge = iota
	EdgeOnset       // Quiescent -> Active
	EdgeOffset      // Active -> Quiescent
)

// Detector is a Schmitt trigger over the rectified sample stream, advanced
// one frame at a time in strictly increasing frame order. It keeps the two
// most recent onset and offset timestamps and a refractory boundary that
// suppresses retriggering on decay ripple after a real beat.
//
// A Detector is owned by the audio callback goroutine and must not be
// shared. The zero value is ready to use.
type Detector struct {
	state State
	beats uint64

	onsetFrame     uint64
	prevOnsetFrame uint64

	// Offset history is retained for diagnostics only; scheduling is driven
	// entirely by onsets.
	offsetFrame     uint64
	prevOffsetFrame uint64

	// No onset is recognized at any frame <= earliestNextOnset. The
	// boundary only binds once an offset has set it, so the zero value
	// still recognizes an onset at frame 0.
	earliestNextOnset uint64
	refractoryArmed   bool
}

// Step advances the detector by one frame and returns the resulting edge.
// amp must be the rectified (non-negative) sample value at frame. The two
// transition rules are mutually exclusive by construction: a rising edge
// requires Quiescent, a falling edge requires Active, and no other path
// mutates the state.
func (d *Detector) Step(amp float32, frame uint64, tun *Tuning) Edge {
	if d.state == Quiescent {
		if amp > tun.Rising && (!d.refractoryArmed || frame > d.earliestNextOnset) {
			d.state = Active
			d.beats++
			d.prevOnsetFrame = d.onsetFrame
			d.onsetFrame = frame
			return EdgeOnset
		}
		return EdgeNone
	}

	if amp < tun.Falling {
		d.state = Quiescent
		d.prevOffsetFrame = d.offsetFrame
		d.offsetFrame = frame
		d.earliestNextOnset = frame + tun.RefractoryFrames
		d.refractoryArmed = true
		return EdgeOffset
	}
	return EdgeNone
}

// State returns the current detector state.
func (d *Detector) State() State { return d.state }

// Beats returns the total number of onsets recognized so far.
func (d *Detector) Beats() uint64 { return d.beats }

// Onsets returns the most recent and the previous onset frames.
func (d *Detector) Onsets() (current, previous uint64) {
	return d.onsetFrame, d.prevOnsetFrame
}

// Offsets returns the most recent and the previous offset frames.
func (d *Detector) Offsets() (current, previous uint64) {
	return d.offsetFrame, d.prevOffsetFrame
}

// RefractoryBoundary returns the frame at or before which no new onset is
// recognized.
func (d *Detector) RefractoryBoundary() uint64 { return d.earliestNextOnset }
