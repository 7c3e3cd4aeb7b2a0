// SPDX-License-Identifier: MIT
package clock

// PulsesPerQuarter is the MIDI clock rate: 24 timing messages per quarter
// note, fixed by the MIDI realtime spec.
const PulsesPerQuarter = 24

// Pulse is one MIDI timing clock event, pinned to the exact sample at which
// it fires.
type Pulse struct {
	Frame  uint64 // absolute frame number of the pulse
	Offset int    // frame offset within the block that emitted it
}

// Scheduler derives a pulse cadence from pairs of beat onsets. Retune is
// called on the second and every later onset with the two most recent onset
// frames; Step is called once per frame afterwards and reports whether a
// pulse is due at that exact frame.
//
// Like the Detector, a Scheduler belongs to the audio callback goroutine.
// The zero value is an unarmed scheduler that never fires.
type Scheduler struct {
	framesPerPulse uint64
	nextPulse      uint64
	armed          bool
	pulses         uint64
}

// Retune recomputes the pulse interval as the inter-onset period divided by
// PulsesPerQuarter (floor division) and schedules the next pulse one
// interval after the onset.
//
// Two onsets at the same frame, out-of-order onsets, or a period shorter
// than one pulse all yield a non-positive interval; the scheduler then
// disarms for this cycle instead of dividing into a burst. It re-arms at
// the next usable onset pair.
func (s *Scheduler) Retune(onset, previousOnset uint64) {
	if onset <= previousOnset {
		s.armed = false
		return
	}
	interval := (onset - previousOnset) / PulsesPerQuarter
	if interval == 0 {
		s.armed = false
		return
	}
	s.framesPerPulse = interval
	s.nextPulse = onset + interval
	s.armed = true
}

// Step reports whether a pulse fires at frame. beats is the running onset
// count from the detector and warmup the configured warm-up gate: until
// warmup beats have been seen, the first period estimates are considered
// unreliable and no pulse is emitted. On a hit the schedule advances by
// exactly one interval, so a frame can never fire twice.
func (s *Scheduler) Step(frame, beats, warmup uint64) bool {
	if !s.armed || frame != s.nextPulse || beats < warmup {
		return false
	}
	s.nextPulse += s.framesPerPulse
	s.pulses++
	return true
}

// Armed reports whether a usable pulse interval is currently scheduled.
func (s *Scheduler) Armed() bool { return s.armed }

// FramesPerPulse returns the current pulse interval in frames. The value is
// stale until Retune has run with a usable onset pair.
func (s *Scheduler) FramesPerPulse() uint64 { return s.framesPerPulse }

// NextPulseFrame returns the absolute frame of the next scheduled pulse.
func (s *Scheduler) NextPulseFrame() uint64 { return s.nextPulse }

// Pulses returns the total number of pulses emitted.
func (s *Scheduler) Pulses() uint64 { return s.pulses }
