// SPDX-License-Identifier: MIT
/*
Package params owns the live-tunable detector parameters.

The UI goroutine is the sole writer. Every mutation clamps the operator
value into its legal range, re-derives the linear thresholds and the
refractory frame count for the stream's sample rate, and publishes one
immutable clock.Tuning through an atomic pointer. The audio callback loads
a single pointer per block, so it always sees an internally consistent set
of thresholds; the clamps below are invariants it may assume hold.
*/
package params

import (
	"sync"
	"sync/atomic"

	"beatclock/internal/clock"
)

// Clamp boundaries. The rising threshold tops out at full scale (0 dB) and
// the falling threshold must stay at or below the rising one, otherwise the
// hysteresis degenerates into a free-running oscillator.
const (
	MaxRisingDB     = 0.0
	MinThresholdDB  = clock.MinDB
	MinRefractoryMS = 0.0
)

// Store holds the operator-facing parameter values and their derived,
// audio-thread-ready form.
type Store struct {
	mu           sync.Mutex // serializes writers; readers never take it
	risingDB     float64
	fallingDB    float64
	refractoryMS float64
	warmupBeats  uint64
	sampleRate   float64

	tuning atomic.Pointer[clock.Tuning]
}

// NewStore builds a store for the given sample rate, clamps the initial
// values, and publishes the first snapshot.
func NewStore(sampleRate, risingDB, fallingDB, refractoryMS float64, warmupBeats uint64) *Store {
	s := &Store{
		risingDB:     risingDB,
		fallingDB:    fallingDB,
		refractoryMS: refractoryMS,
		warmupBeats:  warmupBeats,
		sampleRate:   sampleRate,
	}
	s.mu.Lock()
	s.republish()
	s.mu.Unlock()
	return s
}

// Load returns the current snapshot. Safe from any goroutine, wait-free.
func (s *Store) Load() *clock.Tuning {
	return s.tuning.Load()
}

// republish clamps the stored values and swaps in a fresh snapshot.
// Callers must hold mu.
func (s *Store) republish() {
	if s.risingDB > MaxRisingDB {
		s.risingDB = MaxRisingDB
	}
	if s.risingDB < MinThresholdDB {
		s.risingDB = MinThresholdDB
	}
	if s.fallingDB > s.risingDB {
		s.fallingDB = s.risingDB
	}
	if s.fallingDB < MinThresholdDB {
		s.fallingDB = MinThresholdDB
	}
	if s.refractoryMS < MinRefractoryMS {
		s.refractoryMS = MinRefractoryMS
	}

	s.tuning.Store(&clock.Tuning{
		Rising:           float32(clock.LinearFromDB(s.risingDB)),
		Falling:          float32(clock.LinearFromDB(s.fallingDB)),
		RefractoryFrames: clock.FramesFromMS(s.refractoryMS, s.sampleRate),
		WarmupBeats:      s.warmupBeats,
	})
}

// SetRisingDB sets the rising threshold in dB, clamped to [MinThresholdDB, 0].
func (s *Store) SetRisingDB(dB float64) {
	s.mu.Lock()
	s.risingDB = dB
	s.republish()
	s.mu.Unlock()
}

// SetFallingDB sets the falling threshold in dB, clamped to
// [MinThresholdDB, rising].
func (s *Store) SetFallingDB(dB float64) {
	s.mu.Lock()
	s.fallingDB = dB
	s.republish()
	s.mu.Unlock()
}

// SetRefractoryMS sets the refractory window in milliseconds, floored at 0.
func (s *Store) SetRefractoryMS(ms float64) {
	s.mu.Lock()
	s.refractoryMS = ms
	s.republish()
	s.mu.Unlock()
}

// SetWarmupBeats sets the number of beats required before pulses flow.
func (s *Store) SetWarmupBeats(n uint64) {
	s.mu.Lock()
	s.warmupBeats = n
	s.republish()
	s.mu.Unlock()
}

// StepRisingDB nudges the rising threshold by delta dB.
func (s *Store) StepRisingDB(delta float64) {
	s.mu.Lock()
	s.risingDB += delta
	s.republish()
	s.mu.Unlock()
}

// StepFallingDB nudges the falling threshold by delta dB.
func (s *Store) StepFallingDB(delta float64) {
	s.mu.Lock()
	s.fallingDB += delta
	s.republish()
	s.mu.Unlock()
}

// StepRefractoryMS nudges the refractory window by delta milliseconds.
func (s *Store) StepRefractoryMS(delta float64) {
	s.mu.Lock()
	s.refractoryMS += delta
	s.republish()
	s.mu.Unlock()
}

// StepWarmupBeats nudges the warm-up gate by delta beats, floored at 0.
func (s *Store) StepWarmupBeats(delta int64) {
	s.mu.Lock()
	next := int64(s.warmupBeats) + delta
	if next < 0 {
		next = 0
	}
	s.warmupBeats = uint64(next)
	s.republish()
	s.mu.Unlock()
}

// RisingDB returns the clamped rising threshold in dB.
func (s *Store) RisingDB() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.risingDB
}

// FallingDB returns the clamped falling threshold in dB.
func (s *Store) FallingDB() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallingDB
}

// RefractoryMS returns the clamped refractory window in milliseconds.
func (s *Store) RefractoryMS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refractoryMS
}

// WarmupBeats returns the warm-up gate in beats.
func (s *Store) WarmupBeats() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warmupBeats
}
