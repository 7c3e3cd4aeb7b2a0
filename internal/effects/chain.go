// SPDX-License-Identifier: MIT
/*
Package effects implements the monitor processing chain: a one-pole
averaging lowpass, a downward compressor working in the log domain, and
a makeup gain stage, applied in that order per sample.

The chain runs inside the audio callback. All tunable parameters are
published as immutable derived snapshots through an atomic pointer, the
same scheme the detector tuning uses, so the hot path never takes a
lock.
*/
package effects

import (
	"math"
	"sync"
	"sync/atomic"

	"beatclock/internal/clock"
)

// Parameter bounds. The ratio floor keeps the compressor from becoming
// an expander; the steepness ceiling keeps the filter pole inside the
// unit circle with usable bandwidth.
const (
	MinRatio     = 1.0
	MinSteepness = 0.0
	MaxSteepness = 0.99
)

// settings is a derived, immutable snapshot of the chain parameters in
// the units the per-sample code wants: linear gains and the filter
// coefficient rather than decibels and steepness.
type settings struct {
	alpha           float32 // 1 - steepness
	threshold       float32 // linear compressor threshold
	thresholdDB     float64
	ratioReciprocal float64
	makeupGain      float32
}

// Store holds the operator-facing chain parameters and publishes derived
// snapshots. Writers serialize on the mutex; the callback only loads the
// pointer.
type Store struct {
	mu          sync.Mutex
	steepness   float64
	ratio       float64
	thresholdDB float64
	makeupDB    float64

	derived atomic.Pointer[settings]
}

// NewStore publishes an initial snapshot from the given parameters,
// clamped into range.
func NewStore(steepness, ratio, thresholdDB, makeupDB float64) *Store {
	s := &Store{
		steepness:   steepness,
		ratio:       ratio,
		thresholdDB: thresholdDB,
		makeupDB:    makeupDB,
	}
	s.mu.Lock()
	s.republish()
	s.mu.Unlock()
	return s
}

// NewDefaultStore returns a transparent chain: no filtering, 1:1 ratio,
// unity gain.
func NewDefaultStore() *Store {
	return NewStore(0, 1, 0, 0)
}

func (s *Store) load() *settings {
	return s.derived.Load()
}

// republish clamps the raw parameters and swaps in a fresh snapshot.
// Callers hold s.mu.
func (s *Store) republish() {
	if s.steepness < MinSteepness {
		s.steepness = MinSteepness
	} else if s.steepness > MaxSteepness {
		s.steepness = MaxSteepness
	}
	if s.ratio < MinRatio {
		s.ratio = MinRatio
	}

	s.derived.Store(&settings{
		alpha:           float32(1 - s.steepness),
		threshold:       float32(clock.LinearFromDB(s.thresholdDB)),
		thresholdDB:     s.thresholdDB,
		ratioReciprocal: 1 / s.ratio,
		makeupGain:      float32(clock.LinearFromDB(s.makeupDB)),
	})
}

// SetSteepness sets the lowpass steepness, clamped to [0, 0.99].
func (s *Store) SetSteepness(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steepness = v
	s.republish()
}

// SetRatio sets the compression ratio, clamped to at least 1.
func (s *Store) SetRatio(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratio = v
	s.republish()
}

// SetThresholdDB sets the compressor threshold in decibels.
func (s *Store) SetThresholdDB(dB float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholdDB = dB
	s.republish()
}

// SetMakeupDB sets the makeup gain in decibels.
func (s *Store) SetMakeupDB(dB float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.makeupDB = dB
	s.republish()
}

// StepSteepness nudges the steepness by delta.
func (s *Store) StepSteepness(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steepness += delta
	s.republish()
}

// StepRatio nudges the ratio by delta.
func (s *Store) StepRatio(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratio += delta
	s.republish()
}

// StepThresholdDB nudges the threshold by delta decibels.
func (s *Store) StepThresholdDB(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholdDB += delta
	s.republish()
}

// StepMakeupDB nudges the makeup gain by delta decibels.
func (s *Store) StepMakeupDB(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.makeupDB += delta
	s.republish()
}

// Steepness returns the clamped lowpass steepness.
func (s *Store) Steepness() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steepness
}

// Ratio returns the clamped compression ratio.
func (s *Store) Ratio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratio
}

// ThresholdDB returns the compressor threshold in decibels.
func (s *Store) ThresholdDB() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholdDB
}

// MakeupDB returns the makeup gain in decibels.
func (s *Store) MakeupDB() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.makeupDB
}

// Chain is the per-sample processor. It keeps the lowpass running
// average across blocks and meters pre- and post-chain peaks for the UI.
type Chain struct {
	store *Store

	// runningAverage is the one-pole filter state. Callback-owned.
	runningAverage float32

	inPeakBits  atomic.Uint32
	outPeakBits atomic.Uint32
}

// NewChain returns a chain fed by the given parameter store.
func NewChain(store *Store) *Chain {
	return &Chain{store: store}
}

// Store returns the chain's parameter store.
func (c *Chain) Store() *Store { return c.store }

// TakeInputPeak returns and resets the peak input amplitude observed
// since the last call.
func (c *Chain) TakeInputPeak() float32 {
	return math.Float32frombits(c.inPeakBits.Swap(0))
}

// TakeOutputPeak returns and resets the peak output amplitude observed
// since the last call.
func (c *Chain) TakeOutputPeak() float32 {
	return math.Float32frombits(c.outPeakBits.Swap(0))
}

func observePeak(bitsWord *atomic.Uint32, p float32) {
	bits := math.Float32bits(p)
	for {
		old := bitsWord.Load()
		if bits <= old {
			return
		}
		if bitsWord.CompareAndSwap(old, bits) {
			return
		}
	}
}

// compress applies downward compression to a rectified amplitude. Below
// the threshold the signal passes unchanged; above it the overshoot is
// scaled by 1/ratio in the log domain.
func compress(amp float32, set *settings) float32 {
	if amp <= set.threshold {
		return amp
	}
	ampDB := clock.DBFromLinear(float64(amp))
	outDB := set.thresholdDB + (ampDB-set.thresholdDB)*set.ratioReciprocal
	return float32(clock.LinearFromDB(outDB))
}

// ProcessBlock runs the chain over one block: lowpass, compress the
// magnitude, apply makeup gain, clamp to full scale, restore sign.
// Realtime safe: one snapshot load, no allocation.
func (c *Chain) ProcessBlock(in, out []float32, startFrame uint64) {
	set := c.store.load()

	var inPeak, outPeak float32
	avg := c.runningAverage

	for i, s := range in {
		mag := s
		if mag < 0 {
			mag = -mag
		}
		if mag > inPeak {
			inPeak = mag
		}

		avg += set.alpha * (s - avg)

		filtered := avg
		negative := filtered < 0
		if negative {
			filtered = -filtered
		}

		shaped := compress(filtered, set) * set.makeupGain
		if shaped > 1 {
			shaped = 1
		}
		if shaped > outPeak {
			outPeak = shaped
		}

		if negative {
			shaped = -shaped
		}
		if out != nil {
			out[i] = shaped
		}
	}

	c.runningAverage = avg
	observePeak(&c.inPeakBits, inPeak)
	observePeak(&c.outPeakBits, outPeak)
}
