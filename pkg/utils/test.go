// SPDX-License-Identifier: MIT

// Package utils provides synthetic test signals for the beat tracking
// pipeline: metronome-like click trains with known onset positions.
package utils

import "math"

// GenerateClickTrain returns a mono buffer of the given length containing
// rectangular clicks of clickLen frames at amplitude amp, starting at
// firstOnset and repeating every period frames. Everything else is silence.
func GenerateClickTrain(length, firstOnset, period, clickLen int, amp float32) []float32 {
	buf := make([]float32, length)
	if period <= 0 || clickLen <= 0 {
		return buf
	}
	for onset := firstOnset; onset < length; onset += period {
		end := onset + clickLen
		if end > length {
			end = length
		}
		for i := onset; i < end; i++ {
			buf[i] = amp
		}
	}
	return buf
}

// GenerateDecayingClickTrain is like GenerateClickTrain but each click
// decays exponentially from amp and alternates sign, which exercises
// rectification, the falling threshold, and the refractory window the way
// a real metronome click does.
func GenerateDecayingClickTrain(length, firstOnset, period, clickLen int, amp float32, decay float64) []float32 {
	buf := make([]float32, length)
	if period <= 0 || clickLen <= 0 {
		return buf
	}
	for onset := firstOnset; onset < length; onset += period {
		env := float64(amp)
		for i := onset; i < onset+clickLen && i < length; i++ {
			if (i-onset)%2 == 1 {
				buf[i] = float32(-env)
			} else {
				buf[i] = float32(env)
			}
			env *= decay
		}
	}
	return buf
}

// GenerateSine returns a mono sine wave at the given frequency, for cases
// that need a continuous, beat-free signal.
func GenerateSine(length int, sampleRate, frequency float64, amp float32) []float32 {
	buf := make([]float32, length)
	for i := range buf {
		t := float64(i) / sampleRate
		buf[i] = amp * float32(math.Sin(2*math.Pi*frequency*t))
	}
	return buf
}

// OnsetFrames returns the onset positions GenerateClickTrain places in a
// buffer of the given length.
func OnsetFrames(length, firstOnset, period int) []uint64 {
	var onsets []uint64
	if period <= 0 {
		return onsets
	}
	for onset := firstOnset; onset < length; onset += period {
		onsets = append(onsets, uint64(onset))
	}
	return onsets
}
