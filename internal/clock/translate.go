// SPDX-License-Identifier: MIT
package clock

import "math"

// MinDB is the floor applied when converting linear amplitudes to decibels.
// Operator-tunable thresholds can be driven all the way to silence, and
// 20*log10(0) is -Inf, so the log path clamps here instead.
const MinDB = -100.0

// LinearFromDB converts a decibel value to a linear amplitude: 10^(dB/20).
func LinearFromDB(dB float64) float64 {
	return math.Pow(10, dB/20)
}

// DBFromLinear converts a linear amplitude to decibels: 20*log10(a).
// Values at or below the MinDB-equivalent amplitude return MinDB.
func DBFromLinear(linear float64) float64 {
	if linear <= 0 {
		return MinDB
	}
	dB := 20 * math.Log10(linear)
	if dB < MinDB {
		return MinDB
	}
	return dB
}

// FramesFromMS converts a millisecond duration to a whole frame count at the
// given sample rate, rounding to nearest. Non-positive durations map to zero.
func FramesFromMS(ms, sampleRate float64) uint64 {
	if ms <= 0 || sampleRate <= 0 {
		return 0
	}
	return uint64(math.Round(sampleRate * ms / 1000))
}
