// SPDX-License-Identifier: MIT
// Package fft computes magnitude spectra for the offline analyzer. The
// workspace is allocated once so repeated transforms (one per onset)
// reuse the same buffers.
package fft

import (
	"math"
	"math/cmplx"

	"beatclock/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum wraps a real FFT of fixed size with a Hann window.
type Spectrum struct {
	fftSize    int
	sampleRate float64
	fftObj     *fourier.FFT

	input     []float64
	output    []complex128
	magnitude []float64
	window    []float64
}

// NewSpectrum builds a Spectrum for the given transform size, which
// must be a power of two.
func NewSpectrum(fftSize int, sampleRate float64) *Spectrum {
	if !bitint.IsPowerOfTwo(fftSize) {
		panic("fft: transform size must be a power of 2")
	}

	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	outputSize := fftSize/2 + 1
	return &Spectrum{
		fftSize:    fftSize,
		sampleRate: sampleRate,
		fftObj:     fourier.NewFFT(fftSize),
		input:      make([]float64, fftSize),
		output:     make([]complex128, outputSize),
		magnitude:  make([]float64, outputSize),
		window:     window,
	}
}

// Size returns the transform size.
func (s *Spectrum) Size() int { return s.fftSize }

// Magnitudes windows the samples, transforms them, and returns the
// magnitude per bin. Inputs shorter than the transform size are
// zero-padded; longer ones are truncated. The returned slice is reused
// by the next call.
func (s *Spectrum) Magnitudes(samples []float64) []float64 {
	for i := range s.input {
		if i < len(samples) {
			s.input[i] = samples[i] * s.window[i]
		} else {
			s.input[i] = 0
		}
	}

	_ = s.fftObj.Coefficients(s.output, s.input)
	for i, c := range s.output {
		s.magnitude[i] = cmplx.Abs(c)
	}
	return s.magnitude
}

// BinFrequency returns the center frequency in Hz of bin i.
func (s *Spectrum) BinFrequency(i int) float64 {
	if i < 0 || i >= len(s.output) {
		return 0
	}
	return s.fftObj.Freq(i) * s.sampleRate
}

// PeakFrequency transforms the samples and returns the frequency of the
// strongest non-DC bin. Zero input returns 0 Hz.
func (s *Spectrum) PeakFrequency(samples []float64) float64 {
	mags := s.Magnitudes(samples)

	best := 0
	var bestMag float64
	for i := 1; i < len(mags); i++ {
		if mags[i] > bestMag {
			bestMag = mags[i]
			best = i
		}
	}
	if bestMag == 0 {
		return 0
	}
	return s.BinFrequency(best)
}
