// SPDX-License-Identifier: MIT
/*
Package analysis runs the beat detector offline over a WAV file and
reports onset timing, tempo, and tempo stability. It is the non-realtime
counterpart to the stream processor: same detector, file samples instead
of callback blocks.
*/
package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"beatclock/internal/clock"
	"beatclock/internal/fft"

	"github.com/go-audio/wav"
	"github.com/goccmack/godsp"
	"gonum.org/v1/gonum/stat"
)

// Report is the JSON-shaped result of analyzing one file.
type Report struct {
	File        string    `json:"file,omitempty"`
	SampleRate  int       `json:"sample_rate"`
	Frames      int       `json:"frames"`
	Beats       uint64    `json:"beats"`
	OnsetFrames []uint64  `json:"onset_frames"`
	OnsetsMS    []float64 `json:"onsets_ms"`
	IntervalsMS []float64 `json:"intervals_ms"`

	// Tempo statistics over the inter-onset intervals. MeanBPM is 0
	// when fewer than two onsets were found.
	MeanBPM      float64 `json:"mean_bpm"`
	StdDevBPM    float64 `json:"stddev_bpm"`
	MeanPeriodMS float64 `json:"mean_period_ms"`

	// Peak is the largest rectified amplitude before normalization.
	Peak float64 `json:"peak"`

	// ClickFrequencyHz is the dominant spectral frequency of the first
	// detected click, 0 when no onset was found.
	ClickFrequencyHz float64 `json:"click_frequency_hz"`
}

// clickWindow is the transform size used to estimate the click's
// dominant frequency: ~21ms at 48 kHz, enough to cover a short click.
const clickWindow = 1024

// Analyze runs the detector over one channel of samples. The channel is
// peak-normalized first so the dB thresholds mean the same thing for
// quiet and loud recordings; silent input is returned as-is with zero
// beats.
func Analyze(samples []float64, sampleRate int, tun *clock.Tuning) *Report {
	r := &Report{
		SampleRate:  sampleRate,
		Frames:      len(samples),
		OnsetFrames: []uint64{},
		OnsetsMS:    []float64{},
		IntervalsMS: []float64{},
	}
	if len(samples) == 0 || sampleRate <= 0 {
		return r
	}

	peak := godsp.Max(godsp.Abs(samples))
	r.Peak = peak
	if peak <= 0 {
		return r
	}

	var det clock.Detector
	for i, s := range samples {
		amp := float32(math.Abs(s) / peak)
		if det.Step(amp, uint64(i), tun) == clock.EdgeOnset {
			onset, _ := det.Onsets()
			r.OnsetFrames = append(r.OnsetFrames, onset)
		}
	}
	r.Beats = det.Beats()

	msPerFrame := 1000.0 / float64(sampleRate)
	for _, f := range r.OnsetFrames {
		r.OnsetsMS = append(r.OnsetsMS, float64(f)*msPerFrame)
	}
	for i := 1; i < len(r.OnsetFrames); i++ {
		interval := float64(r.OnsetFrames[i]-r.OnsetFrames[i-1]) * msPerFrame
		r.IntervalsMS = append(r.IntervalsMS, interval)
	}

	if len(r.OnsetFrames) > 0 {
		start := int(r.OnsetFrames[0])
		end := start + clickWindow
		if end > len(samples) {
			end = len(samples)
		}
		spec := fft.NewSpectrum(clickWindow, float64(sampleRate))
		r.ClickFrequencyHz = spec.PeakFrequency(samples[start:end])
	}

	if len(r.IntervalsMS) > 0 {
		bpms := make([]float64, len(r.IntervalsMS))
		for i, ms := range r.IntervalsMS {
			bpms[i] = 60000.0 / ms
		}
		r.MeanPeriodMS = stat.Mean(r.IntervalsMS, nil)
		r.MeanBPM = stat.Mean(bpms, nil)
		if len(bpms) > 1 {
			r.StdDevBPM = stat.StdDev(bpms, nil)
		}
	}

	return r
}

// Settings are the sample-rate-independent detector parameters for an
// offline run. The frame-based tuning is derived against each file's own
// sample rate, so a 44.1 kHz recording gets the same refractory window in
// milliseconds as a 48 kHz one.
type Settings struct {
	RisingDB     float64
	FallingDB    float64
	RefractoryMS float64
}

func (s Settings) tuning(sampleRate float64) *clock.Tuning {
	return &clock.Tuning{
		Rising:           float32(clock.LinearFromDB(s.RisingDB)),
		Falling:          float32(clock.LinearFromDB(s.FallingDB)),
		RefractoryFrames: clock.FramesFromMS(s.RefractoryMS, sampleRate),
	}
}

// AnalyzeFile reads a WAV file and analyzes its first channel with a
// tuning derived from the file's own sample rate.
func AnalyzeFile(path string, set Settings) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("%s contains no samples", path)
	}

	numChannels := buf.Format.NumChannels
	if numChannels < 1 {
		numChannels = 1
	}
	depth := buf.SourceBitDepth
	if depth <= 0 || depth > 32 {
		depth = 16
	}
	scale := float64(uint64(1) << (depth - 1))

	samples := make([]float64, len(buf.Data)/numChannels)
	for i := range samples {
		samples[i] = float64(buf.Data[i*numChannels]) / scale
	}

	rate := buf.Format.SampleRate
	r := Analyze(samples, rate, set.tuning(float64(rate)))
	r.File = path
	return r, nil
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
