// SPDX-License-Identifier: MIT
package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"beatclock/internal/clock"
	"beatclock/pkg/utils"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func analysisTuning() *clock.Tuning {
	return &clock.Tuning{
		Rising:           0.1,
		Falling:          0.01,
		RefractoryFrames: 4800,
		WarmupBeats:      4,
	}
}

func clickTrain64(length, firstOnset, period, clickLen int, amp float32) []float64 {
	f32 := utils.GenerateClickTrain(length, firstOnset, period, clickLen, amp)
	out := make([]float64, len(f32))
	for i, s := range f32 {
		out[i] = float64(s)
	}
	return out
}

func TestAnalyzeSteadyTrain(t *testing.T) {
	// 120 BPM at 48 kHz: one click every 24000 frames.
	samples := clickTrain64(48000*4, 1000, 24000, 64, 0.5)
	r := Analyze(samples, 48000, analysisTuning())

	wantOnsets := []uint64{1000, 25000, 49000, 73000, 97000, 121000, 145000, 169000}
	if len(r.OnsetFrames) != len(wantOnsets) {
		t.Fatalf("found %d onsets, want %d: %v", len(r.OnsetFrames), len(wantOnsets), r.OnsetFrames)
	}
	for i, want := range wantOnsets {
		if r.OnsetFrames[i] != want {
			t.Errorf("onset %d at frame %d, want %d", i, r.OnsetFrames[i], want)
		}
	}
	if r.Beats != uint64(len(wantOnsets)) {
		t.Errorf("Beats = %d, want %d", r.Beats, len(wantOnsets))
	}
	if math.Abs(r.MeanBPM-120) > 0.01 {
		t.Errorf("MeanBPM = %g, want 120", r.MeanBPM)
	}
	if r.StdDevBPM > 0.01 {
		t.Errorf("StdDevBPM = %g, want ~0 for a steady train", r.StdDevBPM)
	}
	if math.Abs(r.MeanPeriodMS-500) > 0.01 {
		t.Errorf("MeanPeriodMS = %g, want 500", r.MeanPeriodMS)
	}
	if len(r.IntervalsMS) != len(wantOnsets)-1 {
		t.Errorf("got %d intervals, want %d", len(r.IntervalsMS), len(wantOnsets)-1)
	}
}

// Quiet recordings are peak-normalized before thresholding, so a train
// well below the raw rising threshold is still detected.
func TestAnalyzeNormalizesQuietInput(t *testing.T) {
	samples := clickTrain64(48000*2, 1000, 24000, 64, 0.02)
	r := Analyze(samples, 48000, analysisTuning())

	if r.Beats != 4 {
		t.Errorf("Beats = %d, want 4", r.Beats)
	}
	if math.Abs(r.Peak-0.02) > 1e-6 {
		t.Errorf("Peak = %g, want 0.02", r.Peak)
	}
}

func TestAnalyzeSilence(t *testing.T) {
	r := Analyze(make([]float64, 48000), 48000, analysisTuning())
	if r.Beats != 0 {
		t.Errorf("Beats = %d, want 0 for silence", r.Beats)
	}
	if r.MeanBPM != 0 {
		t.Errorf("MeanBPM = %g, want 0", r.MeanBPM)
	}
	if r.Peak != 0 {
		t.Errorf("Peak = %g, want 0", r.Peak)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	r := Analyze(nil, 48000, analysisTuning())
	if r.Frames != 0 || r.Beats != 0 {
		t.Errorf("empty input produced Frames=%d Beats=%d", r.Frames, r.Beats)
	}
}

func TestAnalyzeSingleOnsetHasNoTempo(t *testing.T) {
	samples := clickTrain64(24000, 1000, 48000, 64, 0.5)
	r := Analyze(samples, 48000, analysisTuning())

	if r.Beats != 1 {
		t.Fatalf("Beats = %d, want 1", r.Beats)
	}
	if r.MeanBPM != 0 || r.StdDevBPM != 0 {
		t.Errorf("single onset reported tempo: mean=%g stddev=%g", r.MeanBPM, r.StdDevBPM)
	}
}

func TestAnalyzeReportsClickFrequency(t *testing.T) {
	// Clicks that are short 1 kHz tone bursts, every 24000 frames.
	samples := make([]float64, 48000*2)
	for onset := 1000; onset < len(samples); onset += 24000 {
		for i := 0; i < 192 && onset+i < len(samples); i++ {
			samples[onset+i] = 0.5 * math.Sin(2*math.Pi*1000*float64(i)/48000)
		}
	}

	r := Analyze(samples, 48000, analysisTuning())
	if r.Beats == 0 {
		t.Fatal("no beats detected in tone-burst train")
	}
	// One bin is 48000/1024 Hz; allow two bins of leakage.
	if math.Abs(r.ClickFrequencyHz-1000) > 2*48000.0/1024 {
		t.Errorf("ClickFrequencyHz = %g, want ~1000", r.ClickFrequencyHz)
	}
}

// writeWavFixture encodes samples as a 16-bit mono WAV at the given rate.
func writeWavFixture(t *testing.T, path string, samples []float32, sampleRate int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		buf.Data[i] = int(s * 32767)
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
}

func TestAnalyzeFileRoundTrip(t *testing.T) {
	// 120 BPM at 44.1 kHz: one click every 22050 frames. The tuning must
	// follow the file's rate, not the 48 kHz live default.
	const rate = 44100
	path := filepath.Join(t.TempDir(), "train.wav")
	writeWavFixture(t, path, utils.GenerateClickTrain(rate*2, 1000, 22050, 64, 0.5), rate)

	set := Settings{RisingDB: -20, FallingDB: -40, RefractoryMS: 100}
	r, err := AnalyzeFile(path, set)
	if err != nil {
		t.Fatalf("AnalyzeFile error: %v", err)
	}

	if r.SampleRate != rate {
		t.Errorf("SampleRate = %d, want %d from the file header", r.SampleRate, rate)
	}
	if r.File != path {
		t.Errorf("File = %q, want %q", r.File, path)
	}
	wantOnsets := []uint64{1000, 23050, 45100, 67150}
	if len(r.OnsetFrames) != len(wantOnsets) {
		t.Fatalf("found %d onsets, want %d: %v", len(r.OnsetFrames), len(wantOnsets), r.OnsetFrames)
	}
	for i, want := range wantOnsets {
		if r.OnsetFrames[i] != want {
			t.Errorf("onset %d at frame %d, want %d", i, r.OnsetFrames[i], want)
		}
	}
	if math.Abs(r.MeanBPM-120) > 0.01 {
		t.Errorf("MeanBPM = %g, want 120", r.MeanBPM)
	}
	if math.Abs(r.MeanPeriodMS-500) > 0.01 {
		t.Errorf("MeanPeriodMS = %g, want 500", r.MeanPeriodMS)
	}
}

func TestSettingsTuningFollowsSampleRate(t *testing.T) {
	set := Settings{RisingDB: -20, FallingDB: -40, RefractoryMS: 100}

	if got := set.tuning(44100).RefractoryFrames; got != 4410 {
		t.Errorf("refractory at 44.1 kHz = %d frames, want 4410", got)
	}
	if got := set.tuning(48000).RefractoryFrames; got != 4800 {
		t.Errorf("refractory at 48 kHz = %d frames, want 4800", got)
	}
	tun := set.tuning(48000)
	if math.Abs(float64(tun.Rising)-0.1) > 1e-6 {
		t.Errorf("Rising = %g, want 0.1 for -20 dB", tun.Rising)
	}
	if math.Abs(float64(tun.Falling)-0.01) > 1e-6 {
		t.Errorf("Falling = %g, want 0.01 for -40 dB", tun.Falling)
	}
}

func TestAnalyzeFileMissing(t *testing.T) {
	_, err := AnalyzeFile(filepath.Join(t.TempDir(), "nope.wav"), Settings{})
	if err == nil {
		t.Fatal("expected an error for a nonexistent file")
	}
}

func TestAnalyzeFileNotWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("not a riff chunk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := AnalyzeFile(path, Settings{}); err == nil {
		t.Fatal("expected an error for a non-WAV file")
	}
}

func TestReportWriteJSON(t *testing.T) {
	samples := clickTrain64(48000*2, 1000, 24000, 64, 0.5)
	r := Analyze(samples, 48000, analysisTuning())

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.Beats != r.Beats {
		t.Errorf("decoded Beats = %d, want %d", decoded.Beats, r.Beats)
	}
	if decoded.SampleRate != 48000 {
		t.Errorf("decoded SampleRate = %d, want 48000", decoded.SampleRate)
	}
}
