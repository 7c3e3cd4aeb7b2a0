// SPDX-License-Identifier: MIT
package audio

import (
	"testing"

	"beatclock/internal/clock"
	"beatclock/internal/midi"
	"beatclock/internal/params"
	"beatclock/pkg/utils"
)

const testSampleRate = 48000.0

func newTestProcessor(t *testing.T, buffer int) (*ClockProcessor, *midi.Writer) {
	t.Helper()
	store := params.NewStore(testSampleRate, -20.0, -40.0, 100.0, 4)
	tracker := clock.NewTracker(testSampleRate, clock.DefaultMaxPulsesPerBlock)
	writer := midi.NewWriter(midi.NullPort(), buffer)
	return NewClockProcessor(store, tracker, writer), writer
}

// Feed a click train through the processor in stream-sized blocks and
// check that the pulses the scheduler fires all land in the writer's
// channel when the buffer is generous.
func TestClockProcessorForwardsPulses(t *testing.T) {
	proc, writer := newTestProcessor(t, 256)
	writer.Start()
	defer writer.Stop()

	const block = 512
	in := utils.GenerateClickTrain(192000, 1000, 48000, 64, 0.5)
	out := make([]float32, block)

	for start := 0; start+block <= len(in); start += block {
		proc.ProcessBlock(in[start:start+block], out, uint64(start))
	}

	if got := proc.Tracker().Scheduler().Pulses(); got == 0 {
		t.Fatal("expected scheduled pulses, got none")
	}
	if got := proc.DroppedPulses(); got != 0 {
		t.Errorf("DroppedPulses() = %d, want 0", got)
	}
}

// With the writer stopped and its buffer tiny, overflow pulses must be
// dropped rather than blocking the callback path.
func TestClockProcessorDropsOnFullBuffer(t *testing.T) {
	proc, _ := newTestProcessor(t, 1)

	const block = 512
	in := utils.GenerateClickTrain(192000, 1000, 48000, 64, 0.5)
	out := make([]float32, block)

	for start := 0; start+block <= len(in); start += block {
		proc.ProcessBlock(in[start:start+block], out, uint64(start))
	}

	fired := proc.Tracker().Scheduler().Pulses()
	if fired < 2 {
		t.Fatalf("expected at least 2 pulses, got %d", fired)
	}
	if got := proc.DroppedPulses(); got != fired-1 {
		t.Errorf("DroppedPulses() = %d, want %d", got, fired-1)
	}
}

// A nil writer is the headless no-MIDI configuration; the processor
// still tracks and rectifies.
func TestClockProcessorNilWriter(t *testing.T) {
	store := params.NewStore(testSampleRate, -20.0, -40.0, 100.0, 4)
	tracker := clock.NewTracker(testSampleRate, clock.DefaultMaxPulsesPerBlock)
	proc := NewClockProcessor(store, tracker, nil)

	in := []float32{-0.5, 0.25, -0.125, 0.0}
	out := make([]float32, len(in))
	proc.ProcessBlock(in, out, 0)

	want := []float32{0.5, 0.25, 0.125, 0.0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %g, want %g", i, out[i], want[i])
		}
	}
}

// Parameter changes land on the hot path via the snapshot pointer: raise
// the rising threshold above the click level and detection stops.
func TestClockProcessorLiveRetune(t *testing.T) {
	proc, _ := newTestProcessor(t, 256)
	store := params.NewStore(testSampleRate, -2.0, -40.0, 100.0, 4)
	proc.store = store

	const block = 512
	in := utils.GenerateClickTrain(96000, 1000, 48000, 64, 0.5)
	out := make([]float32, block)
	for start := 0; start+block <= len(in); start += block {
		proc.ProcessBlock(in[start:start+block], out, uint64(start))
	}
	if got := proc.Tracker().Detector().Beats(); got != 0 {
		t.Fatalf("beats with -2 dB threshold = %d, want 0", got)
	}

	store.SetRisingDB(-20.0)
	for start := 0; start+block <= len(in); start += block {
		proc.ProcessBlock(in[start:start+block], out, uint64(96000+start))
	}
	if got := proc.Tracker().Detector().Beats(); got == 0 {
		t.Fatal("expected beats after lowering threshold, got none")
	}
}

func TestClockProcessorZeroAlloc(t *testing.T) {
	proc, _ := newTestProcessor(t, 256)

	const block = 512
	in := utils.GenerateClickTrain(block*8, 100, block*2, 32, 0.5)
	out := make([]float32, block)

	avg := testing.AllocsPerRun(100, func() {
		for start := 0; start+block <= len(in); start += block {
			proc.ProcessBlock(in[start:start+block], out, uint64(start))
		}
	})
	if avg != 0 {
		t.Errorf("ProcessBlock allocated %.1f times per run, want 0", avg)
	}
}

func BenchmarkClockProcessor(b *testing.B) {
	store := params.NewStore(testSampleRate, -20.0, -40.0, 100.0, 4)
	tracker := clock.NewTracker(testSampleRate, clock.DefaultMaxPulsesPerBlock)
	proc := NewClockProcessor(store, tracker, midi.NewWriter(midi.NullPort(), 256))

	const block = 512
	in := utils.GenerateClickTrain(block, 100, block, 32, 0.5)
	out := make([]float32, block)

	var frame uint64
	for b.Loop() {
		proc.ProcessBlock(in, out, frame)
		frame += block
	}
}
