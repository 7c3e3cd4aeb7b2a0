// SPDX-License-Identifier: MIT
package midi

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"beatclock/internal/clock"
)

// capturePort collects written bytes behind a mutex so the test goroutine
// can inspect them after Stop.
type capturePort struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (c *capturePort) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *capturePort) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *capturePort) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

func TestWriterEmitsTimingClockBytes(t *testing.T) {
	port := &capturePort{}
	w := NewWriter(port, 16)
	w.Start()

	for i := 0; i < 5; i++ {
		if !w.Offer(clock.Pulse{Frame: uint64(1000 * i)}) {
			t.Fatalf("Offer rejected pulse %d with a near-empty channel", i)
		}
	}

	// Give the writer goroutine time to drain before stopping.
	deadline := time.Now().Add(2 * time.Second)
	for len(port.bytes()) < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	got := port.bytes()
	if len(got) != 5 {
		t.Fatalf("wrote %d bytes, want 5", len(got))
	}
	for i, b := range got {
		if b != TimingClock {
			t.Errorf("byte %d = %#x, want %#x", i, b, TimingClock)
		}
	}
	if w.Written() != 5 {
		t.Errorf("Written() = %d, want 5", w.Written())
	}
	if !port.closed {
		t.Error("Stop did not close the port")
	}
}

func TestOfferDropsWhenFull(t *testing.T) {
	// Writer not started: the channel fills and Offer must refuse
	// without blocking.
	w := NewWriter(NullPort(), 2)

	if !w.Offer(clock.Pulse{}) || !w.Offer(clock.Pulse{}) {
		t.Fatal("channel should accept up to its capacity")
	}
	if w.Offer(clock.Pulse{}) {
		t.Error("Offer accepted a pulse beyond channel capacity")
	}
}

func TestOfferZeroAlloc(t *testing.T) {
	w := NewWriter(NullPort(), 1)

	allocs := testing.AllocsPerRun(100, func() {
		w.Offer(clock.Pulse{Frame: 42})
	})
	if allocs > 0 {
		t.Errorf("expected zero allocations in Offer, got %.1f", allocs)
	}
}

func TestStopIdempotent(t *testing.T) {
	w := NewWriter(NullPort(), 4)
	w.Start()

	if err := w.Stop(); err != nil {
		t.Fatalf("first Stop error: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop error: %v", err)
	}
}

func TestStartAfterStop(t *testing.T) {
	port := &capturePort{}
	w := NewWriter(port, 4)

	w.Start()
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	// Restart uses a fresh done channel; the port is closed but the
	// goroutine lifecycle must still be sound.
	w.Start()
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop after restart error: %v", err)
	}
}
