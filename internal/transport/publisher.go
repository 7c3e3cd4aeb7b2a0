// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
	"time"

	"beatclock/internal/clock"
	applog "beatclock/internal/log"
)

// StatusPublisher samples the tracker telemetry on a ticker and fans
// each snapshot out to its transports. It owns one goroutine between
// Start and Stop.
type StatusPublisher struct {
	telem      *clock.Telemetry
	sampleRate float64
	interval   time.Duration
	transports []Transport

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewStatusPublisher builds a publisher over the given transports.
// Intervals at or below zero fall back to 50ms.
func NewStatusPublisher(interval time.Duration, telem *clock.Telemetry, sampleRate float64, transports ...Transport) *StatusPublisher {
	if interval <= 0 {
		interval = 50 * time.Millisecond
		applog.Warnf("StatusPublisher: invalid interval, defaulting to %s", interval)
	}
	return &StatusPublisher{
		telem:      telem,
		sampleRate: sampleRate,
		interval:   interval,
		transports: transports,
	}
}

// Start launches the publishing goroutine. Calling Start while running
// is a no-op.
func (p *StatusPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("StatusPublisher: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("StatusPublisher: publishing every %s to %d transport(s)", p.interval, len(p.transports))
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

func (p *StatusPublisher) publish() {
	status := p.telem.Snapshot(p.sampleRate)
	for _, t := range p.transports {
		if err := t.Send(status); err != nil {
			applog.Debugf("StatusPublisher: send failed: %v", err)
		}
	}
}

// Stop signals the goroutine and waits for it to exit. Safe to call
// repeatedly and before Start.
func (p *StatusPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Close implements io.Closer by stopping the publisher.
func (p *StatusPublisher) Close() error {
	return p.Stop()
}
