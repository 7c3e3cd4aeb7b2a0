// SPDX-License-Identifier: MIT
/*
Package transport publishes diagnostic status snapshots to external
consumers. Only telemetry travels here: frame clock, beat and pulse
counters, tempo estimate, detector state, peak level. The MIDI pulse
stream itself never leaves the process over a network.
*/
package transport

import "beatclock/internal/clock"

// Transport delivers one status snapshot to its consumers.
// Implementations must be safe for concurrent use and must not block
// the caller indefinitely.
type Transport interface {
	Send(status clock.Status) error
	Close() error
}
