// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"beatclock/internal/clock"
	applog "beatclock/internal/log"
)

// StatusPacketSize is the wire size of one UDP status packet.
const StatusPacketSize = 4 + 8 + 8 + 8 + 8 + 8 + 8 + 1 + 4

/*
UDP status packet, BigEndian:

| Field            | Type    | Bytes |
|------------------|---------|-------|
| Sequence number  | uint32  | 4     |
| Timestamp        | int64   | 8     | nanoseconds since epoch
| Frame            | uint64  | 8     |
| Beats            | uint64  | 8     |
| Pulses           | uint64  | 8     |
| Frames per pulse | uint64  | 8     |
| BPM              | float64 | 8     |
| Active           | uint8   | 1     | 0 or 1
| Peak             | float32 | 4     |
*/

// UDPTransport packs status snapshots into fixed-size binary packets
// and fires them at a single target address. One packet per Send; lost
// packets are fine, the next snapshot supersedes them.
type UDPTransport struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool

	sequenceNum uint32
	packet      *bytes.Buffer
}

// NewUDPTransport dials the target ("host:port") and returns a ready
// transport.
func NewUDPTransport(targetAddress string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	applog.Infof("Transport: UDP status packets to %s", conn.RemoteAddr())

	buf := new(bytes.Buffer)
	buf.Grow(StatusPacketSize)
	return &UDPTransport{conn: conn, packet: buf}, nil
}

// Send packs and transmits one snapshot.
func (t *UDPTransport) Send(status clock.Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("UDP transport is closed")
	}

	t.sequenceNum++
	t.packet.Reset()

	active := uint8(0)
	if status.Active {
		active = 1
	}

	err := binary.Write(t.packet, binary.BigEndian, t.sequenceNum)
	for _, field := range []any{
		time.Now().UnixNano(),
		status.Frame,
		status.Beats,
		status.Pulses,
		status.FramesPerPulse,
		status.BPM,
		active,
		status.Peak,
	} {
		if err != nil {
			break
		}
		err = binary.Write(t.packet, binary.BigEndian, field)
	}
	if err != nil {
		return fmt.Errorf("failed to pack status packet: %w", err)
	}

	if _, err := t.conn.Write(t.packet.Bytes()); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the socket. Subsequent Sends fail.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

var _ Transport = (*UDPTransport)(nil)
