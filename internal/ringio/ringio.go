// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ringio binds a NetworkInterface to the kernel's packet I/O: a
// memory-mapped AF_PACKET ring in the common case, a plain raw socket as a
// fallback, or an in-memory loopback pair for tests and scenarios that
// never touch a real NIC. It implements the RX-drain/TX-burst discipline
// spec's §4.C describes, handing received control frames to
// internal/ifctrl and test frames to internal/rxmatch.
package ringio

import (
	"time"
)

// Mode selects an IoHandle's backend, mirroring the bound/unbound modes a
// real deployment chooses between per interface.
type Mode uint8

const (
	// ModeDisabled backs a NetworkInterface with an in-memory pair, for
	// loopback test scenarios and interfaces not yet wired to a NIC.
	ModeDisabled Mode = iota
	// ModeRing backs a NetworkInterface with a memory-mapped AF_PACKET
	// ring, shared with the kernel rather than copied per packet.
	ModeRing
	// ModeRaw backs a NetworkInterface with a plain raw AF_PACKET socket,
	// one copy per packet, for kernels or containers where the mmap ring
	// path isn't available.
	ModeRaw
)

// Direction is the bound direction of one IoHandle, mirroring one NIC
// queue: a physical port typically has one ingress and one egress handle.
type Direction uint8

const (
	DirectionIngress Direction = iota
	DirectionEgress
)

// Stats tracks one IoHandle's packet/byte/error counters, single-writer
// from the thread that owns the handle.
type Stats struct {
	Packets        uint64
	Bytes          uint64
	ProtocolErrors uint64
	IOErrors       uint64
	NoBuffer       uint64
	Polled         uint64
}

// Frame is one received frame: a view into handle-owned storage valid only
// until the next Recv call, plus the kernel-reported receive timestamp.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// Handle is the behavior internal/ringio's three backends share: receive
// one frame at a time (draining what the kernel has queued), transmit one
// frame at a time, and report accumulated stats. Handle satisfies
// ifmodel.IOHandle via Close.
type Handle interface {
	Mode() Mode
	Direction() Direction

	// Recv returns the next queued frame, or ok=false if nothing is
	// currently available (not an error — the poll loop backs off and
	// retries).
	Recv(scratch []byte) (frame Frame, ok bool, err error)

	// Send transmits buf, returning false only on kernel backpressure
	// (ring full); an error indicates something more serious.
	Send(buf []byte) (ok bool, err error)

	// Flush notifies the kernel of everything queued by Send since the
	// last Flush, for backends that batch their kernel notify.
	Flush() error

	Stats() Stats
	Close() error
}

// maxFrameSize bounds every scratch buffer ringio hands to the codec,
// matching the largest frame internal/codec's Packet can decode.
const maxFrameSize = 9216

// FrameCapture receives a copy of every frame an RXThread or TXThread
// handles, for optional pcap recording. Implementations must not retain
// data beyond the call, since callers reuse the backing buffer.
type FrameCapture interface {
	WriteFrame(data []byte, ts time.Time, ingress bool) error
}

// RingSink adapts a Handle to internal/stream's Sink interface, so a
// Stream assigned directly to a NetworkInterface (no TX worker) can
// transmit straight into the handle without an intervening SPSC ring.
type RingSink struct {
	Handle Handle
}

// Send transmits buf, reporting kernel backpressure as false exactly as
// stream.Sink requires; a transport error also reports false, since the
// stream scheduler has no error channel of its own.
func (s RingSink) Send(buf []byte) bool {
	ok, err := s.Handle.Send(buf)
	if err != nil {
		return false
	}
	return ok
}

// CapturingSink wraps another stream.Sink, mirroring every successfully
// sent frame to Capture before returning. Used to fold a stream's own
// generated traffic into the same pcap file as the control-plane frames
// internal/ringio's threads already capture.
type CapturingSink struct {
	Sink    interface{ Send(buf []byte) bool }
	Capture FrameCapture
}

func (s CapturingSink) Send(buf []byte) bool {
	ok := s.Sink.Send(buf)
	if ok && s.Capture != nil {
		_ = s.Capture.WriteFrame(buf, time.Now(), false)
	}
	return ok
}
