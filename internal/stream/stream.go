// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package stream implements one unidirectional flow of BBL test traffic:
// its packet template, sendability gate, and the drift-correcting
// send-window pacing algorithm that drives it.
package stream

import (
	"net"
	"time"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/handlers"
	"grimm.is/gwemu/internal/ifmodel"
	"grimm.is/gwemu/internal/txq"
)

// Kind is the stream's address family, mirroring codec's BBL sub_type.
type Kind uint8

const (
	KindIPv4 Kind = iota
	KindIPv6
	KindIPv6PD
)

// Direction is the stream's nominal traffic direction relative to the
// subscriber: Up from the subscriber, Down to it.
type Direction uint8

const (
	Up Direction = iota
	Down
)

// Encap selects how a stream's template is wrapped.
type Encap uint8

const (
	Raw Encap = iota
	AccessPPPoE
	AccessIPoE
	A10NSPCrossConnect
	L2TPTunnel
)

// Overrides holds the explicit per-stream template overrides the config
// layer may set, taking precedence over values derived from the Session or
// NetworkInterface.
type Overrides struct {
	DestIP       net.IP
	SrcIP        net.IP
	AccessSource bool
}

// RXState is the flow-matching state the RX matcher (internal/rxmatch)
// mutates directly. It lives on the Stream it matches so lookups need only
// the flow_id-keyed map, with no second indirection.
type RXState struct {
	Verified     bool
	FirstSeq     uint64
	LastSeq      uint64
	Loss         uint64
	WrongSession uint64
	Packets      uint64
	Bytes        uint64

	DelayMinNsec int64
	DelayMaxNsec int64
	delaySeen    bool

	RXLen       int
	RXTOS       uint8
	RXOuterPCP  uint8
	RXInnerPCP  uint8
	RXMPLS      [2]codec.MPLSLabel
	RXMPLSCount int
}

// ObserveDelay folds one sample into min/max, initializing on first sample
// without needing a sentinel value.
func (rx *RXState) ObserveDelay(nsec int64) {
	if !rx.delaySeen {
		rx.DelayMinNsec, rx.DelayMaxNsec = nsec, nsec
		rx.delaySeen = true
		return
	}
	if nsec < rx.DelayMinNsec {
		rx.DelayMinNsec = nsec
	}
	if nsec > rx.DelayMaxNsec {
		rx.DelayMaxNsec = nsec
	}
}

// TXState is the stream's transmit-side runtime state, single-writer from
// the owning scheduler/worker.
type TXState struct {
	Packets uint64
	Bytes   uint64
}

// Stream is one unidirectional flow of test packets, keyed densely and
// globally by FlowID at creation.
type Stream struct {
	FlowID    uint64
	Name      string
	Kind      Kind
	Direction Direction
	Length    int
	TOS       uint8
	VLANPCP   uint8
	PPS       float64
	StartDelay time.Duration
	MaxPackets uint64
	TXLabels   []codec.MPLSLabel
	Encap      Encap

	// RXExpectedMPLS holds the configured rx_mpls{1,2}_label expectation,
	// nil where none was configured. Read by internal/stats to report
	// rx-mpls{1,2}-expected alongside the observed label.
	RXExpectedMPLS [2]*uint32

	Session   handlers.Session // nil for raw streams
	Interface *ifmodel.NetworkInterface
	Overrides Overrides

	// Metadata is an operator-supplied, JSON-encoded free-form annotation
	// (e.g. a test-case ID or vendor sub-option) carried through from the
	// config's opaque metadata block, logged at startup but otherwise not
	// interpreted. Empty when the block was omitted.
	Metadata string

	// Sink is where encoded packets are handed off: either a direct
	// NetworkInterface TX ring adapter or a worker's SPSC ring adapter.
	// Nil Sink means the stream cannot yet transmit (not wired by
	// orchestration).
	Sink Sink

	txBuf      []byte
	txLen      int
	bblOffset  int
	flowSeq    uint64
	windowT0   time.Time
	windowN    uint64
	sentTotal  uint64
	waitUntil  time.Time
	stopped    bool
	multicast  bool

	TX TXState
	RX RXState
}

// Sink accepts one fully-encoded frame, returning false if it could not be
// queued (ring full or interface not yet resolved) — back-pressure, not an
// error.
type Sink interface {
	Send(buf []byte) bool
}

// RingSink adapts a txq.Ring to the Sink interface, copying the frame's
// bytes into one slot and stamping its enqueue time; the slot's VLAN
// metadata fields are left unset.
type RingSink struct {
	Ring *txq.Ring
}

func (s RingSink) Send(buf []byte) bool {
	slot := s.Ring.WriteSlot()
	if slot == nil {
		return false
	}
	n := copy(slot.Data[:], buf)
	slot.Len = n
	slot.Timestamp = time.Now().UnixNano()
	s.Ring.WriteNext()
	return true
}

// New constructs a Stream with flow_seq initialized to 1, as required: a
// fresh stream's first transmitted packet carries flow_seq 1, not 0.
func New(flowID uint64, name string, kind Kind, dir Direction) *Stream {
	return &Stream{
		FlowID:    flowID,
		Name:      name,
		Kind:      kind,
		Direction: dir,
		flowSeq:   1,
	}
}

// Reset clears all TX/RX runtime state, including invalidating any cached
// template, without forgetting the stream's static configuration.
func (s *Stream) Reset() {
	s.txBuf = nil
	s.txLen = 0
	s.bblOffset = 0
	s.flowSeq = 1
	s.windowT0 = time.Time{}
	s.windowN = 0
	s.sentTotal = 0
	s.waitUntil = time.Time{}
	s.stopped = false
	s.RX = RXState{}
}

// Stop marks the stream for cooperative shutdown: the next SendIter zeroes
// the send window and returns 0 without transmitting.
func (s *Stream) Stop() { s.stopped = true }

// HasTemplate reports whether a packet template has been built and cached.
func (s *Stream) HasTemplate() bool { return s.txBuf != nil }
