// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rxmatch identifies, verifies, and accounts for received BBL test
// packets against the Stream that owns their flow_id.
package rxmatch

import (
	"time"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/stream"
)

// Table is a flow_id-keyed lookup of live streams. Per the concurrency
// model, it is written only at stream creation/destruction from the main
// thread and read-only from RX hot paths — no locking here; callers must
// serialize writes with any concurrent RX themselves if they run RX on a
// separate worker (see internal/ringio).
type Table struct {
	byFlowID map[uint64]*stream.Stream
	created  int
	verified int
}

// New creates an empty Table.
func New() *Table {
	return &Table{byFlowID: make(map[uint64]*stream.Stream)}
}

// Register adds s to the table under its FlowID, counting it toward the
// "all flows verified" threshold.
func (t *Table) Register(s *stream.Stream) {
	t.byFlowID[s.FlowID] = s
	t.created++
}

// Unregister removes s, e.g. on stream destruction.
func (t *Table) Unregister(s *stream.Stream) {
	delete(t.byFlowID, s.FlowID)
}

// AllVerified reports whether every registered stream has matched its
// first packet.
func (t *Table) AllVerified() bool {
	return t.created > 0 && t.verified >= t.created
}

// Match processes one decoded BBL-bearing packet against its stream,
// returning the stream it matched (nil if the flow_id is unknown — counted
// as unknown-flow by the caller, not an error here).
func (t *Table) Match(pkt *codec.Packet, rxTime time.Time) *stream.Stream {
	s, ok := t.byFlowID[pkt.BBL.FlowID]
	if !ok {
		return nil
	}

	if !s.RX.Verified {
		if !firstSeenMatches(s, pkt) {
			s.RX.WrongSession++
			return s
		}
		s.RX.Verified = true
		s.RX.FirstSeq = pkt.BBL.FlowSeq
		s.RX.LastSeq = pkt.BBL.FlowSeq - 1
		s.RX.RXLen = len(pkt.RawPayload) + codecHeaderLenHint(pkt)
		s.RX.RXTOS = pkt.BBL.TOS
		s.RX.RXOuterPCP = pkt.Eth.VLANs[0].PCP()
		if pkt.Eth.VLANCount > 1 {
			s.RX.RXInnerPCP = pkt.Eth.VLANs[1].PCP()
		}
		s.RX.RXMPLSCount = pkt.MPLSCount
		for i := 0; i < pkt.MPLSCount && i < 2; i++ {
			s.RX.RXMPLS[i] = pkt.MPLSLabels[i]
		}
		t.verified++
	}

	if pkt.BBL.FlowSeq > s.RX.LastSeq+1 {
		s.RX.Loss += pkt.BBL.FlowSeq - s.RX.LastSeq - 1
	}
	s.RX.LastSeq = pkt.BBL.FlowSeq
	s.RX.Packets++

	txTime := time.Unix(int64(pkt.BBL.TimestampSec), int64(pkt.BBL.TimestampNsec))
	s.RX.ObserveDelay(rxTime.Sub(txTime).Nanoseconds())

	return s
}

// firstSeenMatches verifies the stream's configured sub_type/direction
// against the packet's, plus configured RX MPLS labels and, for
// session-bound streams, VLANs and session_id.
func firstSeenMatches(s *stream.Stream, pkt *codec.Packet) bool {
	wantSubType := codec.BBLSubTypeIPv4
	switch s.Kind {
	case stream.KindIPv6:
		wantSubType = codec.BBLSubTypeIPv6
	case stream.KindIPv6PD:
		wantSubType = codec.BBLSubTypeIPv6PD
	}
	if pkt.BBL.SubType != wantSubType {
		return false
	}

	wantDirection := codec.BBLDirectionUp
	if s.Direction == stream.Down {
		wantDirection = codec.BBLDirectionDown
	}
	if pkt.BBL.Direction != wantDirection {
		return false
	}

	for i, want := range s.RXExpectedMPLS {
		if want == nil {
			continue
		}
		if i >= pkt.MPLSCount || pkt.MPLSLabels[i].Label != *want {
			return false
		}
	}

	if s.Session != nil {
		if pkt.Eth.VLANCount > 0 && pkt.Eth.VLANs[0].VID() != s.Session.OuterVLAN() {
			return false
		}
		if pkt.Eth.VLANCount > 1 && pkt.Eth.VLANs[1].VID() != s.Session.InnerVLAN() {
			return false
		}
		if pkt.BBL.SessionID != uint32(s.Session.PPPoESessionID()) {
			return false
		}
	}

	return true
}

func codecHeaderLenHint(pkt *codec.Packet) int {
	switch pkt.Network {
	case codec.NetworkIPv4:
		return 20 + 8
	case codec.NetworkIPv6:
		return 40 + 8
	default:
		return 0
	}
}
