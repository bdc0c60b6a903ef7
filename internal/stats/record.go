// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package stats

import (
	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/stream"
)

const ethernetHeaderLen = 14
const vlanTagLen = 4
const mplsLabelLen = 4

// MPLSRecord reports one observed MPLS label against its configured
// expectation, present only when the stream configured an rx_mplsN_label
// expectation or actually observed a label at that stack depth.
type MPLSRecord struct {
	Label    uint32 `json:"label"`
	Exp      uint8  `json:"exp"`
	TTL      uint8  `json:"ttl"`
	Expected bool   `json:"expected"`
}

// Record is the per-stream observability snapshot rendered once per
// reconciliation tick, matching the field set external tooling consumes.
type Record struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	FlowID    uint64 `json:"flow_id"`

	RXFirstSeq      uint64 `json:"rx-first-seq"`
	RXLastSeq       uint64 `json:"rx-last-seq"`
	RXTOSTC         uint8  `json:"rx-tos-tc"`
	RXOuterVLANPBit uint8  `json:"rx-outer-vlan-pbit"`
	RXInnerVLANPBit uint8  `json:"rx-inner-vlan-pbit"`

	RXLen int `json:"rx-len"`
	TXLen int `json:"tx-len"`

	RXPackets uint64 `json:"rx-packets"`
	TXPackets uint64 `json:"tx-packets"`
	RXLoss    uint64 `json:"rx-loss"`

	RXDelayMinNsec int64 `json:"rx-delay-nsec-min"`
	RXDelayMaxNsec int64 `json:"rx-delay-nsec-max"`

	RXPPS float64 `json:"rx-pps"`
	TXPPS float64 `json:"tx-pps"`

	TXBpsL2 float64 `json:"tx-bps-l2"`
	RXBpsL2 float64 `json:"rx-bps-l2"`
	RXBpsL3 float64 `json:"rx-bps-l3"`

	TXMbpsL2 float64 `json:"tx-mbps-l2"`
	RXMbpsL2 float64 `json:"rx-mbps-l2"`
	RXMbpsL3 float64 `json:"rx-mbps-l3"`

	RXMPLS1 *MPLSRecord `json:"rx-mpls1,omitempty"`
	RXMPLS2 *MPLSRecord `json:"rx-mpls2,omitempty"`
}

// directionString renders a stream's Direction the way external consumers
// expect: "up" or "down", never the zero-value numeric form.
func directionString(d stream.Direction) string {
	if d == stream.Down {
		return "down"
	}
	return "up"
}

// l2Overhead estimates the Ethernet framing (header plus VLAN tags plus any
// MPLS label stack) carried ahead of the L3 header, so rx-bps-l3 can be
// derived from the L3-and-later length internal/rxmatch already records.
func l2Overhead(vlanCount, mplsCount int) int {
	return ethernetHeaderLen + vlanCount*vlanTagLen + mplsCount*mplsLabelLen
}

func mplsRecord(label codec.MPLSLabel, expected *uint32) *MPLSRecord {
	return &MPLSRecord{
		Label:    label.Label,
		Exp:      label.Exp,
		TTL:      label.TTL,
		Expected: expected != nil && *expected == label.Label,
	}
}

// Snapshot renders s's current Record from the Engine's last reconciliation
// pass. Call after Reconcile so the rate fields reflect the latest tick;
// calling between ticks simply returns the previous tick's smoothed rates.
func (e *Engine) Snapshot(s *stream.Stream) Record {
	entry, ok := e.streams[s]
	var txPPS, rxPPS, txBpsL2, rxBpsL2 float64
	if ok {
		txPPS = entry.txPackets.rate
		rxPPS = entry.rxPackets.rate
		txBpsL2 = entry.txBytes.rate * 8
		rxBpsL2 = entry.rxBytes.rate * 8
	}

	vlanCount := 0
	if s.Interface != nil {
		if s.Interface.VLAN != 0 {
			vlanCount++
		}
	}
	rxBpsL3 := 0.0
	if s.RX.RXLen > 0 {
		// rxBpsL2 is a byte rate over the full observed frame; rxmatch's
		// RXLen is already L3-and-later, so scale by that packet's
		// L3-vs-L2 length ratio rather than tracking a second counter.
		overhead := l2Overhead(vlanCount, s.RX.RXMPLSCount)
		rxBpsL3 = rxBpsL2 * float64(s.RX.RXLen) / float64(s.RX.RXLen+overhead)
	}

	rec := Record{
		Name:            s.Name,
		Direction:       directionString(s.Direction),
		FlowID:          s.FlowID,
		RXFirstSeq:      s.RX.FirstSeq,
		RXLastSeq:       s.RX.LastSeq,
		RXTOSTC:         s.RX.RXTOS,
		RXOuterVLANPBit: s.RX.RXOuterPCP,
		RXInnerVLANPBit: s.RX.RXInnerPCP,
		RXLen:           s.RX.RXLen,
		TXLen:           s.Length,
		RXPackets:       s.RX.Packets,
		TXPackets:       s.TX.Packets,
		RXLoss:          s.RX.Loss,
		RXDelayMinNsec:  s.RX.DelayMinNsec,
		RXDelayMaxNsec:  s.RX.DelayMaxNsec,
		RXPPS:           rxPPS,
		TXPPS:           txPPS,
		TXBpsL2:         txBpsL2,
		RXBpsL2:         rxBpsL2,
		RXBpsL3:         rxBpsL3,
		TXMbpsL2:        txBpsL2 / 1e6,
		RXMbpsL2:        rxBpsL2 / 1e6,
		RXMbpsL3:        rxBpsL3 / 1e6,
	}

	if s.RX.RXMPLSCount > 0 || s.RXExpectedMPLS[0] != nil {
		if s.RX.RXMPLSCount > 0 {
			rec.RXMPLS1 = mplsRecord(s.RX.RXMPLS[0], s.RXExpectedMPLS[0])
		} else {
			rec.RXMPLS1 = &MPLSRecord{Expected: false}
		}
	}
	if s.RX.RXMPLSCount > 1 || s.RXExpectedMPLS[1] != nil {
		if s.RX.RXMPLSCount > 1 {
			rec.RXMPLS2 = mplsRecord(s.RX.RXMPLS[1], s.RXExpectedMPLS[1])
		} else {
			rec.RXMPLS2 = &MPLSRecord{Expected: false}
		}
	}

	return rec
}
