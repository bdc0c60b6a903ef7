// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import "fmt"

// EncodePlan describes one outgoing frame. It is built once per stream
// template and then reused across every paced transmission, with only the
// BBL flow_seq/timestamp changing call to call — see PatchBBLTiming for the
// fast path that avoids a full re-encode.
type EncodePlan struct {
	Eth        Ethernet
	MPLSLabels []MPLSLabel

	Network NetworkProto
	IPv4    IPv4
	IPv6    IPv6

	Transport TransportProto
	ICMP      ICMPEcho
	UDP       UDP

	// BBL, if non-nil, is encoded as the innermost payload after whatever
	// transport header Transport selects. BBLTotalLen is the padded length
	// (>= BBLHeaderLen) of that payload.
	BBL         *BBLHeader
	BBLTotalLen int

	// RawPayload, used only when BBL is nil, is copied verbatim as the
	// innermost payload.
	RawPayload []byte
}

func (p *EncodePlan) payloadLen() int {
	if p.BBL != nil {
		return p.BBLTotalLen
	}
	return len(p.RawPayload)
}

func (p *EncodePlan) writePayload(buf []byte) error {
	if p.BBL != nil {
		_, err := EncodeBBL(buf, p.BBL, p.BBLTotalLen)
		return err
	}
	if len(buf) < len(p.RawPayload) {
		return fmt.Errorf("buffer too small: need %d have %d", len(p.RawPayload), len(buf))
	}
	copy(buf, p.RawPayload)
	return nil
}

// Encode renders p into buf and returns the number of bytes written. It is
// the symmetric counterpart to Decode: every field Decode would have
// populated from the wire, Encode consumes to produce it.
//
// ARP replies and bare ICMPv6 ND messages have no home here: they carry no
// BBL/UDP body and are built directly by the interface control layer via
// EncodeARP and raw ICMPv6 byte manipulation.
func Encode(buf []byte, p *EncodePlan) (int, error) {
	eth := p.Eth
	if len(p.MPLSLabels) > 0 {
		eth.EtherType = EtherTypeMPLSUnicast
	} else if p.Network == NetworkIPv4 {
		eth.EtherType = EtherTypeIPv4
	} else if p.Network == NetworkIPv6 {
		eth.EtherType = EtherTypeIPv6
	}

	off, err := encodeEthernet(buf, &eth)
	if err != nil {
		return 0, &EncodeError{Layer: "ethernet", Err: err}
	}

	if len(p.MPLSLabels) > 0 {
		n, err := encodeMPLS(buf[off:], p.MPLSLabels)
		if err != nil {
			return 0, &EncodeError{Layer: "mpls", Err: err}
		}
		off += n
	}

	payloadLen := p.payloadLen()
	transportHeaderLen := transportHeaderLenFor(p.Transport)
	transportTotalLen := transportHeaderLen + payloadLen

	var netHeaderLen int
	switch p.Network {
	case NetworkIPv4:
		ipv4 := p.IPv4
		ipv4.Protocol = transportProtocolNumberV4(p.Transport)
		n, err := encodeIPv4(buf[off:], &ipv4, transportTotalLen)
		if err != nil {
			return 0, &EncodeError{Layer: "ipv4", Err: err}
		}
		netHeaderLen = n
	case NetworkIPv6:
		ipv6 := p.IPv6
		ipv6.NextHeader = transportProtocolNumberV6(p.Transport)
		n, err := encodeIPv6(buf[off:], &ipv6, transportTotalLen)
		if err != nil {
			return 0, &EncodeError{Layer: "ipv6", Err: err}
		}
		netHeaderLen = n
	default:
		return 0, &EncodeError{Layer: "network", Err: fmt.Errorf("unsupported network proto %d", p.Network)}
	}
	off += netHeaderLen

	transportBuf := buf[off : off+transportTotalLen]
	if err := p.writePayload(transportBuf[transportHeaderLen:]); err != nil {
		return 0, &EncodeError{Layer: "payload", Err: err}
	}

	switch p.Transport {
	case TransportUDP:
		udp := p.UDP
		pseudoSum := pseudoSumFor(p)
		if _, err := encodeUDP(transportBuf, &udp, payloadLen, pseudoSum); err != nil {
			return 0, &EncodeError{Layer: "udp", Err: err}
		}
	case TransportICMP:
		icmp := p.ICMP
		if _, err := encodeICMPEcho(transportBuf, &icmp, payloadLen, 0); err != nil {
			return 0, &EncodeError{Layer: "icmp", Err: err}
		}
	case TransportICMPv6:
		icmp := p.ICMP
		if _, err := encodeICMPEcho(transportBuf, &icmp, payloadLen, pseudoSumFor(p)); err != nil {
			return 0, &EncodeError{Layer: "icmpv6", Err: err}
		}
	case TransportTCP:
		// No header of our own to write; RawPayload/BBL already placed.
	default:
		return 0, &EncodeError{Layer: "transport", Err: fmt.Errorf("unsupported transport proto %d", p.Transport)}
	}

	return off + transportTotalLen, nil
}

func transportHeaderLenFor(t TransportProto) int {
	switch t {
	case TransportUDP:
		return udpHeaderLen
	case TransportICMP, TransportICMPv6:
		return icmpEchoHeaderLen
	default:
		return 0
	}
}

func pseudoSumFor(p *EncodePlan) uint32 {
	transportTotalLen := transportHeaderLenFor(p.Transport) + p.payloadLen()
	switch p.Network {
	case NetworkIPv4:
		// IPv4 UDP checksum is optional; the emulator leaves it at zero
		// (encodeUDP treats a zero pseudoSum as "skip checksum").
		if p.Transport == TransportUDP {
			return 0
		}
		return pseudoHeaderSumV4(p.IPv4.SrcIP, p.IPv4.DstIP, transportProtocolNumberV4(p.Transport), transportTotalLen)
	case NetworkIPv6:
		return pseudoHeaderSumV6(p.IPv6.SrcIP, p.IPv6.DstIP, transportProtocolNumberV6(p.Transport), transportTotalLen)
	default:
		return 0
	}
}

func transportProtocolNumberV4(t TransportProto) uint8 {
	switch t {
	case TransportICMP:
		return ProtoICMPv4
	case TransportUDP:
		return ProtoUDP
	case TransportTCP:
		return ProtoTCP
	default:
		return 0
	}
}

func transportProtocolNumberV6(t TransportProto) uint8 {
	switch t {
	case TransportICMPv6:
		return ProtoICMPv6
	case TransportUDP:
		return ProtoUDP
	case TransportTCP:
		return ProtoTCP
	default:
		return 0
	}
}

// EncodeARP renders an ARP reply/request frame (Ethernet + ARP, no IP
// layer) into buf.
func EncodeARP(buf []byte, eth *Ethernet, arp *ARP) (int, error) {
	eth.EtherType = EtherTypeARP
	off, err := encodeEthernet(buf, eth)
	if err != nil {
		return 0, &EncodeError{Layer: "ethernet", Err: err}
	}
	n, err := encodeARP(buf[off:], arp)
	if err != nil {
		return 0, &EncodeError{Layer: "arp", Err: err}
	}
	return off + n, nil
}
