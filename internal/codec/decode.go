// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

const (
	dhcpClientPort = uint16(68)
	dhcpServerPort = uint16(67)
	dhcpv6ClientPort = uint16(546)
	dhcpv6ServerPort = uint16(547)
)

// QMXLIPort is the UDP destination port carrying QMX lawful-intercept
// replication traffic, dispatched to an external handler rather than
// decoded here.
const QMXLIPort = uint16(55000)

// Decode parses buf into pkt, returning the outcome tag per the codec's
// decode contract: Success for a frame the core understands well enough to
// route, UnknownProtocol for a well-formed frame of no interest, and
// ProtocolError (with a non-nil error) for a truncated or self-inconsistent
// frame.
func Decode(buf []byte, pkt *Packet) (Result, error) {
	*pkt = Packet{}

	off, err := decodeEthernet(buf, &pkt.Eth)
	if err != nil {
		return ProtocolError, &DecodeError{Layer: "ethernet", Err: err}
	}

	etherType := pkt.Eth.EtherType
	if etherType == EtherTypeMPLSUnicast {
		n, consumed, err := decodeMPLS(buf[off:], &pkt.MPLSLabels)
		if err != nil {
			return ProtocolError, &DecodeError{Layer: "mpls", Err: err}
		}
		pkt.MPLSCount = n
		off += consumed
		if off >= len(buf) {
			return ProtocolError, &DecodeError{Layer: "mpls", Err: errShortFrame}
		}
		// RFC 4928: the first nibble after the label stack distinguishes
		// IPv4 (4) from IPv6 (6).
		switch buf[off] >> 4 {
		case 4:
			etherType = EtherTypeIPv4
		case 6:
			etherType = EtherTypeIPv6
		default:
			return ProtocolError, &DecodeError{Layer: "mpls", Err: errBadVersion}
		}
	}

	switch etherType {
	case EtherTypeARP:
		if err := decodeARP(buf[off:], &pkt.ARP); err != nil {
			return ProtocolError, &DecodeError{Layer: "arp", Err: err}
		}
		pkt.Network = NetworkARP
		return Success, nil

	case EtherTypeIPv4:
		n, err := decodeIPv4(buf[off:], &pkt.IPv4)
		if err != nil {
			return ProtocolError, &DecodeError{Layer: "ipv4", Err: err}
		}
		pkt.Network = NetworkIPv4
		off += n
		return decodeIPv4Transport(buf, off, pkt)

	case EtherTypeIPv6:
		n, err := decodeIPv6(buf[off:], &pkt.IPv6)
		if err != nil {
			return ProtocolError, &DecodeError{Layer: "ipv6", Err: err}
		}
		pkt.Network = NetworkIPv6
		off += n
		return decodeIPv6Transport(buf, off, pkt)

	case EtherTypePPPoEDisc:
		pkt.Payload = PayloadPPPoEDiscovery
		pkt.RawPayload = buf[off:]
		return Success, nil

	case EtherTypePPPoESess:
		pkt.Payload = PayloadPPPoESession
		pkt.RawPayload = buf[off:]
		return Success, nil

	case EtherTypeISIS:
		pkt.Payload = PayloadISIS
		pkt.RawPayload = buf[off:]
		return Success, nil

	default:
		pkt.Payload = PayloadUnknown
		pkt.RawPayload = buf[off:]
		return UnknownProtocol, nil
	}
}

func decodeIPv4Transport(buf []byte, off int, pkt *Packet) (Result, error) {
	payload := buf[off : off+pkt.IPv4.PayloadLen]
	switch pkt.IPv4.Protocol {
	case ProtoICMPv4:
		pkt.Transport = TransportICMP
		return decodeICMPv4(payload, pkt)
	case ProtoUDP:
		pkt.Transport = TransportUDP
		return decodeUDPPayload(payload, pkt)
	case ProtoTCP:
		pkt.Transport = TransportTCP
		pkt.RawPayload = payload
		return Success, nil
	case ProtoIGMP:
		pkt.RawPayload = payload
		return Success, nil
	case ProtoOSPF:
		pkt.Payload = PayloadOSPF
		pkt.RawPayload = payload
		return Success, nil
	default:
		pkt.Payload = PayloadUnknown
		pkt.RawPayload = payload
		return UnknownProtocol, nil
	}
}

func decodeIPv6Transport(buf []byte, off int, pkt *Packet) (Result, error) {
	payload := buf[off : off+pkt.IPv6.PayloadLen]
	switch pkt.IPv6.NextHeader {
	case ProtoICMPv6:
		pkt.Transport = TransportICMPv6
		return decodeICMPv6(payload, pkt)
	case ProtoUDP:
		pkt.Transport = TransportUDP
		return decodeUDPPayload(payload, pkt)
	case ProtoTCP:
		pkt.Transport = TransportTCP
		pkt.RawPayload = payload
		return Success, nil
	case ProtoOSPF:
		pkt.Payload = PayloadOSPF
		pkt.RawPayload = payload
		return Success, nil
	default:
		pkt.Payload = PayloadUnknown
		pkt.RawPayload = payload
		return UnknownProtocol, nil
	}
}

func decodeICMPv4(payload []byte, pkt *Packet) (Result, error) {
	if len(payload) < icmpEchoHeaderLen {
		return ProtocolError, &DecodeError{Layer: "icmpv4", Err: errShortFrame}
	}
	t := payload[0]
	if t == ICMPv4EchoRequest || t == ICMPv4EchoReply {
		if _, err := decodeICMPEcho(payload, &pkt.ICMP); err != nil {
			return ProtocolError, &DecodeError{Layer: "icmpv4", Err: err}
		}
		pkt.RawPayload = payload[icmpEchoHeaderLen:]
		return Success, nil
	}
	pkt.Payload = PayloadUnknown
	pkt.RawPayload = payload
	return UnknownProtocol, nil
}

func decodeICMPv6(payload []byte, pkt *Packet) (Result, error) {
	if len(payload) < 4 {
		return ProtocolError, &DecodeError{Layer: "icmpv6", Err: errShortFrame}
	}
	t := payload[0]
	pkt.ICMPv6Type = t
	switch t {
	case ICMPv6EchoRequest, ICMPv6EchoReply:
		if _, err := decodeICMPEcho(payload, &pkt.ICMP); err != nil {
			return ProtocolError, &DecodeError{Layer: "icmpv6", Err: err}
		}
		pkt.RawPayload = payload[icmpEchoHeaderLen:]
	case ICMPv6RouterSolicit, ICMPv6RouterAdvert, ICMPv6NeighborSolicit, ICMPv6NeighborAdvert:
		// Parsed by the interface control layer via mdlayher/ndp, which
		// needs the full ICMPv6 message including its type/code/checksum.
		pkt.RawPayload = payload
	default:
		pkt.RawPayload = payload
	}
	return Success, nil
}

func decodeUDPPayload(payload []byte, pkt *Packet) (Result, error) {
	if _, err := decodeUDP(payload, &pkt.UDP); err != nil {
		return ProtocolError, &DecodeError{Layer: "udp", Err: err}
	}
	body := payload[udpHeaderLen : udpHeaderLen+pkt.UDP.PayloadLen]
	pkt.RawPayload = body

	switch pkt.UDP.DstPort {
	case dhcpClientPort, dhcpServerPort:
		pkt.Payload = PayloadDHCP
		return Success, nil
	case dhcpv6ClientPort, dhcpv6ServerPort:
		pkt.Payload = PayloadDHCPv6
		return Success, nil
	case L2TPv2DataPort:
		pkt.Transport = TransportL2TP
		return decodeL2TPPayload(body, pkt)
	case QMXLIPort:
		pkt.Payload = PayloadLawfulIntercept
		return Success, nil
	}

	if len(body) >= BBLHeaderLen && (body[0] == BBLTypeUnicastSession || body[0] == BBLTypeMulticast) {
		if err := DecodeBBL(body, &pkt.BBL); err != nil {
			return ProtocolError, &DecodeError{Layer: "bbl", Err: err}
		}
		pkt.Payload = PayloadBBL
		return Success, nil
	}

	pkt.Payload = PayloadUnknown
	return UnknownProtocol, nil
}

// decodeL2TPPayload unwraps an L2TPv2 data message looking for an inner
// BBL-bearing IPv4/IPv6 UDP frame, the shape downstream traffic to an
// LNS-terminated PPPoE session takes. An L2TP frame that isn't carrying one
// (a genuine control message landed on the data port, or an unrecognized
// inner payload) is classified Unknown rather than an error: L2TP control
// messages are a named but unimplemented external handler.
func decodeL2TPPayload(body []byte, pkt *Packet) (Result, error) {
	var l2tp L2TPv2Data
	n, err := decodeL2TPv2Data(body, &l2tp)
	if err != nil {
		return ProtocolError, &DecodeError{Layer: "l2tp", Err: err}
	}
	inner := body[n:]
	if len(inner) < 1 {
		pkt.Payload = PayloadUnknown
		return UnknownProtocol, nil
	}

	var innerOff int
	var innerPayload []byte
	switch inner[0] >> 4 {
	case 4:
		var ip IPv4
		n, err := decodeIPv4(inner, &ip)
		if err != nil {
			return ProtocolError, &DecodeError{Layer: "l2tp-inner-ipv4", Err: err}
		}
		if ip.Protocol != ProtoUDP {
			pkt.Payload = PayloadUnknown
			return UnknownProtocol, nil
		}
		innerOff = n
		innerPayload = inner[innerOff : innerOff+ip.PayloadLen]
	case 6:
		var ip IPv6
		n, err := decodeIPv6(inner, &ip)
		if err != nil {
			return ProtocolError, &DecodeError{Layer: "l2tp-inner-ipv6", Err: err}
		}
		if ip.NextHeader != ProtoUDP {
			pkt.Payload = PayloadUnknown
			return UnknownProtocol, nil
		}
		innerOff = n
		innerPayload = inner[innerOff : innerOff+ip.PayloadLen]
	default:
		pkt.Payload = PayloadUnknown
		return UnknownProtocol, nil
	}

	var udp UDP
	if _, err := decodeUDP(innerPayload, &udp); err != nil {
		return ProtocolError, &DecodeError{Layer: "l2tp-inner-udp", Err: err}
	}
	innerBody := innerPayload[udpHeaderLen : udpHeaderLen+udp.PayloadLen]
	if len(innerBody) >= BBLHeaderLen && (innerBody[0] == BBLTypeUnicastSession || innerBody[0] == BBLTypeMulticast) {
		if err := DecodeBBL(innerBody, &pkt.BBL); err != nil {
			return ProtocolError, &DecodeError{Layer: "l2tp-inner-bbl", Err: err}
		}
		pkt.Payload = PayloadBBL
		return Success, nil
	}
	pkt.Payload = PayloadUnknown
	return UnknownProtocol, nil
}
