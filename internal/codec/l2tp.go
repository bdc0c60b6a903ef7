// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"encoding/binary"
	"fmt"
)

// L2TPv2DataPort is the well-known UDP port for L2TPv2.
const L2TPv2DataPort = uint16(1701)

const l2tpDataHeaderLen = 6

// L2TPv2Data is a minimal L2TPv2 data-message header: no length, sequence,
// or offset fields, matching the unsequenced data frames the emulator sends
// to wrap a downstream BBL test packet for an LNS-terminated PPPoE session.
type L2TPv2Data struct {
	TunnelID  uint16
	SessionID uint16
}

func decodeL2TPv2Data(buf []byte, h *L2TPv2Data) (int, error) {
	if len(buf) < l2tpDataHeaderLen {
		return 0, fmt.Errorf("short l2tp header: %d bytes", len(buf))
	}
	flagsVer := binary.BigEndian.Uint16(buf[0:2])
	if flagsVer&0x000f != 2 {
		return 0, fmt.Errorf("unsupported l2tp version %d", flagsVer&0x000f)
	}
	off := 2
	if flagsVer&0x4000 != 0 { // length bit
		off += 2
	}
	h.TunnelID = binary.BigEndian.Uint16(buf[off:])
	off += 2
	h.SessionID = binary.BigEndian.Uint16(buf[off:])
	off += 2
	if flagsVer&0x0800 != 0 { // sequence bit
		off += 4
	}
	if flagsVer&0x0200 != 0 { // offset bit
		if len(buf) < off+2 {
			return 0, fmt.Errorf("truncated l2tp offset field")
		}
		offSize := int(binary.BigEndian.Uint16(buf[off:]))
		off += 2 + offSize
	}
	return off, nil
}

func encodeL2TPv2Data(buf []byte, h *L2TPv2Data) (int, error) {
	if len(buf) < l2tpDataHeaderLen {
		return 0, fmt.Errorf("buffer too small: need %d have %d", l2tpDataHeaderLen, len(buf))
	}
	binary.BigEndian.PutUint16(buf[0:2], 0x0002) // version 2, no flags
	binary.BigEndian.PutUint16(buf[2:4], h.TunnelID)
	binary.BigEndian.PutUint16(buf[4:6], h.SessionID)
	return l2tpDataHeaderLen, nil
}

// EncodeL2TPWrapped builds the full outer/inner frame an L2TPv2-tunneled
// downstream BBL stream needs: outer Ethernet/IPv4/UDP(port 1701)/L2TPv2Data
// header, wrapping an inner IPv4-or-IPv6/UDP/BBL frame with no Ethernet
// header of its own (the LNS delivers it inside the tunnel).
func EncodeL2TPWrapped(buf []byte, outerEth Ethernet, outerIPv4 IPv4, l2tp L2TPv2Data, innerNetwork NetworkProto, innerIPv4 IPv4, innerIPv6 IPv6, innerUDP UDP, bbl *BBLHeader, bblTotalLen int) (int, error) {
	outerEth.EtherType = EtherTypeIPv4
	off, err := encodeEthernet(buf, &outerEth)
	if err != nil {
		return 0, &EncodeError{Layer: "ethernet", Err: err}
	}

	innerHeaderLen := udpHeaderLen
	switch innerNetwork {
	case NetworkIPv4:
		innerHeaderLen += ipv4MinLen
	case NetworkIPv6:
		innerHeaderLen += ipv6HeaderLen
	default:
		return 0, &EncodeError{Layer: "l2tp", Err: fmt.Errorf("unsupported inner network proto %d", innerNetwork)}
	}
	innerTotalLen := innerHeaderLen + bblTotalLen
	l2tpTotalLen := l2tpDataHeaderLen + innerTotalLen

	outerIPv4.Protocol = ProtoUDP
	n, err := encodeIPv4(buf[off:], &outerIPv4, udpHeaderLen+l2tpTotalLen)
	if err != nil {
		return 0, &EncodeError{Layer: "ipv4", Err: err}
	}
	off += n

	outerUDP := UDP{SrcPort: L2TPv2DataPort, DstPort: L2TPv2DataPort}
	udpBuf := buf[off : off+udpHeaderLen+l2tpTotalLen]
	l2tpBuf := udpBuf[udpHeaderLen:]
	if _, err := encodeL2TPv2Data(l2tpBuf, &l2tp); err != nil {
		return 0, &EncodeError{Layer: "l2tp", Err: err}
	}
	innerBuf := l2tpBuf[l2tpDataHeaderLen:]

	var innerOff int
	switch innerNetwork {
	case NetworkIPv4:
		innerIPv4.Protocol = ProtoUDP
		n, err := encodeIPv4(innerBuf, &innerIPv4, udpHeaderLen+bblTotalLen)
		if err != nil {
			return 0, &EncodeError{Layer: "inner-ipv4", Err: err}
		}
		innerOff = n
	case NetworkIPv6:
		innerIPv6.NextHeader = ProtoUDP
		n, err := encodeIPv6(innerBuf, &innerIPv6, udpHeaderLen+bblTotalLen)
		if err != nil {
			return 0, &EncodeError{Layer: "inner-ipv6", Err: err}
		}
		innerOff = n
	}
	innerUDPBuf := innerBuf[innerOff : innerOff+udpHeaderLen+bblTotalLen]
	if _, err := EncodeBBL(innerUDPBuf[udpHeaderLen:], bbl, bblTotalLen); err != nil {
		return 0, &EncodeError{Layer: "bbl", Err: err}
	}
	if _, err := encodeUDP(innerUDPBuf, &innerUDP, bblTotalLen, 0); err != nil {
		return 0, &EncodeError{Layer: "inner-udp", Err: err}
	}

	if _, err := encodeUDP(udpBuf, &outerUDP, l2tpTotalLen, 0); err != nil {
		return 0, &EncodeError{Layer: "udp", Err: err}
	}

	return off + udpHeaderLen + l2tpTotalLen, nil
}
