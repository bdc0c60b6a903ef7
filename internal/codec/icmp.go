// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"encoding/binary"
	"fmt"
)

const icmpEchoHeaderLen = 8

const (
	ICMPv4EchoRequest = uint8(8)
	ICMPv4EchoReply   = uint8(0)

	ICMPv6EchoRequest       = uint8(128)
	ICMPv6EchoReply         = uint8(129)
	ICMPv6RouterSolicit     = uint8(133)
	ICMPv6RouterAdvert      = uint8(134)
	ICMPv6NeighborSolicit   = uint8(135)
	ICMPv6NeighborAdvert    = uint8(136)
)

// ICMPEcho is a decoded ICMP(v4/v6) echo request/reply. Identifier/Sequence
// round-trip unchanged through a reflection per testable property 7.
type ICMPEcho struct {
	Type       uint8
	Code       uint8
	Identifier uint16
	Sequence   uint16
	PayloadLen int
}

func decodeICMPEcho(buf []byte, h *ICMPEcho) (int, error) {
	if len(buf) < icmpEchoHeaderLen {
		return 0, fmt.Errorf("short icmp echo header: %d bytes", len(buf))
	}
	h.Type = buf[0]
	h.Code = buf[1]
	h.Identifier = binary.BigEndian.Uint16(buf[4:6])
	h.Sequence = binary.BigEndian.Uint16(buf[6:8])
	h.PayloadLen = len(buf) - icmpEchoHeaderLen
	return icmpEchoHeaderLen, nil
}

// encodeICMPEcho writes the echo header and computes the checksum over the
// header plus payloadLen bytes already placed in buf after the header.
// pseudoSum seeds the checksum for ICMPv6 (which, unlike ICMPv4, checksums
// over an IPv6 pseudo header); pass 0 for ICMPv4.
func encodeICMPEcho(buf []byte, h *ICMPEcho, payloadLen int, pseudoSum uint32) (int, error) {
	if len(buf) < icmpEchoHeaderLen+payloadLen {
		return 0, fmt.Errorf("buffer too small: need %d have %d", icmpEchoHeaderLen+payloadLen, len(buf))
	}
	buf[0] = h.Type
	buf[1] = h.Code
	binary.BigEndian.PutUint16(buf[2:4], 0)
	binary.BigEndian.PutUint16(buf[4:6], h.Identifier)
	binary.BigEndian.PutUint16(buf[6:8], h.Sequence)
	csum := foldChecksum(pseudoSum, buf[:icmpEchoHeaderLen+payloadLen])
	binary.BigEndian.PutUint16(buf[2:4], csum)
	return icmpEchoHeaderLen, nil
}
