// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"encoding/binary"
	"fmt"
)

const udpHeaderLen = 8

// UDP is a decoded (or to-be-encoded) UDP header.
type UDP struct {
	SrcPort    uint16
	DstPort    uint16
	PayloadLen int
}

func decodeUDP(buf []byte, h *UDP) (int, error) {
	if len(buf) < udpHeaderLen {
		return 0, fmt.Errorf("short udp header: %d bytes", len(buf))
	}
	h.SrcPort = binary.BigEndian.Uint16(buf[0:2])
	h.DstPort = binary.BigEndian.Uint16(buf[2:4])
	length := int(binary.BigEndian.Uint16(buf[4:6]))
	if length < udpHeaderLen || length > len(buf) {
		return 0, fmt.Errorf("invalid udp length %d", length)
	}
	h.PayloadLen = length - udpHeaderLen
	return udpHeaderLen, nil
}

// encodeUDP writes the UDP header for a payload of payloadLen bytes located
// immediately after the header in buf, and checksums over pseudoSum (the
// IP-version-specific pseudo header accumulator) plus the header+payload.
// Passing pseudoSum == 0 disables checksum computation (checksum field left
// zero, legal for IPv4 UDP).
func encodeUDP(buf []byte, h *UDP, payloadLen int, pseudoSum uint32) (int, error) {
	if len(buf) < udpHeaderLen+payloadLen {
		return 0, fmt.Errorf("buffer too small: need %d have %d", udpHeaderLen+payloadLen, len(buf))
	}
	binary.BigEndian.PutUint16(buf[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], h.DstPort)
	binary.BigEndian.PutUint16(buf[4:6], uint16(udpHeaderLen+payloadLen))
	binary.BigEndian.PutUint16(buf[6:8], 0)
	if pseudoSum != 0 {
		csum := foldChecksum(pseudoSum, buf[:udpHeaderLen+payloadLen])
		if csum == 0 {
			csum = 0xffff
		}
		binary.BigEndian.PutUint16(buf[6:8], csum)
	}
	return udpHeaderLen, nil
}
