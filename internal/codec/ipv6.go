// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"encoding/binary"
	"fmt"
	"net"
)

const ipv6HeaderLen = 40

// IPv6 is a decoded (or to-be-encoded) IPv6 header. No extension headers
// are supported; NextHeader names the upper-layer protocol directly.
type IPv6 struct {
	TrafficClass uint8
	FlowLabel    uint32
	NextHeader   uint8
	HopLimit     uint8
	SrcIP        net.IP
	DstIP        net.IP
	PayloadLen   int
}

func decodeIPv6(buf []byte, h *IPv6) (int, error) {
	if len(buf) < ipv6HeaderLen {
		return 0, fmt.Errorf("short ipv6 header: %d bytes", len(buf))
	}
	verTCFL := binary.BigEndian.Uint32(buf[0:4])
	if verTCFL>>28 != 6 {
		return 0, fmt.Errorf("not ipv6: version %d", verTCFL>>28)
	}
	h.TrafficClass = uint8(verTCFL >> 20)
	h.FlowLabel = verTCFL & 0xfffff
	payloadLen := int(binary.BigEndian.Uint16(buf[4:6]))
	if ipv6HeaderLen+payloadLen > len(buf) {
		return 0, fmt.Errorf("ipv6 payload length %d exceeds frame", payloadLen)
	}
	h.NextHeader = buf[6]
	h.HopLimit = buf[7]
	h.SrcIP = net.IP(buf[8:24])
	h.DstIP = net.IP(buf[24:40])
	h.PayloadLen = payloadLen
	return ipv6HeaderLen, nil
}

func encodeIPv6(buf []byte, h *IPv6, payloadLen int) (int, error) {
	if len(buf) < ipv6HeaderLen {
		return 0, fmt.Errorf("buffer too small: need %d have %d", ipv6HeaderLen, len(buf))
	}
	verTCFL := uint32(6)<<28 | uint32(h.TrafficClass)<<20 | (h.FlowLabel & 0xfffff)
	binary.BigEndian.PutUint32(buf[0:4], verTCFL)
	binary.BigEndian.PutUint16(buf[4:6], uint16(payloadLen))
	buf[6] = h.NextHeader
	hop := h.HopLimit
	if hop == 0 {
		hop = 64
	}
	buf[7] = hop
	copy(buf[8:24], h.SrcIP.To16())
	copy(buf[24:40], h.DstIP.To16())
	return ipv6HeaderLen, nil
}
