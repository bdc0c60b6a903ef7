// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/gopacket/gopacket/layers"
)

const (
	ProtoICMPv4 = uint8(layers.IPProtocolICMPv4)
	ProtoTCP    = uint8(layers.IPProtocolTCP)
	ProtoUDP    = uint8(layers.IPProtocolUDP)
	ProtoICMPv6 = uint8(layers.IPProtocolICMPv6)
	ProtoIGMP   = uint8(layers.IPProtocolIGMP)
	ProtoOSPF   = uint8(layers.IPProtocolOSPF)
)

const ipv4MinLen = 20

// IPv4 is a decoded (or to-be-encoded) IPv4 header without options.
type IPv4 struct {
	TOS      uint8
	ID       uint16
	DF       bool
	TTL      uint8
	Protocol uint8
	SrcIP    net.IP
	DstIP    net.IP
	// PayloadLen is the number of bytes following the header, filled in by
	// decode and consulted by encode.
	PayloadLen int
}

func decodeIPv4(buf []byte, h *IPv4) (int, error) {
	if len(buf) < ipv4MinLen {
		return 0, fmt.Errorf("short ipv4 header: %d bytes", len(buf))
	}
	verIHL := buf[0]
	if verIHL>>4 != 4 {
		return 0, fmt.Errorf("not ipv4: version %d", verIHL>>4)
	}
	ihl := int(verIHL&0x0f) * 4
	if ihl < ipv4MinLen || len(buf) < ihl {
		return 0, fmt.Errorf("invalid ipv4 ihl: %d", ihl)
	}
	totalLen := int(binary.BigEndian.Uint16(buf[2:4]))
	if totalLen > len(buf) {
		return 0, fmt.Errorf("ipv4 total length %d exceeds frame", totalLen)
	}
	h.TOS = buf[1]
	flags := buf[6] >> 5
	h.DF = flags&0x2 != 0
	h.TTL = buf[8]
	h.Protocol = buf[9]
	h.SrcIP = net.IP(buf[12:16])
	h.DstIP = net.IP(buf[16:20])
	h.PayloadLen = totalLen - ihl
	return ihl, nil
}

func encodeIPv4(buf []byte, h *IPv4, payloadLen int) (int, error) {
	if len(buf) < ipv4MinLen {
		return 0, fmt.Errorf("buffer too small: need %d have %d", ipv4MinLen, len(buf))
	}
	totalLen := ipv4MinLen + payloadLen
	buf[0] = 0x45 // version 4, IHL 5
	buf[1] = h.TOS
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(buf[4:6], h.ID)
	flags := uint16(0)
	if h.DF {
		flags |= 0x4000
	}
	binary.BigEndian.PutUint16(buf[6:8], flags)
	ttl := h.TTL
	if ttl == 0 {
		ttl = 64
	}
	buf[8] = ttl
	buf[9] = h.Protocol
	binary.BigEndian.PutUint16(buf[10:12], 0) // checksum placeholder
	copy(buf[12:16], h.SrcIP.To4())
	copy(buf[16:20], h.DstIP.To4())
	binary.BigEndian.PutUint16(buf[10:12], checksum16(buf[:ipv4MinLen]))
	return ipv4MinLen, nil
}

// checksum16 computes the RFC 1071 one's-complement checksum.
func checksum16(b []byte) uint16 {
	var sum uint32
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// pseudoHeaderSumV4 seeds a checksum accumulator with the IPv4 UDP/TCP
// pseudo header, returning the running sum (not yet folded/complemented).
func pseudoHeaderSumV4(src, dst net.IP, protocol uint8, length int) uint32 {
	src4, dst4 := src.To4(), dst.To4()
	var sum uint32
	sum += uint32(src4[0])<<8 | uint32(src4[1])
	sum += uint32(src4[2])<<8 | uint32(src4[3])
	sum += uint32(dst4[0])<<8 | uint32(dst4[1])
	sum += uint32(dst4[2])<<8 | uint32(dst4[3])
	sum += uint32(protocol)
	sum += uint32(length)
	return sum
}

func pseudoHeaderSumV6(src, dst net.IP, nextHeader uint8, length int) uint32 {
	var sum uint32
	src16, dst16 := src.To16(), dst.To16()
	for i := 0; i < 16; i += 2 {
		sum += uint32(src16[i])<<8 | uint32(src16[i+1])
		sum += uint32(dst16[i])<<8 | uint32(dst16[i+1])
	}
	sum += uint32(nextHeader)
	sum += uint32(length)
	return sum
}

func foldChecksum(seed uint32, b []byte) uint16 {
	sum := seed
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
