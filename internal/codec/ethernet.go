// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/gopacket/gopacket/layers"
)

// EtherType constants reused as named values from the gopacket layers
// package rather than gopacket's own (allocating) decode pipeline.
const (
	EtherTypeIPv4       = uint16(layers.EthernetTypeIPv4)
	EtherTypeIPv6       = uint16(layers.EthernetTypeIPv6)
	EtherTypeARP        = uint16(layers.EthernetTypeARP)
	EtherTypeMPLSUnicast = uint16(layers.EthernetTypeMPLSUnicast)
	EtherTypeVLAN       = uint16(layers.EthernetTypeDot1Q)
	EtherTypeQinQ       = uint16(0x88a8)
	EtherTypePPPoEDisc  = uint16(layers.EthernetTypePPPoEDiscovery)
	EtherTypePPPoESess  = uint16(layers.EthernetTypePPPoESession)
	EtherTypeISIS       = uint16(0xfefe)
)

const ethHeaderLen = 14
const vlanTagLen = 4
const maxVLANTags = 3

// VLANTag is one 802.1Q/QinQ tag.
type VLANTag struct {
	TPID uint16
	TCI  uint16 // PCP(3) | DEI(1) | VID(12)
}

// VID returns the 12-bit VLAN id.
func (t VLANTag) VID() uint16 { return t.TCI & 0x0fff }

// PCP returns the 3-bit priority code point.
func (t VLANTag) PCP() uint8 { return uint8(t.TCI >> 13) }

// Ethernet is a decoded (or to-be-encoded) Ethernet header plus its VLAN
// stack. EtherType is the first ethertype following the VLAN stack (i.e.
// the type of the next layer).
type Ethernet struct {
	DstMAC    net.HardwareAddr
	SrcMAC    net.HardwareAddr
	VLANs     [maxVLANTags]VLANTag
	VLANCount int
	EtherType uint16
}

// decodeEthernet parses the fixed 14-byte header plus any VLAN tags,
// returning the offset of the first byte after the VLAN stack.
func decodeEthernet(buf []byte, eth *Ethernet) (int, error) {
	if len(buf) < ethHeaderLen {
		return 0, fmt.Errorf("short frame: %d bytes", len(buf))
	}
	eth.DstMAC = net.HardwareAddr(buf[0:6])
	eth.SrcMAC = net.HardwareAddr(buf[6:12])

	off := 12
	eth.VLANCount = 0
	etherType := binary.BigEndian.Uint16(buf[off : off+2])
	off += 2

	for (etherType == EtherTypeVLAN || etherType == EtherTypeQinQ) && eth.VLANCount < maxVLANTags {
		if len(buf) < off+vlanTagLen {
			return 0, fmt.Errorf("truncated vlan tag at offset %d", off)
		}
		eth.VLANs[eth.VLANCount] = VLANTag{
			TPID: etherType,
			TCI:  binary.BigEndian.Uint16(buf[off : off+2]),
		}
		eth.VLANCount++
		off += 2
		etherType = binary.BigEndian.Uint16(buf[off : off+2])
		off += 2
	}

	eth.EtherType = etherType
	return off, nil
}

// encodedLen returns the byte length of the Ethernet header plus its VLAN
// stack.
func (eth *Ethernet) encodedLen() int {
	return ethHeaderLen + eth.VLANCount*vlanTagLen
}

func encodeEthernet(buf []byte, eth *Ethernet) (int, error) {
	need := eth.encodedLen()
	if len(buf) < need {
		return 0, fmt.Errorf("buffer too small: need %d have %d", need, len(buf))
	}
	copy(buf[0:6], eth.DstMAC)
	copy(buf[6:12], eth.SrcMAC)

	off := 12
	for i := 0; i < eth.VLANCount; i++ {
		binary.BigEndian.PutUint16(buf[off:], eth.VLANs[i].TPID)
		binary.BigEndian.PutUint16(buf[off+2:], eth.VLANs[i].TCI)
		off += vlanTagLen
	}
	binary.BigEndian.PutUint16(buf[off:], eth.EtherType)
	off += 2
	return off, nil
}
