// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"encoding/binary"
	"fmt"
)

// BBLHeaderLen is the fixed on-wire size of the test payload header before
// any trailing padding.
const BBLHeaderLen = 48

// BBL type field values.
const (
	BBLTypeUnicastSession = uint8(1)
	BBLTypeMulticast      = uint8(2)
)

// BBL sub_type field values.
const (
	BBLSubTypeIPv4   = uint8(1)
	BBLSubTypeIPv6   = uint8(2)
	BBLSubTypeIPv6PD = uint8(3)
)

// BBL direction field values.
const (
	BBLDirectionUp   = uint8(1)
	BBLDirectionDown = uint8(2)
)

// BBLHeader is the 48-byte test payload that identifies and measures a
// flow, laid out little-endian on the wire exactly as specified: any
// implementation must agree byte-for-byte since RX uses it to identify and
// measure flows.
type BBLHeader struct {
	Type          uint8
	SubType       uint8
	Direction     uint8
	TOS           uint8
	SessionID     uint32
	IfIndex       uint32
	OuterVLAN     uint16
	InnerVLAN     uint16
	MCSource      uint32
	MCGroup       uint32
	FlowID        uint64
	FlowSeq       uint64
	TimestampSec  uint32
	TimestampNsec uint32
}

// DecodeBBL parses a BBL header from buf, which must be at least
// BBLHeaderLen bytes (trailing padding, if any, is ignored).
func DecodeBBL(buf []byte, h *BBLHeader) error {
	if len(buf) < BBLHeaderLen {
		return fmt.Errorf("short bbl header: %d bytes", len(buf))
	}
	h.Type = buf[0]
	h.SubType = buf[1]
	h.Direction = buf[2]
	h.TOS = buf[3]
	h.SessionID = binary.LittleEndian.Uint32(buf[4:8])
	h.IfIndex = binary.LittleEndian.Uint32(buf[8:12])
	h.OuterVLAN = binary.LittleEndian.Uint16(buf[12:14])
	h.InnerVLAN = binary.LittleEndian.Uint16(buf[14:16])
	h.MCSource = binary.LittleEndian.Uint32(buf[16:20])
	h.MCGroup = binary.LittleEndian.Uint32(buf[20:24])
	h.FlowID = binary.LittleEndian.Uint64(buf[24:32])
	h.FlowSeq = binary.LittleEndian.Uint64(buf[32:40])
	h.TimestampSec = binary.LittleEndian.Uint32(buf[40:44])
	h.TimestampNsec = binary.LittleEndian.Uint32(buf[44:48])
	return nil
}

// EncodeBBL writes h into buf followed by zero padding up to totalLen
// bytes. totalLen must be at least BBLHeaderLen.
func EncodeBBL(buf []byte, h *BBLHeader, totalLen int) (int, error) {
	if totalLen < BBLHeaderLen {
		return 0, fmt.Errorf("bbl total length %d shorter than header %d", totalLen, BBLHeaderLen)
	}
	if len(buf) < totalLen {
		return 0, fmt.Errorf("buffer too small: need %d have %d", totalLen, len(buf))
	}
	buf[0] = h.Type
	buf[1] = h.SubType
	buf[2] = h.Direction
	buf[3] = h.TOS
	binary.LittleEndian.PutUint32(buf[4:8], h.SessionID)
	binary.LittleEndian.PutUint32(buf[8:12], h.IfIndex)
	binary.LittleEndian.PutUint16(buf[12:14], h.OuterVLAN)
	binary.LittleEndian.PutUint16(buf[14:16], h.InnerVLAN)
	binary.LittleEndian.PutUint32(buf[16:20], h.MCSource)
	binary.LittleEndian.PutUint32(buf[20:24], h.MCGroup)
	binary.LittleEndian.PutUint64(buf[24:32], h.FlowID)
	binary.LittleEndian.PutUint64(buf[32:40], h.FlowSeq)
	binary.LittleEndian.PutUint32(buf[40:44], h.TimestampSec)
	binary.LittleEndian.PutUint32(buf[44:48], h.TimestampNsec)
	for i := BBLHeaderLen; i < totalLen; i++ {
		buf[i] = 0
	}
	return totalLen, nil
}

// PatchBBLTiming rewrites only the timestamp and flow_seq fields of an
// already-encoded BBL header in place, avoiding a full re-encode on every
// paced packet.
func PatchBBLTiming(buf []byte, flowSeq uint64, sec, nsec uint32) error {
	if len(buf) < BBLHeaderLen {
		return fmt.Errorf("short bbl header: %d bytes", len(buf))
	}
	binary.LittleEndian.PutUint64(buf[32:40], flowSeq)
	binary.LittleEndian.PutUint32(buf[40:44], sec)
	binary.LittleEndian.PutUint32(buf[44:48], nsec)
	return nil
}
