// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"encoding/binary"
	"fmt"
)

const mplsLabelLen = 4
const maxMPLSLabels = 2

// MPLSLabel is one entry of an MPLS label stack.
type MPLSLabel struct {
	Label uint32
	Exp   uint8
	TTL   uint8
	// Bottom is true if this is the bottom-of-stack label (its S bit was
	// set on the wire).
	Bottom bool
}

// decodeMPLS parses up to maxMPLSLabels labels starting at buf[0], stopping
// at the bottom-of-stack label. Returns the number of labels parsed and the
// offset of the first byte after the stack.
func decodeMPLS(buf []byte, labels *[maxMPLSLabels]MPLSLabel) (int, int, error) {
	off := 0
	count := 0
	for count < maxMPLSLabels {
		if len(buf) < off+mplsLabelLen {
			return count, off, fmt.Errorf("truncated mpls label at offset %d", off)
		}
		word := binary.BigEndian.Uint32(buf[off:])
		lbl := MPLSLabel{
			Label:  word >> 12,
			Exp:    uint8((word >> 9) & 0x7),
			Bottom: word&0x100 != 0,
			TTL:    uint8(word),
		}
		labels[count] = lbl
		count++
		off += mplsLabelLen
		if lbl.Bottom {
			break
		}
	}
	return count, off, nil
}

func encodeMPLS(buf []byte, labels []MPLSLabel) (int, error) {
	need := len(labels) * mplsLabelLen
	if len(buf) < need {
		return 0, fmt.Errorf("buffer too small: need %d have %d", need, len(buf))
	}
	for i, l := range labels {
		word := (l.Label << 12) | (uint32(l.Exp&0x7) << 9) | uint32(l.TTL)
		if i == len(labels)-1 {
			word |= 0x100 // bottom of stack
		}
		binary.BigEndian.PutUint32(buf[i*mplsLabelLen:], word)
	}
	return need, nil
}
