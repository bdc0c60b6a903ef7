// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ringio

import (
	"net"
	"time"

	"github.com/mdlayher/packet"
)

// RawHandle backs a NetworkInterface with a plain AF_PACKET socket: one
// copy per frame in each direction, no shared kernel ring. This is the
// io_mode=raw fallback for hosts where the mmap ring path in ring.go isn't
// available (containers without CAP_NET_RAW's mmap privileges, some
// virtualized NICs).
//
// github.com/mdlayher/packet has no precedent elsewhere in the example
// pack; it is used here for its public Listen/ReadFrom/WriteTo API, in the
// same spirit as internal/ifctrl's use of github.com/mdlayher/ndp.
type RawHandle struct {
	direction Direction
	conn      *packet.Conn
	ifi       *net.Interface
	stats     Stats
}

const ethPAll = 0x0003 // ETH_P_ALL, network byte order applied by packet.Listen

// NewRawHandle opens a raw AF_PACKET socket bound to ifi, receiving every
// ethertype, in the given direction.
func NewRawHandle(ifi *net.Interface, dir Direction) (*RawHandle, error) {
	conn, err := packet.Listen(ifi, packet.Raw, ethPAll, nil)
	if err != nil {
		return nil, err
	}
	return &RawHandle{direction: dir, conn: conn, ifi: ifi}, nil
}

func (h *RawHandle) Mode() Mode           { return ModeRaw }
func (h *RawHandle) Direction() Direction { return h.direction }

func (h *RawHandle) Recv(scratch []byte) (Frame, bool, error) {
	n, _, err := h.conn.ReadFrom(scratch)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Frame{}, false, nil
		}
		h.stats.IOErrors++
		return Frame{}, false, err
	}
	h.stats.Packets++
	h.stats.Bytes += uint64(n)
	return Frame{Data: scratch[:n], Timestamp: time.Now()}, true, nil
}

func (h *RawHandle) Send(buf []byte) (bool, error) {
	if len(buf) < 6 {
		return false, nil
	}
	addr := &packet.Addr{HardwareAddr: net.HardwareAddr(buf[0:6])}
	_, err := h.conn.WriteTo(buf, addr)
	if err != nil {
		h.stats.IOErrors++
		return false, err
	}
	h.stats.Packets++
	h.stats.Bytes += uint64(len(buf))
	return true, nil
}

func (h *RawHandle) Flush() error { return nil }
func (h *RawHandle) Stats() Stats { return h.stats }

func (h *RawHandle) Close() error { return h.conn.Close() }
