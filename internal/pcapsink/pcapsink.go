// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pcapsink mirrors every frame an interface sends or receives to a
// pcap capture file, for after-the-fact inspection in Wireshark of a run
// that produced an unexpected result. It is purely additive: nothing in
// internal/ringio or internal/orchestrate depends on a Writer existing.
package pcapsink

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"

	"grimm.is/gwemu/internal/errors"
)

// snapLen bounds a captured frame's stored length to the largest frame
// internal/codec ever builds or decodes.
const snapLen = 9216

// Writer appends frames to a pcap file, safe for concurrent callers: one
// RX worker and one TX worker per interface may both write to the same
// Writer.
type Writer struct {
	mu  sync.Mutex
	w   *pcapgo.Writer
	out io.Closer
}

// Open creates (or truncates) a pcap file at path and writes its header.
func Open(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindIO, "create pcap file")
	}

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.KindIO, "write pcap header")
	}

	return &Writer{w: w, out: f}, nil
}

// WriteFrame appends one captured frame. ingress is recorded only insofar
// as it distinguishes nothing in the pcap format itself (pcap has no
// direction field); it exists so callers on both the RX and TX path share
// one FrameCapture signature.
func (c *Writer) WriteFrame(data []byte, ts time.Time, ingress bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if ci.CaptureLength > snapLen {
		ci.CaptureLength = snapLen
		data = data[:snapLen]
	}
	if err := c.w.WritePacket(ci, data); err != nil {
		return errors.Wrap(err, errors.KindIO, "write pcap packet")
	}
	return nil
}

// Close flushes and closes the underlying file.
func (c *Writer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Close()
}
