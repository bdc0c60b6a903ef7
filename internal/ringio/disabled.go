// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ringio

import (
	"errors"
	"time"
)

// loopbackQueue is a tiny unbounded FIFO of frames, good enough for tests
// and in-memory scenarios where real backpressure never matters.
type loopbackQueue struct {
	frames [][]byte
}

func (q *loopbackQueue) push(buf []byte) {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	q.frames = append(q.frames, cp)
}

func (q *loopbackQueue) pop() ([]byte, bool) {
	if len(q.frames) == 0 {
		return nil, false
	}
	buf := q.frames[0]
	q.frames = q.frames[1:]
	return buf, true
}

// DisabledHandle backs a NetworkInterface with an in-memory frame queue
// instead of a kernel socket: the io_mode=disabled case spec's NetworkInterface
// documents, and the backbone of the emulator's own loopback-wiring test
// scenarios.
type DisabledHandle struct {
	direction Direction
	queue     *loopbackQueue
	peer      *DisabledHandle
	stats     Stats
	closed    bool
}

// NewDisabledPair builds two DisabledHandles wired to each other: frames
// Sent on one are Recv'd from the other, with no kernel involved at all.
func NewDisabledPair() (a, b *DisabledHandle) {
	a = &DisabledHandle{direction: DirectionEgress, queue: &loopbackQueue{}}
	b = &DisabledHandle{direction: DirectionIngress, queue: &loopbackQueue{}}
	a.peer, b.peer = b, a
	return a, b
}

func (h *DisabledHandle) Mode() Mode           { return ModeDisabled }
func (h *DisabledHandle) Direction() Direction { return h.direction }

func (h *DisabledHandle) Recv(scratch []byte) (Frame, bool, error) {
	if h.closed {
		return Frame{}, false, errors.New("ringio: handle closed")
	}
	buf, ok := h.queue.pop()
	if !ok {
		return Frame{}, false, nil
	}
	n := copy(scratch, buf)
	h.stats.Packets++
	h.stats.Bytes += uint64(n)
	return Frame{Data: scratch[:n], Timestamp: time.Now()}, true, nil
}

func (h *DisabledHandle) Send(buf []byte) (bool, error) {
	if h.closed {
		return false, errors.New("ringio: handle closed")
	}
	if h.peer == nil {
		h.stats.NoBuffer++
		return false, nil
	}
	h.peer.queue.push(buf)
	h.stats.Packets++
	h.stats.Bytes += uint64(len(buf))
	return true, nil
}

func (h *DisabledHandle) Flush() error { return nil }
func (h *DisabledHandle) Stats() Stats { return h.stats }

func (h *DisabledHandle) Close() error {
	h.closed = true
	return nil
}
