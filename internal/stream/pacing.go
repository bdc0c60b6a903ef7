// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package stream

import (
	"time"

	"grimm.is/gwemu/internal/codec"
)

// SendIter is the send-window pacing algorithm: a drift-correcting rate
// pacer that makes up lost ticks within the current window but never emits
// more than maxPPI packets in a single call. now is the timestamp the
// caller's timer tick captured (shared across every stream invoked this
// tick, per the timer wheel's contract).
//
// The start-delay wait window intentionally wastes the tick on which its
// deadline is captured: even if start_delay were already satisfied by the
// time this is first called, that first call only arms waitUntil and
// returns 0. This one-tick-late behavior is preserved rather than
// special-cased away.
func (s *Stream) SendIter(now time.Time, maxPPI int) int {
	if s.stopped {
		s.windowN = 0
		return 0
	}
	if s.StartDelay > 0 && s.sentTotal == 0 {
		if s.waitUntil.IsZero() {
			s.waitUntil = now.Add(s.StartDelay)
			return 0
		}
		if now.Before(s.waitUntil) {
			return 0
		}
	}

	if s.windowN == 0 {
		s.windowT0 = now
		return s.emit(now, 1)
	}

	elapsed := now.Sub(s.windowT0).Seconds()
	expected := s.PPS * elapsed
	toSend := int(expected) - int(s.windowN)
	if toSend > maxPPI {
		toSend = maxPPI
	}
	if s.MaxPackets > 0 {
		if remaining := int(s.MaxPackets - s.sentTotal); toSend > remaining {
			toSend = remaining
		}
	}
	if toSend <= 0 {
		return 0
	}
	return s.emit(now, toSend)
}

// emit patches and transmits up to n packets, stopping early on Sink
// back-pressure. It returns the number actually sent.
func (s *Stream) emit(now time.Time, n int) int {
	if s.Sink == nil || s.txBuf == nil {
		return 0
	}
	sec := uint32(now.Unix())
	nsec := uint32(now.Nanosecond())
	sent := 0
	for i := 0; i < n; i++ {
		if err := codec.PatchBBLTiming(s.txBuf[s.bblOffset:s.txLen], s.flowSeq, sec, nsec); err != nil {
			break
		}
		if !s.Sink.Send(s.txBuf[:s.txLen]) {
			break
		}
		s.flowSeq++
		sent++
	}
	s.windowN += uint64(sent)
	s.sentTotal += uint64(sent)
	s.TX.Packets += uint64(sent)
	s.TX.Bytes += uint64(sent * s.txLen)
	return sent
}
