// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rxmatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/stream"
)

func newTestStream(flowID uint64, kind stream.Kind, dir stream.Direction) *stream.Stream {
	return stream.New(flowID, "s", kind, dir)
}

func bblPacket(flowID, flowSeq uint64, subType, direction uint8) *codec.Packet {
	return &codec.Packet{
		BBL: codec.BBLHeader{
			Type: codec.BBLTypeUnicastSession, SubType: subType, Direction: direction,
			FlowID: flowID, FlowSeq: flowSeq,
		},
	}
}

func TestMatchUnknownFlowReturnsNil(t *testing.T) {
	table := New()
	pkt := bblPacket(999, 1, codec.BBLSubTypeIPv4, codec.BBLDirectionUp)
	require.Nil(t, table.Match(pkt, time.Now()))
}

func TestFirstPacketVerifiesStream(t *testing.T) {
	table := New()
	s := newTestStream(1, stream.KindIPv4, stream.Up)
	table.Register(s)

	pkt := bblPacket(1, 1, codec.BBLSubTypeIPv4, codec.BBLDirectionUp)
	matched := table.Match(pkt, time.Now())
	require.Same(t, s, matched)
	require.True(t, s.RX.Verified)
	require.Equal(t, uint64(1), s.RX.LastSeq)
	require.True(t, table.AllVerified())
}

func TestSubTypeMismatchCountsWrongSession(t *testing.T) {
	table := New()
	s := newTestStream(1, stream.KindIPv6, stream.Up)
	table.Register(s)

	pkt := bblPacket(1, 1, codec.BBLSubTypeIPv4, codec.BBLDirectionUp)
	table.Match(pkt, time.Now())
	require.False(t, s.RX.Verified)
	require.Equal(t, uint64(1), s.RX.WrongSession)
}

func TestLossComputedOnSequenceGap(t *testing.T) {
	table := New()
	s := newTestStream(1, stream.KindIPv4, stream.Up)
	table.Register(s)

	table.Match(bblPacket(1, 1, codec.BBLSubTypeIPv4, codec.BBLDirectionUp), time.Now())
	table.Match(bblPacket(1, 5, codec.BBLSubTypeIPv4, codec.BBLDirectionUp), time.Now())

	require.Equal(t, uint64(3), s.RX.Loss) // seqs 2,3,4 missing
	require.Equal(t, uint64(5), s.RX.LastSeq)
}

func TestDelayMinMaxTracksWithoutSentinel(t *testing.T) {
	table := New()
	s := newTestStream(1, stream.KindIPv4, stream.Up)
	table.Register(s)

	base := time.Unix(1000, 0)
	p1 := bblPacket(1, 1, codec.BBLSubTypeIPv4, codec.BBLDirectionUp)
	p1.BBL.TimestampSec = 1000
	table.Match(p1, base.Add(10*time.Millisecond))

	p2 := bblPacket(1, 2, codec.BBLSubTypeIPv4, codec.BBLDirectionUp)
	p2.BBL.TimestampSec = 1000
	table.Match(p2, base.Add(50*time.Millisecond))

	require.Equal(t, int64(10*time.Millisecond), s.RX.DelayMinNsec)
	require.Equal(t, int64(50*time.Millisecond), s.RX.DelayMaxNsec)
}

func TestRXExpectedMPLSLabelGatesVerification(t *testing.T) {
	table := New()
	s := newTestStream(1, stream.KindIPv4, stream.Up)
	want := uint32(100)
	s.RXExpectedMPLS[0] = &want
	table.Register(s)

	wrongLabel := bblPacket(1, 1, codec.BBLSubTypeIPv4, codec.BBLDirectionUp)
	wrongLabel.MPLSCount = 1
	wrongLabel.MPLSLabels[0] = codec.MPLSLabel{Label: 200}
	table.Match(wrongLabel, time.Now())
	require.False(t, s.RX.Verified, "packet carrying the wrong label must not verify the stream")

	rightLabel := bblPacket(1, 2, codec.BBLSubTypeIPv4, codec.BBLDirectionUp)
	rightLabel.MPLSCount = 1
	rightLabel.MPLSLabels[0] = codec.MPLSLabel{Label: 100}
	table.Match(rightLabel, time.Now())
	require.True(t, s.RX.Verified)
}

func TestAllVerifiedRequiresEveryRegisteredStream(t *testing.T) {
	table := New()
	s1 := newTestStream(1, stream.KindIPv4, stream.Up)
	s2 := newTestStream(2, stream.KindIPv4, stream.Up)
	table.Register(s1)
	table.Register(s2)

	table.Match(bblPacket(1, 1, codec.BBLSubTypeIPv4, codec.BBLDirectionUp), time.Now())
	require.False(t, table.AllVerified())

	table.Match(bblPacket(2, 1, codec.BBLSubTypeIPv4, codec.BBLDirectionUp), time.Now())
	require.True(t, table.AllVerified())
}
