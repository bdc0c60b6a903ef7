// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testEth() Ethernet {
	return Ethernet{
		DstMAC: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		SrcMAC: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
	}
}

func TestEncodeDecodeRoundTripIPv4BBL(t *testing.T) {
	bbl := &BBLHeader{
		Type:          BBLTypeUnicastSession,
		SubType:       BBLSubTypeIPv4,
		Direction:     BBLDirectionDown,
		SessionID:     42,
		IfIndex:       7,
		OuterVLAN:     100,
		InnerVLAN:     200,
		FlowID:        0xdeadbeef,
		FlowSeq:       1,
		TimestampSec:  1700000000,
		TimestampNsec: 123456,
	}
	plan := &EncodePlan{
		Eth:     testEth(),
		Network: NetworkIPv4,
		IPv4: IPv4{
			TOS:   0x10,
			TTL:   64,
			SrcIP: net.IPv4(10, 0, 0, 1).To4(),
			DstIP: net.IPv4(10, 0, 0, 2).To4(),
		},
		Transport:   TransportUDP,
		UDP:         UDP{SrcPort: 9000, DstPort: 9001},
		BBL:         bbl,
		BBLTotalLen: 128,
	}

	buf := make([]byte, 1500)
	n, err := Encode(buf, plan)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	var pkt Packet
	res, err := Decode(buf[:n], &pkt)
	require.NoError(t, err)
	require.Equal(t, Success, res)

	require.Equal(t, NetworkIPv4, pkt.Network)
	require.Equal(t, TransportUDP, pkt.Transport)
	require.Equal(t, PayloadBBL, pkt.Payload)
	require.Equal(t, bbl.SessionID, pkt.BBL.SessionID)
	require.Equal(t, bbl.FlowID, pkt.BBL.FlowID)
	require.Equal(t, bbl.FlowSeq, pkt.BBL.FlowSeq)
	require.Equal(t, bbl.OuterVLAN, pkt.BBL.OuterVLAN)
	require.Equal(t, bbl.InnerVLAN, pkt.BBL.InnerVLAN)
	require.Equal(t, net.IP(net.IPv4(10, 0, 0, 1).To4()).String(), pkt.IPv4.SrcIP.String())
}

func TestEncodeDecodeRoundTripIPv6BBLWithVLAN(t *testing.T) {
	bbl := &BBLHeader{
		Type:      BBLTypeUnicastSession,
		SubType:   BBLSubTypeIPv6,
		Direction: BBLDirectionUp,
		SessionID: 7,
		FlowID:    99,
		FlowSeq:   5,
	}
	eth := testEth()
	eth.VLANs[0] = VLANTag{TPID: EtherTypeVLAN, TCI: 300}
	eth.VLANCount = 1

	plan := &EncodePlan{
		Eth:     eth,
		Network: NetworkIPv6,
		IPv6: IPv6{
			HopLimit: 64,
			SrcIP:    net.ParseIP("fe80::1"),
			DstIP:    net.ParseIP("fe80::2"),
		},
		Transport:   TransportUDP,
		UDP:         UDP{SrcPort: 9000, DstPort: 9001},
		BBL:         bbl,
		BBLTotalLen: BBLHeaderLen,
	}

	buf := make([]byte, 1500)
	n, err := Encode(buf, plan)
	require.NoError(t, err)

	var pkt Packet
	res, err := Decode(buf[:n], &pkt)
	require.NoError(t, err)
	require.Equal(t, Success, res)
	require.Equal(t, 1, pkt.Eth.VLANCount)
	require.Equal(t, uint16(300), pkt.Eth.VLANs[0].VID())
	require.Equal(t, NetworkIPv6, pkt.Network)
	require.Equal(t, uint64(99), pkt.BBL.FlowID)
}

func TestEncodeDecodeRoundTripICMPEcho(t *testing.T) {
	plan := &EncodePlan{
		Eth:     testEth(),
		Network: NetworkIPv4,
		IPv4: IPv4{
			TTL:   64,
			SrcIP: net.IPv4(192, 168, 1, 1).To4(),
			DstIP: net.IPv4(192, 168, 1, 2).To4(),
		},
		Transport:  TransportICMP,
		ICMP:       ICMPEcho{Type: ICMPv4EchoRequest, Identifier: 1234, Sequence: 1},
		RawPayload: []byte("probe-payload"),
	}

	buf := make([]byte, 256)
	n, err := Encode(buf, plan)
	require.NoError(t, err)

	var pkt Packet
	res, err := Decode(buf[:n], &pkt)
	require.NoError(t, err)
	require.Equal(t, Success, res)
	require.Equal(t, TransportICMP, pkt.Transport)
	require.Equal(t, uint16(1234), pkt.ICMP.Identifier)
	require.Equal(t, uint16(1), pkt.ICMP.Sequence)
	require.Equal(t, []byte("probe-payload"), pkt.RawPayload)
}

func TestEncodeDecodeARP(t *testing.T) {
	eth := testEth()
	arp := &ARP{
		Operation: ARPOpReply,
		SenderMAC: eth.SrcMAC,
		SenderIP:  net.IPv4(10, 0, 0, 1).To4(),
		TargetMAC: eth.DstMAC,
		TargetIP:  net.IPv4(10, 0, 0, 2).To4(),
	}
	buf := make([]byte, 64)
	n, err := EncodeARP(buf, &eth, arp)
	require.NoError(t, err)

	var pkt Packet
	res, err := Decode(buf[:n], &pkt)
	require.NoError(t, err)
	require.Equal(t, Success, res)
	require.Equal(t, NetworkARP, pkt.Network)
	require.Equal(t, ARPOpReply, pkt.ARP.Operation)
}

func TestDecodeTruncatedFrameIsProtocolError(t *testing.T) {
	var pkt Packet
	res, err := Decode(make([]byte, 4), &pkt)
	require.Error(t, err)
	require.Equal(t, ProtocolError, res)
}

func TestDecodeUnknownEtherTypeIsUnknownProtocol(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf[0:6], []byte{0x02, 0, 0, 0, 0, 1})
	copy(buf[6:12], []byte{0x02, 0, 0, 0, 0, 2})
	buf[12], buf[13] = 0x12, 0x34 // not a recognized ethertype

	var pkt Packet
	res, err := Decode(buf, &pkt)
	require.NoError(t, err)
	require.Equal(t, UnknownProtocol, res)
}

func TestBBLEncodeDecodeByteForByte(t *testing.T) {
	h := &BBLHeader{
		Type: BBLTypeMulticast, SubType: BBLSubTypeIPv6PD, Direction: BBLDirectionDown,
		TOS: 0x2e, SessionID: 0x11223344, IfIndex: 3,
		OuterVLAN: 10, InnerVLAN: 20,
		MCSource: 0xaabbccdd, MCGroup: 0x11223344,
		FlowID: 0x0102030405060708, FlowSeq: 9,
		TimestampSec: 1000, TimestampNsec: 2000,
	}
	buf := make([]byte, BBLHeaderLen)
	n, err := EncodeBBL(buf, h, BBLHeaderLen)
	require.NoError(t, err)
	require.Equal(t, BBLHeaderLen, n)

	var got BBLHeader
	require.NoError(t, DecodeBBL(buf, &got))
	if diff := cmp.Diff(*h, got); diff != "" {
		t.Errorf("decoded header diverged from encoded one (-want +got):\n%s", diff)
	}
}

func TestPatchBBLTimingOnlyTouchesTimingFields(t *testing.T) {
	h := &BBLHeader{Type: BBLTypeUnicastSession, SessionID: 5, FlowID: 1, FlowSeq: 1}
	buf := make([]byte, BBLHeaderLen)
	_, err := EncodeBBL(buf, h, BBLHeaderLen)
	require.NoError(t, err)

	require.NoError(t, PatchBBLTiming(buf, 42, 555, 666))

	var got BBLHeader
	require.NoError(t, DecodeBBL(buf, &got))
	require.Equal(t, uint64(42), got.FlowSeq)
	require.Equal(t, uint32(555), got.TimestampSec)
	require.Equal(t, uint32(666), got.TimestampNsec)
	require.Equal(t, h.SessionID, got.SessionID)
	require.Equal(t, h.FlowID, got.FlowID)
}
