// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ifctrl

import (
	"net"
	"net/netip"
	"testing"

	"github.com/mdlayher/ndp"
	"github.com/stretchr/testify/require"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/handlers"
	"grimm.is/gwemu/internal/ifmodel"
)

func netipAddr(ip net.IP) (netip.Addr, bool) {
	return netip.AddrFromSlice(ip.To16())
}

type capturingSink struct {
	sent [][]byte
}

func (s *capturingSink) Send(buf []byte) bool {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	s.sent = append(s.sent, cp)
	return true
}

func testInterface() *ifmodel.NetworkInterface {
	mac := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	ni := ifmodel.New("access0", "eth0", 0, mac)
	ni.IPv4 = net.IPv4(192, 0, 2, 1).To4()
	ni.IPv4Gateway = net.IPv4(192, 0, 2, 254).To4()
	ni.IPv6 = net.ParseIP("2001:db8::1")
	ni.IPv6Gateway = net.ParseIP("2001:db8::fe")
	return ni
}

func TestARPRequestForOwnAddressIsAnsweredInPlace(t *testing.T) {
	ni := testInterface()
	c := New(handlers.Dispatch{})
	sink := &capturingSink{}

	peerMAC := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	pkt := &codec.Packet{
		Eth: codec.Ethernet{SrcMAC: peerMAC, DstMAC: net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		Network: codec.NetworkARP,
		ARP: codec.ARP{
			Operation: codec.ARPOpRequest,
			SenderMAC: peerMAC,
			SenderIP:  net.IPv4(192, 0, 2, 2).To4(),
			TargetIP:  ni.IPv4,
		},
	}

	require.NoError(t, c.Handle(ni, pkt, sink))
	require.Len(t, sink.sent, 1)

	var reply codec.Packet
	res, err := codec.Decode(sink.sent[0], &reply)
	require.NoError(t, err)
	require.Equal(t, codec.Success, res)
	require.Equal(t, codec.ARPOpReply, reply.ARP.Operation)
	require.True(t, reply.ARP.SenderIP.Equal(ni.IPv4))
	require.Equal(t, peerMAC, reply.ARP.TargetMAC)
}

func TestARPFromGatewayResolvesPeer(t *testing.T) {
	ni := testInterface()
	ni.GatewayResolveWait = true
	c := New(handlers.Dispatch{})
	sink := &capturingSink{}

	gwMAC := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x09}
	pkt := &codec.Packet{
		Network: codec.NetworkARP,
		ARP: codec.ARP{
			Operation: codec.ARPOpReply,
			SenderMAC: gwMAC,
			SenderIP:  ni.IPv4Gateway,
			TargetIP:  ni.IPv4,
		},
	}

	require.NoError(t, c.Handle(ni, pkt, sink))
	require.True(t, ni.PeerResolved())
	require.Equal(t, gwMAC, ni.PeerMAC)
	require.Empty(t, sink.sent)
}

func TestICMPv4EchoRequestIsAnsweredInPlace(t *testing.T) {
	ni := testInterface()
	c := New(handlers.Dispatch{})
	sink := &capturingSink{}

	peerMAC := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	pkt := &codec.Packet{
		Eth:     codec.Ethernet{SrcMAC: peerMAC, DstMAC: ni.OwnMAC},
		Network: codec.NetworkIPv4,
		IPv4: codec.IPv4{
			TTL:   50,
			SrcIP: net.IPv4(192, 0, 2, 2).To4(),
			DstIP: ni.IPv4,
		},
		Transport:  codec.TransportICMP,
		ICMP:       codec.ICMPEcho{Type: codec.ICMPv4EchoRequest, Identifier: 7, Sequence: 3},
		RawPayload: []byte("payload"),
	}

	require.NoError(t, c.Handle(ni, pkt, sink))
	require.Len(t, sink.sent, 1)

	var reply codec.Packet
	res, err := codec.Decode(sink.sent[0], &reply)
	require.NoError(t, err)
	require.Equal(t, codec.Success, res)
	require.Equal(t, codec.ICMPv4EchoReply, reply.ICMP.Type)
	require.Equal(t, uint16(7), reply.ICMP.Identifier)
	require.True(t, reply.IPv4.SrcIP.Equal(ni.IPv4))
	require.Equal(t, uint8(64), reply.IPv4.TTL)
}

func TestICMPv6EchoRequestIsAnsweredInPlace(t *testing.T) {
	ni := testInterface()
	c := New(handlers.Dispatch{})
	sink := &capturingSink{}

	peerMAC := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	pkt := &codec.Packet{
		Eth:     codec.Ethernet{SrcMAC: peerMAC, DstMAC: ni.OwnMAC},
		Network: codec.NetworkIPv6,
		IPv6: codec.IPv6{
			HopLimit: 50,
			SrcIP:    net.ParseIP("2001:db8::2"),
			DstIP:    ni.IPv6,
		},
		Transport:  codec.TransportICMPv6,
		ICMPv6Type: codec.ICMPv6EchoRequest,
		ICMP:       codec.ICMPEcho{Type: codec.ICMPv6EchoRequest, Identifier: 9, Sequence: 1},
		RawPayload: []byte("ping"),
	}

	require.NoError(t, c.Handle(ni, pkt, sink))
	require.Len(t, sink.sent, 1)

	var reply codec.Packet
	res, err := codec.Decode(sink.sent[0], &reply)
	require.NoError(t, err)
	require.Equal(t, codec.Success, res)
	require.Equal(t, codec.ICMPv6EchoReply, reply.ICMP.Type)
	require.True(t, reply.IPv6.SrcIP.Equal(ni.IPv6))
	require.Equal(t, uint8(64), reply.IPv6.HopLimit)
}

func TestNeighborSolicitationForOwnAddressGetsAdvertisement(t *testing.T) {
	ni := testInterface()
	c := New(handlers.Dispatch{})
	sink := &capturingSink{}

	peerMAC := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	target, ok := netipAddr(ni.IPv6)
	require.True(t, ok)

	ns := &ndp.NeighborSolicitation{TargetAddress: target}
	body, err := ndp.MarshalMessage(ns)
	require.NoError(t, err)

	pkt := &codec.Packet{
		Eth:     codec.Ethernet{SrcMAC: peerMAC, DstMAC: ni.OwnMAC},
		Network: codec.NetworkIPv6,
		IPv6: codec.IPv6{
			SrcIP: net.ParseIP("2001:db8::2"),
			DstIP: ni.IPv6,
		},
		Transport:  codec.TransportICMPv6,
		ICMPv6Type: codec.ICMPv6NeighborSolicit,
		RawPayload: body,
	}

	require.NoError(t, c.Handle(ni, pkt, sink))
	require.Len(t, sink.sent, 1)

	var reply codec.Packet
	res, err := codec.Decode(sink.sent[0], &reply)
	require.NoError(t, err)
	require.Equal(t, codec.Success, res)
	require.Equal(t, codec.ICMPv6NeighborAdvert, reply.ICMPv6Type)

	msg, err := ndp.ParseMessage(reply.RawPayload)
	require.NoError(t, err)
	na, ok := msg.(*ndp.NeighborAdvertisement)
	require.True(t, ok)
	require.True(t, na.Solicited)
	require.True(t, na.Override)
}

func TestUnhandledIPv4ProtocolIncrementsUnknown(t *testing.T) {
	ni := testInterface()
	c := New(handlers.Dispatch{})
	sink := &capturingSink{}

	pkt := &codec.Packet{Network: codec.NetworkIPv4, IPv4: codec.IPv4{Protocol: 253}}
	require.NoError(t, c.Handle(ni, pkt, sink))
	require.Equal(t, uint64(1), ni.Counters.Unknown)
	require.Empty(t, sink.sent)
}

func TestTCPIPv4DispatchesToHandler(t *testing.T) {
	ni := testInterface()
	var called bool
	c := New(handlers.Dispatch{
		HandleTCPIPv4: func(*ifmodel.NetworkInterface, *codec.Packet) error {
			called = true
			return nil
		},
	})
	sink := &capturingSink{}

	pkt := &codec.Packet{Network: codec.NetworkIPv4, Transport: codec.TransportTCP}
	require.NoError(t, c.Handle(ni, pkt, sink))
	require.True(t, called)
}
