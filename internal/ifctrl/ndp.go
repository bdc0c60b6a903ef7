// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ifctrl

import (
	"net"

	"github.com/mdlayher/ndp"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/ifmodel"
)

// handleICMPv6 resolves the configured IPv6 gateway from any ICMPv6 message
// it sends, then answers Neighbor Solicitation and Echo Request in-place.
// Router Advertisement is handed to the external dispatch; everything else
// falls to the unknown counter.
func (c *Controller) handleICMPv6(ni *ifmodel.NetworkInterface, pkt *codec.Packet, sink Sink) error {
	if ni.IPv6Gateway != nil && pkt.IPv6.SrcIP.Equal(ni.IPv6Gateway) && !ni.PeerResolved() {
		ni.SetPeerMAC(pkt.Eth.SrcMAC)
	}

	switch pkt.ICMPv6Type {
	case codec.ICMPv6NeighborSolicit:
		return c.replyNeighborSolicitation(ni, pkt, sink)
	case codec.ICMPv6EchoRequest:
		return c.replyICMPv6Echo(ni, pkt, sink)
	case codec.ICMPv6RouterAdvert:
		return callRaw(c.Dispatch.HandleICMPv6RA, ni, pkt.RawPayload)
	}

	ni.Counters.Unknown++
	return nil
}

// replyNeighborSolicitation answers an NS for our global address, link-local
// address, or any configured secondary with a solicited, overriding NA
// carrying our link-layer address option.
func (c *Controller) replyNeighborSolicitation(ni *ifmodel.NetworkInterface, pkt *codec.Packet, sink Sink) error {
	msg, err := ndp.ParseMessage(pkt.RawPayload)
	if err != nil {
		ni.Counters.RXErrors++
		return nil
	}
	ns, ok := msg.(*ndp.NeighborSolicitation)
	if !ok {
		ni.Counters.Unknown++
		return nil
	}

	target := net.IP(ns.TargetAddress.AsSlice())
	if !ni.OwnsIPv6(target) {
		return nil
	}

	na := &ndp.NeighborAdvertisement{
		Router:        false,
		Solicited:     true,
		Override:      true,
		TargetAddress: ns.TargetAddress,
		Options: []ndp.Option{
			&ndp.LinkLayerAddress{
				Direction: ndp.Target,
				Addr:      ni.OwnMAC,
			},
		},
	}
	body, err := ndp.MarshalMessage(na)
	if err != nil {
		return err
	}

	eth := codec.Ethernet{
		DstMAC:    pkt.Eth.SrcMAC,
		SrcMAC:    ni.OwnMAC,
		VLANs:     pkt.Eth.VLANs,
		VLANCount: pkt.Eth.VLANCount,
	}
	ipv6 := codec.IPv6{
		HopLimit: 255,
		SrcIP:    target.To16(),
		DstIP:    pkt.IPv6.SrcIP,
	}

	n, err := codec.EncodeIPv6ICMPRaw(c.buf[:], eth, ipv6, body)
	if err != nil {
		return err
	}
	sink.Send(c.buf[:n])
	return nil
}

// replyICMPv6Echo answers an ICMPv6 echo request targeted at one of our own
// addresses, swapping source/destination and resetting the hop limit to 64.
func (c *Controller) replyICMPv6Echo(ni *ifmodel.NetworkInterface, pkt *codec.Packet, sink Sink) error {
	if !ni.OwnsIPv6(pkt.IPv6.DstIP) {
		ni.Counters.Unknown++
		return nil
	}

	plan := codec.EncodePlan{
		Eth: codec.Ethernet{
			DstMAC:    pkt.Eth.SrcMAC,
			SrcMAC:    ni.OwnMAC,
			VLANs:     pkt.Eth.VLANs,
			VLANCount: pkt.Eth.VLANCount,
		},
		Network: codec.NetworkIPv6,
		IPv6: codec.IPv6{
			HopLimit: 64,
			SrcIP:    pkt.IPv6.DstIP,
			DstIP:    pkt.IPv6.SrcIP,
		},
		Transport: codec.TransportICMPv6,
		ICMP: codec.ICMPEcho{
			Type:       codec.ICMPv6EchoReply,
			Code:       0,
			Identifier: pkt.ICMP.Identifier,
			Sequence:   pkt.ICMP.Sequence,
		},
		RawPayload: pkt.RawPayload,
	}

	n, err := codec.Encode(c.buf[:], &plan)
	if err != nil {
		return err
	}
	sink.Send(c.buf[:n])
	return nil
}
