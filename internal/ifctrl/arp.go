// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ifctrl

import (
	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/ifmodel"
)

// handleARP resolves the configured gateway from an ARP sender and answers
// requests targeting one of our own addresses in-place.
func (c *Controller) handleARP(ni *ifmodel.NetworkInterface, pkt *codec.Packet, sink Sink) error {
	if ni.IPv4Gateway != nil && pkt.ARP.SenderIP.Equal(ni.IPv4Gateway) && !ni.PeerResolved() {
		ni.SetPeerMAC(pkt.ARP.SenderMAC)
	}

	if pkt.ARP.Operation != codec.ARPOpRequest || !ni.OwnsIPv4(pkt.ARP.TargetIP) {
		return nil
	}

	reply := codec.ARP{
		Operation: codec.ARPOpReply,
		SenderMAC: ni.OwnMAC,
		SenderIP:  pkt.ARP.TargetIP,
		TargetMAC: pkt.ARP.SenderMAC,
		TargetIP:  pkt.ARP.SenderIP,
	}
	eth := pkt.Eth
	eth.SrcMAC = ni.OwnMAC
	eth.DstMAC = pkt.ARP.SenderMAC

	n, err := codec.EncodeARP(c.buf[:], &eth, &reply)
	if err != nil {
		return err
	}
	sink.Send(c.buf[:n])
	return nil
}

// replyICMPv4Echo answers an ICMPv4 echo request targeted at one of our own
// addresses, swapping source/destination and resetting TTL to 64.
func (c *Controller) replyICMPv4Echo(ni *ifmodel.NetworkInterface, pkt *codec.Packet, sink Sink) error {
	plan := codec.EncodePlan{
		Eth: codec.Ethernet{
			DstMAC:    pkt.Eth.SrcMAC,
			SrcMAC:    ni.OwnMAC,
			VLANs:     pkt.Eth.VLANs,
			VLANCount: pkt.Eth.VLANCount,
		},
		Network: codec.NetworkIPv4,
		IPv4: codec.IPv4{
			TTL:      64,
			Protocol: codec.ProtoICMPv4,
			SrcIP:    pkt.IPv4.DstIP,
			DstIP:    pkt.IPv4.SrcIP,
		},
		Transport: codec.TransportICMP,
		ICMP: codec.ICMPEcho{
			Type:       codec.ICMPv4EchoReply,
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
