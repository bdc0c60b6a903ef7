// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ifctrl demuxes every frame a NetworkInterface receives that isn't
// itself a BBL test packet: ARP, ICMP/ICMPv6 directed at the interface's own
// addresses, and everything else handed off to internal/handlers. It is the
// "per received frame on a NetworkInterface" logic the main loop runs ahead
// of (and instead of) the RX flow matcher for non-stream traffic.
package ifctrl

import (
	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv6"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/handlers"
	"grimm.is/gwemu/internal/ifmodel"
)

// Sink is the minimal contract ifctrl needs to transmit a reply: a single
// buffer handoff that may be refused under backpressure, matching
// internal/stream's Sink shape so both can be backed by the same ring.
type Sink interface {
	Send(buf []byte) bool
}

// Controller holds the external-protocol Dispatch and a scratch buffer for
// building in-place replies. It is not safe for concurrent use: per the
// concurrency model, control-plane handling runs on the single main thread.
type Controller struct {
	Dispatch handlers.Dispatch

	buf [2048]byte
}

// New creates a Controller wired to dispatch.
func New(dispatch handlers.Dispatch) *Controller {
	return &Controller{Dispatch: dispatch}
}

// Handle processes one decoded, non-BBL frame received on ni, replying
// in-place via sink where the interface itself is the right answer (ARP,
// ICMP/ICMPv6 echo, Neighbor Discovery) and otherwise demuxing to dispatch.
// Frames recognized by the codec's RawPayload/Payload classification but
// naming no configured handler, and frames Decode itself could not place,
// both fall through to ni.Counters.Unknown.
func (c *Controller) Handle(ni *ifmodel.NetworkInterface, pkt *codec.Packet, sink Sink) error {
	switch pkt.Network {
	case codec.NetworkARP:
		return c.handleARP(ni, pkt, sink)

	case codec.NetworkIPv4:
		return c.handleIPv4(ni, pkt, sink)

	case codec.NetworkIPv6:
		return c.handleIPv6(ni, pkt, sink)
	}

	switch pkt.Payload {
	case codec.PayloadPPPoEDiscovery:
		return callRaw(c.Dispatch.HandlePPPoEDiscovery, ni, pkt.RawPayload)
	case codec.PayloadPPPoESession:
		return callRaw(c.Dispatch.HandlePPPoESession, ni, pkt.RawPayload)
	case codec.PayloadISIS:
		return callRaw(c.Dispatch.HandleISIS, ni, pkt.RawPayload)
	}

	ni.Counters.Unknown++
	return nil
}

func (c *Controller) handleIPv4(ni *ifmodel.NetworkInterface, pkt *codec.Packet, sink Sink) error {
	switch {
	case pkt.Transport == codec.TransportICMP:
		if pkt.ICMP.Type == codec.ICMPv4EchoRequest && ni.OwnsIPv4(pkt.IPv4.DstIP) {
			return c.replyICMPv4Echo(ni, pkt, sink)
		}
		ni.Counters.Unknown++
		return nil

	case pkt.Payload == codec.PayloadDHCP:
		if c.Dispatch.HandleDHCP == nil {
			ni.Counters.Unknown++
			return nil
		}
		msg, err := dhcpv4.FromBytes(pkt.RawPayload)
		if err != nil {
			ni.Counters.RXErrors++
			return nil
		}
		return c.Dispatch.HandleDHCP(ni, msg, pkt.RawPayload)

	case pkt.UDP.DstPort == codec.L2TPv2DataPort:
		return callRaw(c.Dispatch.HandleL2TPControl, ni, pkt.RawPayload)

	case pkt.Payload == codec.PayloadLawfulIntercept:
		return callPacket(c.Dispatch.HandleLawfulIntercept, ni, pkt)

	case pkt.IPv4.Protocol == codec.ProtoIGMP:
		return callPacket(c.Dispatch.HandleIGMP, ni, pkt)

	case pkt.Transport == codec.TransportTCP:
		return callPacket(c.Dispatch.HandleTCPIPv4, ni, pkt)

	case pkt.Payload == codec.PayloadOSPF:
		return callRaw(c.Dispatch.HandleOSPFv2, ni, pkt.RawPayload)
	}

	ni.Counters.Unknown++
	return nil
}

func (c *Controller) handleIPv6(ni *ifmodel.NetworkInterface, pkt *codec.Packet, sink Sink) error {
	switch {
	case pkt.Transport == codec.TransportICMPv6:
		return c.handleICMPv6(ni, pkt, sink)

	case pkt.Payload == codec.PayloadDHCPv6:
		if c.Dispatch.HandleDHCPv6 == nil {
			ni.Counters.Unknown++
			return nil
		}
		msg, err := dhcpv6.FromBytes(pkt.RawPayload)
		if err != nil {
			ni.Counters.RXErrors++
			return nil
		}
		return c.Dispatch.HandleDHCPv6(ni, msg, pkt.RawPayload)

	case pkt.Transport == codec.TransportTCP:
		return callPacket(c.Dispatch.HandleTCPIPv6, ni, pkt)

	case pkt.Payload == codec.PayloadOSPF:
		return callRaw(c.Dispatch.HandleOSPFv3, ni, pkt.RawPayload)
	}

	ni.Counters.Unknown++
	return nil
}

func callRaw(fn func(*ifmodel.NetworkInterface, []byte) error, ni *ifmodel.NetworkInterface, raw []byte) error {
	if fn == nil {
		ni.Counters.Unknown++
		return nil
	}
	return fn(ni, raw)
}

func callPacket(fn func(*ifmodel.NetworkInterface, *codec.Packet) error, ni *ifmodel.NetworkInterface, pkt *codec.Packet) error {
	if fn == nil {
		ni.Counters.Unknown++
		return nil
	}
	return fn(ni, pkt)
}
