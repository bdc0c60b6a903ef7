// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package stream

import (
	"fmt"
	"net"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/netutil"
)

// BuildTemplate builds and caches s's packet template. Safe to call only
// when CanSend(s, ...) holds; the caller (scheduler) is responsible for
// calling it exactly once per gate-open transition.
func BuildTemplate(s *Stream) error {
	eth, srcIP, dstIP, err := resolveAddressing(s)
	if err != nil {
		return fmt.Errorf("stream %s: %w", s.Name, err)
	}

	bblSubType := codec.BBLSubTypeIPv4
	network := codec.NetworkIPv4
	switch s.Kind {
	case KindIPv6:
		bblSubType = codec.BBLSubTypeIPv6
		network = codec.NetworkIPv6
	case KindIPv6PD:
		bblSubType = codec.BBLSubTypeIPv6PD
		network = codec.NetworkIPv6
	}

	direction := codec.BBLDirectionUp
	if s.Direction == Down {
		direction = codec.BBLDirectionDown
	}

	multicast := network == codec.NetworkIPv4 && netutil.IsMulticastIPv4(dstIP)
	bblType := codec.BBLTypeUnicastSession
	if multicast {
		bblType = codec.BBLTypeMulticast
		eth.DstMAC = netutil.MulticastMAC(dstIP)
	}
	s.multicast = multicast

	bbl := &codec.BBLHeader{
		Type:      bblType,
		SubType:   bblSubType,
		Direction: direction,
		TOS:       s.TOS,
		OuterVLAN: 0,
		InnerVLAN: 0,
		FlowID:    s.FlowID,
		FlowSeq:   1,
	}
	if eth.VLANCount > 0 {
		bbl.OuterVLAN = eth.VLANs[0].VID()
	}
	if eth.VLANCount > 1 {
		bbl.InnerVLAN = eth.VLANs[1].VID()
	}
	if s.Session != nil {
		bbl.SessionID = uint32(s.Session.PPPoESessionID())
	}

	buf := make([]byte, s.Length)

	if s.Encap == L2TPTunnel {
		return buildL2TPTemplate(s, buf, eth, srcIP, dstIP, network, bbl)
	}

	plan := &codec.EncodePlan{
		Eth:         eth,
		MPLSLabels:  s.TXLabels,
		Network:     network,
		Transport:   codec.TransportUDP,
		UDP:         codec.UDP{SrcPort: 50000, DstPort: 50000},
		BBL:         bbl,
		BBLTotalLen: s.Length - headerOverhead(eth, s.TXLabels, network),
	}
	if plan.BBLTotalLen < codec.BBLHeaderLen {
		plan.BBLTotalLen = codec.BBLHeaderLen
	}
	switch network {
	case codec.NetworkIPv4:
		plan.IPv4 = codec.IPv4{TOS: s.TOS, TTL: 64, SrcIP: srcIP.To4(), DstIP: dstIP.To4()}
	case codec.NetworkIPv6:
		plan.IPv6 = codec.IPv6{HopLimit: 64, SrcIP: srcIP.To16(), DstIP: dstIP.To16()}
	}

	n, err := codec.Encode(buf, plan)
	if err != nil {
		return fmt.Errorf("stream %s: %w", s.Name, err)
	}

	s.txBuf = buf
	s.txLen = n
	s.bblOffset = n - plan.BBLTotalLen
	return nil
}

func buildL2TPTemplate(s *Stream, buf []byte, eth codec.Ethernet, srcIP, dstIP net.IP, innerNetwork codec.NetworkProto, bbl *codec.BBLHeader) error {
	innerHeaderLen := 0
	switch innerNetwork {
	case codec.NetworkIPv4:
		innerHeaderLen = 20 + 8
	case codec.NetworkIPv6:
		innerHeaderLen = 40 + 8
	}
	bblTotalLen := s.Length - 14 - 20 - 8 - 6 - innerHeaderLen
	if bblTotalLen < codec.BBLHeaderLen {
		bblTotalLen = codec.BBLHeaderLen
	}

	outerIPv4 := codec.IPv4{TTL: 64, SrcIP: s.Interface.IPv4, DstIP: s.Interface.IPv4Gateway}

	l2tp := codec.L2TPv2Data{}
	if s.Session != nil {
		l2tp.SessionID = uint16(s.Session.L2TPSessionID())
		l2tp.TunnelID = uint16(s.Session.L2TPTunnelID())
	}

	var innerIPv4 codec.IPv4
	var innerIPv6 codec.IPv6
	switch innerNetwork {
	case codec.NetworkIPv4:
		innerIPv4 = codec.IPv4{TOS: s.TOS, TTL: 64, SrcIP: srcIP.To4(), DstIP: dstIP.To4()}
	case codec.NetworkIPv6:
		innerIPv6 = codec.IPv6{HopLimit: 64, SrcIP: srcIP.To16(), DstIP: dstIP.To16()}
	}
	innerUDP := codec.UDP{SrcPort: 50000, DstPort: 50000}

	n, err := codec.EncodeL2TPWrapped(buf, eth, outerIPv4, l2tp, innerNetwork, innerIPv4, innerIPv6, innerUDP, bbl, bblTotalLen)
	if err != nil {
		return fmt.Errorf("stream %s: l2tp template: %w", s.Name, err)
	}
	s.txBuf = buf
	s.txLen = n
	s.bblOffset = n - bblTotalLen
	return nil
}

// headerOverhead estimates the byte cost of everything preceding the BBL
// payload, so a stream's configured Length can be honored on the wire.
func headerOverhead(eth codec.Ethernet, mpls []codec.MPLSLabel, network codec.NetworkProto) int {
	overhead := 14 + eth.VLANCount*4 + len(mpls)*4 + 8 // ethernet+vlans+mpls+udp
	switch network {
	case codec.NetworkIPv4:
		overhead += 20
	case codec.NetworkIPv6:
		overhead += 40
	}
	return overhead
}

// resolveAddressing derives the template's Ethernet header and network
// source/destination from the Session (session-bound) or NetworkInterface
// (raw), honoring explicit per-stream overrides.
func resolveAddressing(s *Stream) (codec.Ethernet, net.IP, net.IP, error) {
	var eth codec.Ethernet
	var srcIP, dstIP net.IP

	if s.Interface == nil {
		return eth, nil, nil, fmt.Errorf("no bound interface")
	}
	eth.SrcMAC = s.Interface.OwnMAC
	eth.DstMAC = s.Interface.PeerMAC

	if s.VLANPCP != 0 && s.Interface.VLAN != 0 {
		eth.VLANCount = 1
		eth.VLANs[0] = codec.VLANTag{TPID: codec.EtherTypeVLAN, TCI: uint16(s.VLANPCP)<<13 | s.Interface.VLAN}
	} else if s.Interface.VLAN != 0 {
		eth.VLANCount = 1
		eth.VLANs[0] = codec.VLANTag{TPID: codec.EtherTypeVLAN, TCI: s.Interface.VLAN}
	}

	if s.Session != nil {
		eth.SrcMAC = s.Session.ClientMAC()
		eth.DstMAC = s.Session.ServerMAC()
		if s.Direction == Down {
			eth.SrcMAC, eth.DstMAC = eth.DstMAC, eth.SrcMAC
		}
		if vlan := s.Session.OuterVLAN(); vlan != 0 {
			eth.VLANCount = 1
			eth.VLANs[0] = codec.VLANTag{TPID: codec.EtherTypeVLAN, TCI: vlan}
			if inner := s.Session.InnerVLAN(); inner != 0 {
				eth.VLANCount = 2
				eth.VLANs[1] = codec.VLANTag{TPID: codec.EtherTypeVLAN, TCI: inner}
			}
		}

		switch s.Kind {
		case KindIPv4:
			srcIP = s.Session.IPv4Address()
		case KindIPv6:
			srcIP = s.Session.IPv6Address()
			if s.Encap == A10NSPCrossConnect && s.Interface.IPv6LinkLocal != nil {
				// Per documented (not "fixed") A10NSP behavior: the session
				// address is set first and then overwritten by the
				// interface's link-local, last write wins. Exclusive to the
				// A10NSP cross-connect builders; plain access PPPoE/IPoE
				// streams keep the session-assigned address.
				srcIP = s.Interface.IPv6LinkLocal
			}
		case KindIPv6PD:
			if pfx := s.Session.IPv6DelegatedPrefix(); pfx != nil {
				srcIP = pfx.IP
			}
		}
		dstIP = s.Interface.IPv4Gateway
		if s.Kind != KindIPv4 {
			dstIP = s.Interface.IPv6Gateway
		}
	} else {
		switch s.Kind {
		case KindIPv4:
			srcIP = s.Interface.IPv4
			dstIP = s.Interface.IPv4Gateway
		default:
			srcIP = s.Interface.IPv6
			dstIP = s.Interface.IPv6Gateway
		}
	}

	if s.Overrides.SrcIP != nil {
		srcIP = s.Overrides.SrcIP
	}
	if s.Overrides.DestIP != nil {
		dstIP = s.Overrides.DestIP
	}
	if srcIP == nil || dstIP == nil {
		return eth, nil, nil, fmt.Errorf("unresolved addressing")
	}
	return eth, srcIP, dstIP, nil
}
