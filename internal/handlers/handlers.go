// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package handlers names the external collaborators the core invokes for
// control-plane protocols it does not itself implement: DHCP, DHCPv6, PPP
// and its NCPs, PPPoE discovery/session, ICMPv6 RA, IGMP, L2TP control,
// TCP, IS-IS, and OSPF. The core guarantees only to call these with a
// decoded frame and the NetworkInterface it arrived on, and to accept back
// pending-send bitset updates and stream-visible session state changes.
// None of their internals are implemented here.
package handlers

import (
	"net"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv6"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/ifmodel"
)

// Session is the external collaborator a Stream binds to: it supplies
// addressing and the readiness booleans that gate whether the stream may
// send, per spec's can_send table. The core only reads from it.
type Session interface {
	// Established reports whether the access-layer session (PPPoE LCP/auth
	// or IPoE's equivalent) has completed.
	Established() bool

	ClientMAC() net.HardwareAddr
	ServerMAC() net.HardwareAddr
	OuterVLAN() uint16
	InnerVLAN() uint16
	PPPoESessionID() uint16

	IPv4Address() net.IP
	IPCPOpened() bool

	IPv6Address() net.IP
	IPv6DelegatedPrefix() *net.IPNet
	IP6CPOpened() bool
	RAReceived() bool
	DHCPv6Bound() bool

	L2TPSessionID() uint32
	L2TPTunnelID() uint32
}

// Dispatch holds the function-typed fields the core invokes for each
// control-plane protocol it recognizes but does not terminate itself. A nil
// field means the protocol is unconfigured; the caller is responsible for
// nil-checking before invoking one (see internal/ifctrl's demux).
type Dispatch struct {
	HandleDHCP   func(ni *ifmodel.NetworkInterface, pkt *dhcpv4.DHCPv4, raw []byte) error
	HandleDHCPv6 func(ni *ifmodel.NetworkInterface, pkt dhcpv6.DHCPv6, raw []byte) error

	HandlePPPoEDiscovery func(ni *ifmodel.NetworkInterface, raw []byte) error
	HandlePPPoESession   func(ni *ifmodel.NetworkInterface, raw []byte) error

	HandlePPPLCP  func(ni *ifmodel.NetworkInterface, raw []byte) error
	HandlePPPIPCP func(ni *ifmodel.NetworkInterface, raw []byte) error
	HandlePPPIP6CP func(ni *ifmodel.NetworkInterface, raw []byte) error

	HandleICMPv6RA func(ni *ifmodel.NetworkInterface, raw []byte) error
	HandleIGMP     func(ni *ifmodel.NetworkInterface, pkt *codec.Packet) error

	HandleL2TPControl     func(ni *ifmodel.NetworkInterface, raw []byte) error
	HandleLawfulIntercept func(ni *ifmodel.NetworkInterface, pkt *codec.Packet) error
	HandleTCPIPv4         func(ni *ifmodel.NetworkInterface, pkt *codec.Packet) error
	HandleTCPIPv6         func(ni *ifmodel.NetworkInterface, pkt *codec.Packet) error

	HandleISIS   func(ni *ifmodel.NetworkInterface, raw []byte) error
	HandleOSPFv2 func(ni *ifmodel.NetworkInterface, raw []byte) error
	HandleOSPFv3 func(ni *ifmodel.NetworkInterface, raw []byte) error
}
