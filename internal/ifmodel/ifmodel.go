// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ifmodel holds the NetworkInterface data model: an emulated L2/L3
// port bound to a physical NIC (or a VLAN sub-interface of one), carrying
// its own addressing, pending control-plane sends, and I/O handles.
package ifmodel

import (
	"net"
	"sync/atomic"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/netutil"
	"grimm.is/gwemu/internal/txq"
)

// PendingSend is a bitset of outgoing control packets a NetworkInterface
// still owes the wire, armed at startup or on an event and cleared once
// the control handler emits them.
type PendingSend uint32

const (
	PendingARPRequest PendingSend = 1 << iota
	PendingNSRequest
	PendingISISHello
)

// IOHandle is the minimal contract a NetworkInterface needs from its bound
// RX/TX ring or raw socket. Concrete handles (ring/raw/disabled) live in
// internal/ringio, which depends on this package rather than the reverse.
type IOHandle interface {
	Close() error
}

// Counters holds the monotonic, single-writer-from-owning-thread counters
// for a NetworkInterface. Cross-thread reads (for reporting) tolerate
// stale values, per the concurrency model: no locking here.
type Counters struct {
	RXPackets uint64
	RXBytes   uint64
	TXPackets uint64
	TXBytes   uint64
	RXErrors  uint64
	TXErrors  uint64
	Unknown   uint64
}

func (c *Counters) AddRX(n int) {
	atomic.AddUint64(&c.RXPackets, 1)
	atomic.AddUint64(&c.RXBytes, uint64(n))
}

func (c *Counters) AddTX(n int) {
	atomic.AddUint64(&c.TXPackets, 1)
	atomic.AddUint64(&c.TXBytes, uint64(n))
}

func (c *Counters) Snapshot() Counters {
	return Counters{
		RXPackets: atomic.LoadUint64(&c.RXPackets),
		RXBytes:   atomic.LoadUint64(&c.RXBytes),
		TXPackets: atomic.LoadUint64(&c.TXPackets),
		TXBytes:   atomic.LoadUint64(&c.TXBytes),
		RXErrors:  atomic.LoadUint64(&c.RXErrors),
		TXErrors:  atomic.LoadUint64(&c.TXErrors),
		Unknown:   atomic.LoadUint64(&c.Unknown),
	}
}

// NetworkInterface is an emulated L2/L3 port: a physical port binding plus
// an optional VLAN tag, its own addressing, and the state the control-plane
// handlers and stream scheduler need to reach it.
//
// Invariants: no two NetworkInterfaces bound to the same PhysicalPort share
// VLAN — enforced by config.BuildInterfaces, not here. An untagged
// interface next to tagged siblings on the same port is not rejected.
// Until ARP/ND resolves the peer,
// PeerMAC is nil and outbound traffic on this interface is withheld if
// GatewayResolveWait is set.
type NetworkInterface struct {
	Name         string
	PhysicalPort string
	VLAN         uint16 // 0 means untagged

	OwnMAC net.HardwareAddr

	// PeerMAC is the resolved gateway/peer MAC. nil means unresolved;
	// there is no sentinel all-zero MAC value.
	PeerMAC            net.HardwareAddr
	GatewayResolveWait bool

	IPv4          net.IP
	IPv4Gateway   net.IP
	IPv4Secondary []net.IP

	IPv6           net.IP
	IPv6LinkLocal  net.IP
	IPv6Gateway    net.IP
	IPv6Secondary  []net.IP

	// TXLabel is the optional MPLS label this interface imposes on every
	// frame it originates.
	TXLabel *codec.MPLSLabel

	Pending PendingSend

	// TXRing carries control-plane frames the main loop wants a TX worker
	// to emit ahead of stream traffic; nil for interfaces with no worker.
	TXRing *txq.Ring

	RX, TX IOHandle

	Counters Counters
}

// New constructs a NetworkInterface with OwnMAC set to mac and its IPv6
// link-local address derived from mac per the modified-EUI-64 form. When
// mac is nil both stay nil here; internal/orchestrate fills them from the
// physical port's kernel MAC in ring and raw I/O modes.
func New(name, physicalPort string, vlan uint16, mac net.HardwareAddr) *NetworkInterface {
	ni := &NetworkInterface{
		Name:         name,
		PhysicalPort: physicalPort,
		VLAN:         vlan,
		OwnMAC:       mac,
	}
	if len(mac) == 6 {
		ni.IPv6LinkLocal = netutil.LinkLocalFromMAC(mac)
	}
	return ni
}

// SetPeerMAC resolves the peer/gateway MAC, clearing GatewayResolveWait.
func (ni *NetworkInterface) SetPeerMAC(mac net.HardwareAddr) {
	ni.PeerMAC = mac
	ni.GatewayResolveWait = false
}

// PeerResolved reports whether ARP/ND has resolved the peer MAC.
func (ni *NetworkInterface) PeerResolved() bool {
	return ni.PeerMAC != nil
}

// CanSend reports whether outbound traffic may leave this interface right
// now: either no resolve-wait was requested, or the peer is resolved.
func (ni *NetworkInterface) CanSend() bool {
	return !ni.GatewayResolveWait || ni.PeerResolved()
}

// OwnsIPv4 reports whether ip is this interface's primary or any secondary
// IPv4 address.
func (ni *NetworkInterface) OwnsIPv4(ip net.IP) bool {
	if ni.IPv4 != nil && ni.IPv4.Equal(ip) {
		return true
	}
	for _, sec := range ni.IPv4Secondary {
		if sec.Equal(ip) {
			return true
		}
	}
	return false
}

// OwnsIPv6 reports whether ip is this interface's global, link-local, or
// any secondary IPv6 address.
func (ni *NetworkInterface) OwnsIPv6(ip net.IP) bool {
	if ni.IPv6 != nil && ni.IPv6.Equal(ip) {
		return true
	}
	if ni.IPv6LinkLocal != nil && ni.IPv6LinkLocal.Equal(ip) {
		return true
	}
	for _, sec := range ni.IPv6Secondary {
		if sec.Equal(ip) {
			return true
		}
	}
	return false
}

// ArmPending sets one or more pending-send bits.
func (ni *NetworkInterface) ArmPending(bits PendingSend) {
	ni.Pending |= bits
}

// ClearPending clears one or more pending-send bits, returning whether any
// of them were set.
func (ni *NetworkInterface) ClearPending(bits PendingSend) bool {
	had := ni.Pending&bits != 0
	ni.Pending &^= bits
	return had
}

// HasPending reports whether any of bits is currently armed.
func (ni *NetworkInterface) HasPending(bits PendingSend) bool {
	return ni.Pending&bits != 0
}
