// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

// NetworkProto names the layer directly above Ethernet/VLAN/MPLS.
type NetworkProto uint8

const (
	NetworkNone NetworkProto = iota
	NetworkARP
	NetworkIPv4
	NetworkIPv6
)

// TransportProto names the layer directly above IPv4/IPv6.
type TransportProto uint8

const (
	TransportNone TransportProto = iota
	TransportICMP
	TransportICMPv6
	TransportUDP
	TransportTCP
	TransportL2TP
)

// PayloadKind names what a UDP (or PPPoE session) payload appears to carry.
// It is a classification hint for the interface control layer, not a
// guarantee the payload actually parses as claimed.
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadBBL
	PayloadDHCP
	PayloadDHCPv6
	PayloadPPPoEDiscovery
	PayloadPPPoESession
	PayloadISIS
	PayloadOSPF
	PayloadLawfulIntercept
	PayloadUnknown
)

// Packet is a decoded view over a caller-owned buffer. It borrows slices of
// that buffer; it does not own or copy the underlying bytes except where a
// fixed-size header struct has already extracted scalar fields.
type Packet struct {
	Eth Ethernet

	MPLSLabels [maxMPLSLabels]MPLSLabel
	MPLSCount  int

	Network NetworkProto
	ARP     ARP
	IPv4    IPv4
	IPv6    IPv6

	Transport  TransportProto
	ICMP       ICMPEcho
	ICMPv6Type uint8
	UDP        UDP

	Payload PayloadKind
	BBL     BBLHeader

	// RawPayload is whatever bytes remain after the most specific layer
	// this decoder understood on its own; external handlers (DHCP, PPPoE,
	// PPP, IS-IS, OSPF, L2TP control, TCP, ND) take over from here.
	RawPayload []byte
}
