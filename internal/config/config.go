// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the HCL run configuration: the network_interface
// and stream blocks that describe what the emulator should bind to and
// what traffic it should generate, decoded straight into Go structs the
// way the teacher's own internal/config decodes its firewall policy file.
package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/gwemu/internal/errors"
)

// Config is the root of one run configuration: a set of network interfaces
// to bind and a set of streams to generate across them.
type Config struct {
	Interfaces []NetworkInterfaceBlock `hcl:"network_interface,block"`
	Streams    []StreamBlock           `hcl:"stream,block"`
}

// NetworkInterfaceBlock mirrors one `network_interface "name" { ... }`
// block: a physical port binding plus its addressing.
type NetworkInterfaceBlock struct {
	Name string `hcl:"name,label"`

	Interface          string     `hcl:"interface"`
	VLAN               *int       `hcl:"vlan,optional"`
	MAC                *string    `hcl:"mac,optional"`
	GatewayMAC         *string    `hcl:"gateway_mac,optional"`
	IPv4               *IPv4Block `hcl:"ipv4,block"`
	IPv6               *IPv6Block `hcl:"ipv6,block"`
	GatewayResolveWait bool       `hcl:"gateway_resolve_wait,optional"`
	ISISAttachmentID   *int       `hcl:"isis_attachment_id,optional"`
	OSPFAttachmentID   *int       `hcl:"ospf_attachment_id,optional"`
}

// IPv4Block is the `ipv4 { ... }` nested block.
type IPv4Block struct {
	Address string `hcl:"address"`
	Len     int    `hcl:"len"`
	Gateway string `hcl:"gateway,optional"`
}

// IPv6Block is the `ipv6 { ... }` nested block.
type IPv6Block struct {
	Prefix  string `hcl:"prefix"`
	Gateway string `hcl:"gateway,optional"`
}

// MPLSBlock is one `tx_mpls1 { ... }`/`tx_mpls2 { ... }` label to impose.
type MPLSBlock struct {
	Label int  `hcl:"label"`
	Exp   int  `hcl:"exp,optional"`
	TTL   *int `hcl:"ttl,optional"`
}

// StreamBlock mirrors one `stream "name" { ... }` block: a test traffic
// flow's template and pacing configuration.
type StreamBlock struct {
	Name string `hcl:"name,label"`

	Interface     string `hcl:"interface"`
	StreamGroupID int    `hcl:"stream_group_id,optional"`
	Type          string `hcl:"type"`
	Direction     string `hcl:"direction"`
	PPS           float64 `hcl:"pps"`
	Length        int     `hcl:"length"`

	Priority     *int `hcl:"priority,optional"`
	VLANPriority *int `hcl:"vlan_priority,optional"`
	SrcPort      *int `hcl:"src_port,optional"`
	DstPort      *int `hcl:"dst_port,optional"`

	IPv4DestinationAddress *string `hcl:"ipv4_destination_address,optional"`
	IPv4NetworkAddress     *string `hcl:"ipv4_network_address,optional"`
	IPv4AccessSrcAddress   *string `hcl:"ipv4_access_src_address,optional"`
	IPv6DestinationAddress *string `hcl:"ipv6_destination_address,optional"`
	IPv6NetworkAddress     *string `hcl:"ipv6_network_address,optional"`
	IPv6AccessSrcAddress   *string `hcl:"ipv6_access_src_address,optional"`

	TXMPLS1 *MPLSBlock `hcl:"tx_mpls1,block"`
	TXMPLS2 *MPLSBlock `hcl:"tx_mpls2,block"`

	RXMPLS1Label *int `hcl:"rx_mpls1_label,optional"`
	RXMPLS2Label *int `hcl:"rx_mpls2_label,optional"`

	StartDelay *float64 `hcl:"start_delay,optional"`
	MaxPackets *int     `hcl:"max_packets,optional"`
	IPv4DF     bool     `hcl:"ipv4_df,optional"`

	// Metadata accepts any HCL value under `metadata = { ... }`, for
	// operator-attached free-form annotations (a test-case ID, a vendor
	// sub-option) that this package has no fixed schema for. Mirrors the
	// teacher's `ebpf.go` opaque `Config cty.Value` field.
	Metadata cty.Value `hcl:"metadata,optional"`
}

// Load reads and decodes the HCL configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "read config file")
	}
	return Parse(path, data)
}

// Parse decodes HCL source already read into memory, for callers (tests,
// embedded configs) that don't have a file on disk.
func Parse(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "decode config")
	}
	return &cfg, nil
}
