// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"net"
	"time"

	ctyjson "github.com/zclconf/go-cty/cty/json"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/ifmodel"
	"grimm.is/gwemu/internal/stream"
)

// BuildInterfaces translates every network_interface block into a
// NetworkInterface, keyed by its configured name. It does not touch the
// kernel: binding a NetworkInterface to a real port/ring is
// internal/ringio's and internal/orchestrate's job.
func BuildInterfaces(cfg *Config) (map[string]*ifmodel.NetworkInterface, error) {
	out := make(map[string]*ifmodel.NetworkInterface, len(cfg.Interfaces))
	seen := make(map[string]string, len(cfg.Interfaces))
	for _, block := range cfg.Interfaces {
		ni, err := buildInterface(block)
		if err != nil {
			return nil, fmt.Errorf("network_interface %q: %w", block.Name, err)
		}
		key := fmt.Sprintf("%s/%d", ni.PhysicalPort, ni.VLAN)
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("network_interface %q: vlan %d on %q already used by %q", block.Name, ni.VLAN, ni.PhysicalPort, other)
		}
		seen[key] = block.Name
		out[block.Name] = ni
	}
	return out, nil
}

func buildInterface(block NetworkInterfaceBlock) (*ifmodel.NetworkInterface, error) {
	var mac net.HardwareAddr
	if block.MAC != nil {
		parsed, err := net.ParseMAC(*block.MAC)
		if err != nil {
			return nil, fmt.Errorf("mac: %w", err)
		}
		mac = parsed
	}

	vlan := 0
	if block.VLAN != nil {
		vlan = *block.VLAN
	}

	ni := ifmodel.New(block.Name, block.Interface, uint16(vlan), mac)
	ni.GatewayResolveWait = block.GatewayResolveWait

	if block.GatewayMAC != nil {
		gw, err := net.ParseMAC(*block.GatewayMAC)
		if err != nil {
			return nil, fmt.Errorf("gateway_mac: %w", err)
		}
		ni.PeerMAC = gw
	}

	if block.IPv4 != nil {
		ip := net.ParseIP(block.IPv4.Address).To4()
		if ip == nil {
			return nil, fmt.Errorf("ipv4.address %q is not a valid IPv4 address", block.IPv4.Address)
		}
		ni.IPv4 = ip
		if block.IPv4.Gateway != "" {
			gw := net.ParseIP(block.IPv4.Gateway).To4()
			if gw == nil {
				return nil, fmt.Errorf("ipv4.gateway %q is not a valid IPv4 address", block.IPv4.Gateway)
			}
			ni.IPv4Gateway = gw
		}
	}

	if block.IPv6 != nil {
		addr, _, err := net.ParseCIDR(block.IPv6.Prefix)
		if err != nil {
			ip := net.ParseIP(block.IPv6.Prefix)
			if ip == nil {
				return nil, fmt.Errorf("ipv6.prefix %q is not a valid IPv6 address or prefix", block.IPv6.Prefix)
			}
			addr = ip
		}
		ni.IPv6 = addr
		if block.IPv6.Gateway != "" {
			gw := net.ParseIP(block.IPv6.Gateway)
			if gw == nil {
				return nil, fmt.Errorf("ipv6.gateway %q is not a valid IPv6 address", block.IPv6.Gateway)
			}
			ni.IPv6Gateway = gw
		}
	}

	return ni, nil
}

// BuildStreams translates every stream block into a raw Stream bound to
// its named interface. Session-bound streams (encapsulation modes other
// than Raw) require a PPPoE/IPoE access-session subsystem this package
// does not build; every stream produced here is Encap: stream.Raw with a
// nil Session, matching a raw downstream/upstream test flow directly on a
// NetworkInterface.
func BuildStreams(cfg *Config, interfaces map[string]*ifmodel.NetworkInterface) ([]*stream.Stream, error) {
	out := make([]*stream.Stream, 0, len(cfg.Streams))
	for i, block := range cfg.Streams {
		s, err := buildStream(uint64(i+1), block, interfaces)
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", block.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func buildStream(flowID uint64, block StreamBlock, interfaces map[string]*ifmodel.NetworkInterface) (*stream.Stream, error) {
	kind, err := parseKind(block.Type)
	if err != nil {
		return nil, err
	}
	dir, err := parseDirection(block.Direction)
	if err != nil {
		return nil, err
	}

	ni, ok := interfaces[block.Interface]
	if !ok {
		return nil, fmt.Errorf("references undefined interface %q", block.Interface)
	}

	s := stream.New(flowID, block.Name, kind, dir)
	s.Interface = ni
	s.PPS = block.PPS
	s.Length = block.Length

	if block.Priority != nil {
		s.TOS = uint8(*block.Priority)
	}
	if block.VLANPriority != nil {
		s.VLANPCP = uint8(*block.VLANPriority)
	}
	if block.StartDelay != nil {
		s.StartDelay = time.Duration(*block.StartDelay * float64(time.Second))
	}
	if block.MaxPackets != nil {
		s.MaxPackets = uint64(*block.MaxPackets)
	}

	if err := applyOverrides(s, block); err != nil {
		return nil, err
	}
	if err := applyMPLS(s, block); err != nil {
		return nil, err
	}

	if !block.Metadata.IsNull() && block.Metadata.IsKnown() {
		encoded, err := ctyjson.Marshal(block.Metadata, block.Metadata.Type())
		if err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
		s.Metadata = string(encoded)
	}

	return s, nil
}

func applyOverrides(s *stream.Stream, block StreamBlock) error {
	dst := block.IPv4DestinationAddress
	if s.Kind != stream.KindIPv4 {
		dst = block.IPv6DestinationAddress
	}
	if dst != nil {
		ip := net.ParseIP(*dst)
		if ip == nil {
			return fmt.Errorf("destination address %q is not valid", *dst)
		}
		s.Overrides.DestIP = ip
	}

	src := block.IPv4AccessSrcAddress
	if s.Kind != stream.KindIPv4 {
		src = block.IPv6AccessSrcAddress
	}
	if src != nil {
		ip := net.ParseIP(*src)
		if ip == nil {
			return fmt.Errorf("access src address %q is not valid", *src)
		}
		s.Overrides.SrcIP = ip
		s.Overrides.AccessSource = true
	}

	return nil
}

func applyMPLS(s *stream.Stream, block StreamBlock) error {
	if block.TXMPLS1 != nil {
		s.TXLabels = append(s.TXLabels, mplsFromBlock(*block.TXMPLS1))
	}
	if block.TXMPLS2 != nil {
		s.TXLabels = append(s.TXLabels, mplsFromBlock(*block.TXMPLS2))
	}
	if block.RXMPLS1Label != nil {
		v := uint32(*block.RXMPLS1Label)
		s.RXExpectedMPLS[0] = &v
	}
	if block.RXMPLS2Label != nil {
		v := uint32(*block.RXMPLS2Label)
		s.RXExpectedMPLS[1] = &v
	}
	return nil
}

func mplsFromBlock(b MPLSBlock) codec.MPLSLabel {
	ttl := 255
	if b.TTL != nil {
		ttl = *b.TTL
	}
	return codec.MPLSLabel{
		Label: uint32(b.Label),
		Exp:   uint8(b.Exp),
		TTL:   uint8(ttl),
	}
}

func parseKind(t string) (stream.Kind, error) {
	switch t {
	case "IPv4":
		return stream.KindIPv4, nil
	case "IPv6":
		return stream.KindIPv6, nil
	case "IPv6-PD":
		return stream.KindIPv6PD, nil
	default:
		return 0, fmt.Errorf("type %q must be one of IPv4, IPv6, IPv6-PD", t)
	}
}

func parseDirection(d string) (stream.Direction, error) {
	switch d {
	case "up":
		return stream.Up, nil
	case "down":
		return stream.Down, nil
	default:
		return 0, fmt.Errorf("direction %q must be up or down", d)
	}
}
