// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
network_interface "access0" {
  interface   = "eth0"
  vlan        = 100
  mac         = "02:00:00:00:00:01"
  gateway_mac = "02:00:00:00:00:02"

  ipv4 {
    address = "10.0.0.1"
    len     = 24
    gateway = "10.0.0.2"
  }

  ipv6 {
    prefix  = "2001:db8::1/64"
    gateway = "2001:db8::2"
  }

  gateway_resolve_wait = true
}

stream "up-1" {
  interface = "access0"
  type      = "IPv4"
  direction = "up"
  pps       = 1000
  length    = 128

  priority      = 46
  vlan_priority = 5

  ipv4_destination_address = "203.0.113.1"

  tx_mpls1 {
    label = 100
    exp   = 3
  }

  rx_mpls1_label = 200

  start_delay = 2.5
  max_packets = 10000
}
`

func TestParseDecodesInterfacesAndStreams(t *testing.T) {
	cfg, err := Parse("test.hcl", []byte(sampleConfig))
	require.NoError(t, err)
	require.Len(t, cfg.Interfaces, 1)
	require.Len(t, cfg.Streams, 1)

	iface := cfg.Interfaces[0]
	require.Equal(t, "access0", iface.Name)
	require.Equal(t, "eth0", iface.Interface)
	require.NotNil(t, iface.VLAN)
	require.Equal(t, 100, *iface.VLAN)
	require.NotNil(t, iface.IPv4)
	require.Equal(t, "10.0.0.1", iface.IPv4.Address)
	require.NotNil(t, iface.IPv6)
	require.True(t, iface.GatewayResolveWait)

	st := cfg.Streams[0]
	require.Equal(t, "up-1", st.Name)
	require.Equal(t, "access0", st.Interface)
	require.Equal(t, 1000.0, st.PPS)
	require.NotNil(t, st.TXMPLS1)
	require.Equal(t, 100, st.TXMPLS1.Label)
	require.NotNil(t, st.RXMPLS1Label)
	require.Equal(t, 200, *st.RXMPLS1Label)
}

func TestParseDecodesOpaqueStreamMetadata(t *testing.T) {
	cfg, err := Parse("test.hcl", []byte(`
stream "up-1" {
  interface = "access0"
  type      = "IPv4"
  direction = "up"
  pps       = 1000
  length    = 128

  metadata = {
    case_id = "TC-42"
    retries = 3
  }
}`))
	require.NoError(t, err)
	require.Len(t, cfg.Streams, 1)
	require.False(t, cfg.Streams[0].Metadata.IsNull())
}

func TestParseRejectsMissingRequiredField(t *testing.T) {
	_, err := Parse("test.hcl", []byte(`stream "bad" {
  interface = "access0"
  type      = "IPv4"
  direction = "up"
  length    = 128
}`))
	require.Error(t, err)
}
