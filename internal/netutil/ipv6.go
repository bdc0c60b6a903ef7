// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import "net"

// LinkLocalFromMAC derives the modified-EUI-64 IPv6 link-local address for
// mac, per RFC 4291: fe80::<mac[0]^02><mac[1]>:<mac[2]>ff:fe<mac[3]>:<mac[4:6]>.
func LinkLocalFromMAC(mac net.HardwareAddr) net.IP {
	if len(mac) != 6 {
		return nil
	}
	ip := make(net.IP, 16)
	ip[0], ip[1] = 0xfe, 0x80
	ip[8] = mac[0] ^ 0x02
	ip[9] = mac[1]
	ip[10] = mac[2]
	ip[11] = 0xff
	ip[12] = 0xfe
	ip[13] = mac[3]
	ip[14] = mac[4]
	ip[15] = mac[5]
	return ip
}

// MulticastMAC derives the IPv4-multicast destination MAC for dst, which
// must be in 224.0.0.0/4: 01:00:5e:(b2&0x7f):b3:b4.
func MulticastMAC(dst net.IP) net.HardwareAddr {
	v4 := dst.To4()
	if v4 == nil {
		return nil
	}
	return net.HardwareAddr{0x01, 0x00, 0x5e, v4[1] & 0x7f, v4[2], v4[3]}
}

// IsMulticastIPv4 reports whether ip falls in 224.0.0.0/4.
func IsMulticastIPv4(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	return v4[0]&0xf0 == 0xe0
}
