// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import "encoding/binary"

// EncodeIPv6ICMPRaw wraps an already-built ICMPv6 message (e.g. a Neighbor
// Advertisement from github.com/mdlayher/ndp) in Ethernet/IPv6, computing
// and patching its checksum in place. Used by the interface control layer
// for ND messages, which carry option TLVs the codec's own ICMPEcho type
// has no business modeling.
func EncodeIPv6ICMPRaw(buf []byte, eth Ethernet, ipv6 IPv6, icmpBody []byte) (int, error) {
	eth.EtherType = EtherTypeIPv6
	off, err := encodeEthernet(buf, &eth)
	if err != nil {
		return 0, &EncodeError{Layer: "ethernet", Err: err}
	}

	ipv6.NextHeader = ProtoICMPv6
	n, err := encodeIPv6(buf[off:], &ipv6, len(icmpBody))
	if err != nil {
		return 0, &EncodeError{Layer: "ipv6", Err: err}
	}
	off += n

	body := buf[off : off+len(icmpBody)]
	copy(body, icmpBody)
	binary.BigEndian.PutUint16(body[2:4], 0)
	pseudoSum := pseudoHeaderSumV6(ipv6.SrcIP, ipv6.DstIP, ProtoICMPv6, len(icmpBody))
	csum := foldChecksum(pseudoSum, body)
	binary.BigEndian.PutUint16(body[2:4], csum)

	return off + len(icmpBody), nil
}
