// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package codec encodes and decodes the layered packet chain the emulator
// speaks on the wire: Ethernet -> (VLAN/QinQ/MPLS) -> (ARP|IPv4|IPv6) ->
// (ICMP|ICMPv6|UDP|TCP|L2TPv2) -> (BBL test payload|DHCP|PPPoE|IS-IS|OSPF).
//
// Decode and Encode are purely functional over caller-provided buffers: no
// allocation happens in the hot path. A decoded Packet borrows slices of the
// input buffer; it is a view, not an owner.
package codec

import (
	"errors"
	"fmt"
)

var (
	errShortFrame = errors.New("frame too short for layer")
	errBadVersion = errors.New("unrecognized ip version after label stack")
)

// Result tags the outcome of a Decode call.
type Result int

const (
	// Success means the frame decoded into a Packet the caller can act on.
	Success Result = iota
	// UnknownProtocol means the frame was well-formed but not of interest
	// (some layer's type/protocol field didn't match anything handled).
	// Counted, not logged per-packet, not an error.
	UnknownProtocol
	// ProtocolError means the frame was truncated or self-inconsistent.
	// Counted as an error and the packet is dropped.
	ProtocolError
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case UnknownProtocol:
		return "unknown-protocol"
	case ProtocolError:
		return "protocol-error"
	default:
		return "invalid-result"
	}
}

// DecodeError wraps a decode failure with the layer at which it occurred.
type DecodeError struct {
	Layer string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode %s: %v", e.Layer, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError wraps an encode failure.
type EncodeError struct {
	Layer string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec: encode %s: %v", e.Layer, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
