// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package stream

import "time"

// CanSend reports whether s may transmit right now: global init phase is
// over, traffic is enabled, the stream has not been stopped, and either it
// has no session binding
// (raw) or its session satisfies the per-access-type, per-Kind address
// prerequisites.
func CanSend(s *Stream, initPhaseOver, trafficEnabled bool) bool {
	if !initPhaseOver || !trafficEnabled || s.stopped {
		return false
	}
	if s.Session == nil {
		return s.Interface != nil
	}
	if !s.Session.Established() {
		return false
	}
	return addressPrerequisitesMet(s)
}

func addressPrerequisitesMet(s *Stream) bool {
	sess := s.Session
	switch s.Encap {
	case AccessPPPoE, L2TPTunnel, A10NSPCrossConnect:
		switch s.Kind {
		case KindIPv4:
			return sess.IPCPOpened()
		case KindIPv6:
			return sess.IP6CPOpened() && sess.RAReceived() && sess.IPv6Address() != nil
		case KindIPv6PD:
			return sess.IP6CPOpened() && sess.RAReceived() && sess.IPv6DelegatedPrefix() != nil && sess.DHCPv6Bound()
		}
	case AccessIPoE:
		switch s.Kind {
		case KindIPv4:
			return sess.IPv4Address() != nil
		case KindIPv6:
			return sess.RAReceived() && sess.IPv6Address() != nil
		case KindIPv6PD:
			return sess.RAReceived() && sess.IPv6DelegatedPrefix() != nil && sess.DHCPv6Bound()
		}
	}
	return false
}

// GateTransition clears a stream's cached template and in-window counter
// when the sendability gate closes after having been open, per spec: a
// closed gate invalidates any built template rather than leaving it to be
// reused with stale addressing once the gate reopens.
func GateTransition(s *Stream, wasOpen, isOpen bool) {
	if wasOpen && !isOpen {
		s.txBuf = nil
		s.txLen = 0
		s.windowN = 0
		s.windowT0 = time.Time{}
	}
}
