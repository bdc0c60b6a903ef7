// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrate

import (
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingDUT sends a single unprivileged ICMP echo to target and reports its
// round-trip time, used as a startup sanity check that the device under
// test is reachable before a run commits to generating traffic against it.
var PingDUT = func(target string, timeout time.Duration) (time.Duration, error) {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return 0, fmt.Errorf("create pinger for %s: %w", target, err)
	}

	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		return 0, fmt.Errorf("ping %s: %w", target, err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("no reply from %s", target)
	}
	return stats.AvgRtt, nil
}

// Preflight pings every configured gateway before a run starts, logging
// unreachable gateways rather than failing the run outright: a gateway
// that hasn't resolved an ARP/ND reply yet is expected at cold start, not
// necessarily broken.
func (rt *Runtime) Preflight(timeout time.Duration) map[string]error {
	results := make(map[string]error, len(rt.Interfaces))
	for name, ni := range rt.Interfaces {
		target := ni.IPv4Gateway
		if target == nil {
			target = ni.IPv6Gateway
		}
		if target == nil {
			continue
		}
		_, err := PingDUT(target.String(), timeout)
		results[name] = err
	}
	return results
}
