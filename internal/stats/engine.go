// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package stats

import (
	"time"

	"grimm.is/gwemu/internal/handlers"
	"grimm.is/gwemu/internal/ifmodel"
	"grimm.is/gwemu/internal/stream"
)

// aggregate accumulates deltas fanned in from every stream bound to one
// interface or session, tracking its own EWMA rate over the accumulated
// total exactly as a stream does over its own raw counters.
type aggregate struct {
	TXPackets, TXBytes uint64
	RXPackets, RXBytes uint64
	RXLoss             uint64

	txPackets, txBytes shadow
	rxPackets, rxBytes shadow
}

// TXPPS, RXPPS, TXBpsL2 and RXBpsL2 are the aggregate's current
// exponentially-smoothed rates.
func (a *aggregate) TXPPS() float64    { return a.txPackets.rate }
func (a *aggregate) RXPPS() float64    { return a.rxPackets.rate }
func (a *aggregate) TXBpsL2() float64  { return a.txBytes.rate * 8 }
func (a *aggregate) RXBpsL2() float64  { return a.rxBytes.rate * 8 }

func (a *aggregate) reconcile(alpha float64, elapsed float64) {
	a.txPackets.reconcile(alpha, a.TXPackets, elapsed)
	a.txBytes.reconcile(alpha, a.TXBytes, elapsed)
	a.rxPackets.reconcile(alpha, a.RXPackets, elapsed)
	a.rxBytes.reconcile(alpha, a.RXBytes, elapsed)
}

// streamEntry is the last-sync shadow state held for one tracked Stream.
type streamEntry struct {
	s *stream.Stream

	txPackets, txBytes         shadow
	rxPackets, rxBytes, rxLoss shadow
}

// Engine reconciles every tracked Stream's raw counters into smoothed rates
// once per second, fanning deltas into the owning NetworkInterface's and
// Session's aggregate counters. It is not safe for concurrent use: per the
// concurrency model, reconciliation runs on the single main thread that
// also drives internal/timerwheel.
type Engine struct {
	alpha float64

	streams    map[*stream.Stream]*streamEntry
	interfaces map[*ifmodel.NetworkInterface]*aggregate
	sessions   map[handlers.Session]*aggregate

	lastTick time.Time
}

// NewEngine constructs an Engine with the default smoothing factor.
func NewEngine() *Engine {
	return NewEngineWithAlpha(DefaultAlpha)
}

// NewEngineWithAlpha constructs an Engine with an explicit EWMA smoothing
// factor, for callers (tests, tuned deployments) that don't want
// DefaultAlpha.
func NewEngineWithAlpha(alpha float64) *Engine {
	return &Engine{
		alpha:      alpha,
		streams:    make(map[*stream.Stream]*streamEntry),
		interfaces: make(map[*ifmodel.NetworkInterface]*aggregate),
		sessions:   make(map[handlers.Session]*aggregate),
	}
}

// Track begins reconciling s. Safe to call more than once for the same
// stream; later calls are no-ops.
func (e *Engine) Track(s *stream.Stream) {
	if _, ok := e.streams[s]; ok {
		return
	}
	e.streams[s] = &streamEntry{s: s}
}

// Forget stops reconciling s and drops its shadow state, for streams torn
// down by reconfiguration.
func (e *Engine) Forget(s *stream.Stream) {
	delete(e.streams, s)
}

func (e *Engine) interfaceAgg(ni *ifmodel.NetworkInterface) *aggregate {
	agg, ok := e.interfaces[ni]
	if !ok {
		agg = &aggregate{}
		e.interfaces[ni] = agg
	}
	return agg
}

func (e *Engine) sessionAgg(sess handlers.Session) *aggregate {
	agg, ok := e.sessions[sess]
	if !ok {
		agg = &aggregate{}
		e.sessions[sess] = agg
	}
	return agg
}

// Interface returns the current aggregate for ni, or nil if no tracked
// stream has ever been bound to it.
func (e *Engine) Interface(ni *ifmodel.NetworkInterface) *aggregate {
	return e.interfaces[ni]
}

// SessionAggregate returns the current aggregate for sess, or nil if no
// tracked stream has ever been bound to it.
func (e *Engine) SessionAggregate(sess handlers.Session) *aggregate {
	return e.sessions[sess]
}

// Reconcile runs one reconciliation pass: for every tracked stream it
// folds the interval's instantaneous rate into the stream's EWMA, fans the
// raw delta into the owning interface's and session's aggregate, and then
// updates those aggregates' own EWMA over their new totals. Intended to be
// invoked once per second from internal/timerwheel.
func (e *Engine) Reconcile(now time.Time) {
	elapsed := 1.0
	if !e.lastTick.IsZero() {
		if d := now.Sub(e.lastTick).Seconds(); d > 0 {
			elapsed = d
		}
	}
	e.lastTick = now

	touched := make(map[*aggregate]struct{}, len(e.interfaces)+len(e.sessions))

	for s, entry := range e.streams {
		txPacketsDelta := entry.txPackets.reconcile(e.alpha, s.TX.Packets, elapsed)
		txBytesDelta := entry.txBytes.reconcile(e.alpha, s.TX.Bytes, elapsed)
		rxPacketsDelta := entry.rxPackets.reconcile(e.alpha, s.RX.Packets, elapsed)
		rxBytesDelta := entry.rxBytes.reconcile(e.alpha, s.RX.Bytes, elapsed)
		rxLossDelta := entry.rxLoss.reconcile(e.alpha, s.RX.Loss, elapsed)

		if ni := s.Interface; ni != nil {
			agg := e.interfaceAgg(ni)
			agg.TXPackets += txPacketsDelta
			agg.TXBytes += txBytesDelta
			agg.RXPackets += rxPacketsDelta
			agg.RXBytes += rxBytesDelta
			agg.RXLoss += rxLossDelta
			touched[agg] = struct{}{}
		}
		if sess := s.Session; sess != nil {
			agg := e.sessionAgg(sess)
			agg.TXPackets += txPacketsDelta
			agg.TXBytes += txBytesDelta
			agg.RXPackets += rxPacketsDelta
			agg.RXBytes += rxBytesDelta
			agg.RXLoss += rxLossDelta
			touched[agg] = struct{}{}
		}
	}

	for agg := range touched {
		agg.reconcile(e.alpha, elapsed)
	}
}
