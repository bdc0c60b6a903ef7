// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package stats reconciles the emulator's raw, single-writer hot-path
// counters into exponentially-smoothed rates once per second, and renders
// per-stream observability records and Prometheus metrics from the result.
// TX/RX loops never touch this package directly: they only bump the raw
// counters on Stream and NetworkInterface, exactly as the concurrency model
// requires.
package stats

// DefaultAlpha is the EWMA smoothing factor used when Engine is built with
// NewEngine. Higher values track the instantaneous rate more closely;
// lower values smooth out per-tick jitter at the cost of lag. 0.2 mirrors
// the smoothing weight commonly used for this kind of per-second counter
// rate and has no load-bearing precedent elsewhere in the corpus; it is an
// Open Question resolution, not a measured constant.
const DefaultAlpha = 0.2

// ewma folds one instantaneous sample into a running rate using the
// standard exponential moving average, as the reconciliation tick does for
// every counter it tracks.
func ewma(alpha, old, sample float64) float64 {
	return alpha*sample + (1-alpha)*old
}

// calculateRate computes the per-second rate between two monotonic counter
// readings, treating a current value smaller than the previous one as a
// counter reset (delta measured from zero) rather than going negative.
// Mirrors the teacher's internal/metrics.Collector.calculateRate.
func calculateRate(current, previous uint64, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	var delta uint64
	if current < previous {
		delta = current
	} else {
		delta = current - previous
	}
	return float64(delta) / elapsedSeconds
}

// shadow holds one counter's last-sync snapshot and its current EWMA rate.
type shadow struct {
	lastSync uint64
	rate     float64
}

// reconcile advances one shadow by the amount current has grown since the
// last sync, folding the per-second rate into the EWMA and returning the
// raw delta so the caller can fan it into any aggregate counters.
func (s *shadow) reconcile(alpha float64, current uint64, elapsedSeconds float64) uint64 {
	var delta uint64
	if current >= s.lastSync {
		delta = current - s.lastSync
	} else {
		delta = current
	}
	s.rate = ewma(alpha, s.rate, calculateRate(current, s.lastSync, elapsedSeconds))
	s.lastSync = current
	return delta
}
