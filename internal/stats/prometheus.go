// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/gwemu/internal/ifmodel"
)

// Metrics holds the Prometheus collectors exported for the stream engine.
// Constructed once at startup and registered against the default registry
// (or a caller-supplied one via RegisterWith), then updated from an Engine
// once per reconciliation tick via Update.
//
// Unlike the teacher's internal/ebpf/metrics.Metrics, every collector here
// is registered individually rather than through a custom prometheus.Collector
// wrapper: that indirection bought nothing once Update just sets gauges
// directly from the Engine's already-reconciled rates.
type Metrics struct {
	StreamsActive prometheus.Gauge

	TXPackets *prometheus.GaugeVec
	TXBytes   *prometheus.GaugeVec
	RXPackets *prometheus.GaugeVec
	RXBytes   *prometheus.GaugeVec
	RXLoss    *prometheus.GaugeVec

	TXPPS   *prometheus.GaugeVec
	RXPPS   *prometheus.GaugeVec
	TXBpsL2 *prometheus.GaugeVec
	RXBpsL2 *prometheus.GaugeVec
	RXBpsL3 *prometheus.GaugeVec

	InterfaceUnknown *prometheus.GaugeVec
}

// NewMetrics builds the collector set, labeled by stream name and
// interface name respectively.
func NewMetrics() *Metrics {
	return &Metrics{
		StreamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gwemu_streams_active",
			Help: "Number of streams currently tracked by the stats engine.",
		}),
		TXPackets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_tx_packets_total",
			Help: "Cumulative packets transmitted by a stream.",
		}, []string{"stream"}),
		TXBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_tx_bytes_total",
			Help: "Cumulative bytes transmitted by a stream.",
		}, []string{"stream"}),
		RXPackets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_rx_packets_total",
			Help: "Cumulative packets received and matched for a stream.",
		}, []string{"stream"}),
		RXBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_rx_bytes_total",
			Help: "Cumulative bytes received and matched for a stream.",
		}, []string{"stream"}),
		RXLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_rx_loss_total",
			Help: "Cumulative sequence-gap loss detected for a stream.",
		}, []string{"stream"}),
		TXPPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_tx_pps",
			Help: "Smoothed transmit packets-per-second for a stream.",
		}, []string{"stream"}),
		RXPPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_rx_pps",
			Help: "Smoothed receive packets-per-second for a stream.",
		}, []string{"stream"}),
		TXBpsL2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_tx_bps_l2",
			Help: "Smoothed transmit bits-per-second at L2 for a stream.",
		}, []string{"stream"}),
		RXBpsL2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_rx_bps_l2",
			Help: "Smoothed receive bits-per-second at L2 for a stream.",
		}, []string{"stream"}),
		RXBpsL3: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_stream_rx_bps_l3",
			Help: "Smoothed receive bits-per-second at L3 for a stream.",
		}, []string{"stream"}),
		InterfaceUnknown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gwemu_interface_unknown_total",
			Help: "Frames an interface could not classify or route to a handler.",
		}, []string{"interface"}),
	}
}

// RegisterWith registers every collector against reg.
func (m *Metrics) RegisterWith(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.StreamsActive,
		m.TXPackets, m.TXBytes, m.RXPackets, m.RXBytes, m.RXLoss,
		m.TXPPS, m.RXPPS, m.TXBpsL2, m.RXBpsL2, m.RXBpsL3,
		m.InterfaceUnknown,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Update sets every gauge from e's tracked streams and ifaces' counters,
// intended to run immediately after Engine.Reconcile each tick.
func (m *Metrics) Update(e *Engine, ifaceNames map[*ifmodel.NetworkInterface]string) {
	m.StreamsActive.Set(float64(len(e.streams)))

	for s, entry := range e.streams {
		label := prometheus.Labels{"stream": s.Name}
		m.TXPackets.With(label).Set(float64(s.TX.Packets))
		m.TXBytes.With(label).Set(float64(s.TX.Bytes))
		m.RXPackets.With(label).Set(float64(s.RX.Packets))
		m.RXBytes.With(label).Set(float64(s.RX.Bytes))
		m.RXLoss.With(label).Set(float64(s.RX.Loss))
		m.TXPPS.With(label).Set(entry.txPackets.rate)
		m.RXPPS.With(label).Set(entry.rxPackets.rate)
		m.TXBpsL2.With(label).Set(entry.txBytes.rate * 8)
		m.RXBpsL2.With(label).Set(entry.rxBytes.rate * 8)
		m.RXBpsL3.With(label).Set(e.Snapshot(s).RXBpsL3)
	}

	for ni, name := range ifaceNames {
		m.InterfaceUnknown.With(prometheus.Labels{"interface": name}).Set(float64(ni.Counters.Snapshot().Unknown))
	}
}
