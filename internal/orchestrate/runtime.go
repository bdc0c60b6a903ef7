// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package orchestrate wires every other package together into a running
// emulator: it builds interfaces and streams from a parsed configuration,
// binds each interface's I/O handles, starts its RX/TX workers, and drives
// the periodic rate-reconciliation and control-frame-drain work from a
// single timer wheel, per spec's interface-startup and concurrency model.
package orchestrate

import (
	"fmt"
	"net"
	"time"

	"grimm.is/gwemu/internal/config"
	"grimm.is/gwemu/internal/handlers"
	"grimm.is/gwemu/internal/ifctrl"
	"grimm.is/gwemu/internal/ifmodel"
	"grimm.is/gwemu/internal/logging"
	"grimm.is/gwemu/internal/netiface"
	"grimm.is/gwemu/internal/netutil"
	"grimm.is/gwemu/internal/ringio"
	"grimm.is/gwemu/internal/rxmatch"
	"grimm.is/gwemu/internal/stats"
	"grimm.is/gwemu/internal/stream"
	"grimm.is/gwemu/internal/timerwheel"
	"grimm.is/gwemu/internal/txq"
)

// Options configures one Runtime's startup.
type Options struct {
	// Mode selects the I/O backend every interface binds, unless overridden
	// per-interface by a future config extension. ModeDisabled is the
	// right choice for loopback scenario tests.
	Mode ringio.Mode

	// Workers is the number of entries in Pool's PPS reservation ledger that
	// streams are credited to. It does not add goroutines: every stream
	// sends through its NetworkInterface's single TXThread either way. Zero
	// leaves Pool empty and credits nothing.
	Workers int

	// Alpha overrides internal/stats's default EWMA smoothing factor; zero
	// means use stats.DefaultAlpha.
	Alpha float64

	Logger *logging.Logger

	// Capture, when non-nil, receives a copy of every frame every bound
	// interface sends or receives, for pcap recording.
	Capture ringio.FrameCapture
}

func (o Options) withDefaults() Options {
	if o.Alpha == 0 {
		o.Alpha = stats.DefaultAlpha
	}
	if o.Logger == nil {
		o.Logger = logging.New(logging.DefaultConfig())
	}
	return o
}

// binding holds one NetworkInterface's RX/TX handles and the goroutines
// draining/pacing them.
type binding struct {
	ni   *ifmodel.NetworkInterface
	rx   ringio.Handle
	tx   ringio.Handle
	toMain *txq.Ring

	rxThread *ringio.RXThread
	txThread *ringio.TXThread
}

// Runtime holds every live component of one running emulation: the bound
// interfaces, the streams generating traffic across them, and the shared
// control-plane/reconciliation machinery.
type Runtime struct {
	opts Options

	Interfaces map[string]*ifmodel.NetworkInterface
	Streams    []*stream.Stream

	Table   *rxmatch.Table
	Control *ifctrl.Controller
	Pool    *stream.Pool
	Stats   *stats.Engine
	Metrics *stats.Metrics
	Wheel   *timerwheel.Wheel

	bindings map[string]*binding
	running  bool
}

// New builds (but does not start) a Runtime from cfg, binding every
// configured interface's I/O handle in opts.Mode and, when opts.Workers > 0,
// crediting every stream to the least-loaded entry of Pool. In ring and raw
// modes an interface configured without a mac takes its physical port's
// kernel MAC (and the link-local derived from it) before any template is
// built.
func New(cfg *config.Config, dispatch handlers.Dispatch, opts Options) (*Runtime, error) {
	opts = opts.withDefaults()

	interfaces, err := config.BuildInterfaces(cfg)
	if err != nil {
		return nil, fmt.Errorf("build interfaces: %w", err)
	}
	if opts.Mode != ringio.ModeDisabled {
		for _, ni := range interfaces {
			if ni.OwnMAC != nil {
				continue
			}
			if link, lerr := netiface.Resolve(ni.PhysicalPort); lerr == nil && len(link.MAC) == 6 {
				ni.OwnMAC = link.MAC
				ni.IPv6LinkLocal = netutil.LinkLocalFromMAC(link.MAC)
			}
		}
	}
	streams, err := config.BuildStreams(cfg, interfaces)
	if err != nil {
		return nil, fmt.Errorf("build streams: %w", err)
	}
	for _, s := range streams {
		if err := stream.BuildTemplate(s); err != nil {
			return nil, fmt.Errorf("build template for stream %q: %w", s.Name, err)
		}
	}

	rt := &Runtime{
		opts:       opts,
		Interfaces: interfaces,
		Streams:    streams,
		Table:      rxmatch.New(),
		Control:    ifctrl.New(dispatch),
		Pool:       stream.NewPool(opts.Workers),
		Stats:      stats.NewEngineWithAlpha(opts.Alpha),
		Metrics:    stats.NewMetrics(),
		Wheel:      timerwheel.New(),
		bindings:   make(map[string]*binding),
	}

	for _, s := range streams {
		rt.Table.Register(s)
		rt.Stats.Track(s)
		if s.Metadata != "" {
			opts.Logger.Debug("stream metadata", "stream", s.Name, "metadata", s.Metadata)
		}
	}

	for name, ni := range interfaces {
		b, err := rt.bind(name, ni, opts.Mode)
		if err != nil {
			return nil, fmt.Errorf("bind interface %q: %w", name, err)
		}
		rt.bindings[name] = b
		if ni.GatewayResolveWait {
			ni.ArmPending(ifmodel.PendingARPRequest | ifmodel.PendingNSRequest)
		}
	}

	rt.assignSinks()

	return rt, nil
}

func (rt *Runtime) bind(name string, ni *ifmodel.NetworkInterface, mode ringio.Mode) (*binding, error) {
	var rx, tx ringio.Handle
	var err error

	switch mode {
	case ringio.ModeDisabled:
		rx, tx = NewDisabledInterfacePair()
	case ringio.ModeRing:
		rx, err = ringio.NewRingHandle(ni.PhysicalPort, ringio.DirectionIngress)
		if err != nil {
			return nil, err
		}
		tx, err = ringio.NewRingHandle(ni.PhysicalPort, ringio.DirectionEgress)
		if err != nil {
			rx.Close()
			return nil, err
		}
	case ringio.ModeRaw:
		ifi, ierr := net.InterfaceByName(ni.PhysicalPort)
		if ierr != nil {
			return nil, ierr
		}
		rx, err = ringio.NewRawHandle(ifi, ringio.DirectionIngress)
		if err != nil {
			return nil, err
		}
		tx, err = ringio.NewRawHandle(ifi, ringio.DirectionEgress)
		if err != nil {
			rx.Close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown io mode %d", mode)
	}

	ni.RX = rx
	ni.TX = tx

	toMain := txq.New(256)
	b := &binding{ni: ni, rx: rx, tx: tx, toMain: toMain}
	b.rxThread = ringio.NewRXThread(ni, rx, rt.Table, toMain)
	b.rxThread.Capture = rt.opts.Capture
	return b, nil
}

// NewDisabledInterfacePair builds an in-memory loopback RX/TX handle pair
// for a single interface: its own TX feeds its own RX, so packets it
// sends are the packets it receives, matching a physical loopback cable.
func NewDisabledInterfacePair() (rx, tx ringio.Handle) {
	tx, rx = ringio.NewDisabledPair()
	return rx, tx
}

// assignSinks binds every raw stream directly to its NetworkInterface's TX
// handle (through a CapturingSink when opts.Capture is set), and, when
// opts.Workers > 0, also credits the stream to Pool's ledger.
func (rt *Runtime) assignSinks() {
	for _, s := range rt.Streams {
		if s.Interface == nil {
			continue
		}
		if rt.opts.Workers > 0 {
			rt.Pool.Assign(s)
		}
		if s.Interface.TX != nil {
			if h, ok := s.Interface.TX.(ringio.Handle); ok {
				sink := ringio.RingSink{Handle: h}
				if rt.opts.Capture != nil {
					s.Sink = ringio.CapturingSink{Sink: sink, Capture: rt.opts.Capture}
				} else {
					s.Sink = sink
				}
			}
		}
	}
}

// Start launches every interface's RX/TX worker goroutines and the shared
// timer wheel driving rate reconciliation and control-frame draining. It
// returns once everything is running; Stop tears it all down.
func (rt *Runtime) Start() {
	if rt.running {
		return
	}
	rt.running = true

	for _, b := range rt.bindings {
		go b.rxThread.Run()

		// Every stream bound to this interface paces through one TXThread,
		// regardless of how opts.Workers balances Pool's PPS bookkeeping:
		// a NetworkInterface's TX handle is not safe for concurrent
		// Send/Flush from more than one goroutine, so worker balancing
		// only ever informs load reporting here, not goroutine topology.
		b.ni.TXRing = txq.New(256)
		tx := ringio.NewTXThread(b.ni, b.tx, b.ni.TXRing, nil)
		tx.Capture = rt.opts.Capture
		b.txThread = tx
		worker := &stream.Worker{ID: -1}
		for _, s := range rt.Streams {
			if s.Interface == b.ni {
				worker.Streams = append(worker.Streams, s)
			}
		}
		tx.Worker = worker
		go tx.Run()
	}

	rt.Wheel.AddPeriodic("reconcile", 1, 0, nil, func(now time.Time, _ any) {
		rt.Stats.Reconcile(now)
		names := make(map[*ifmodel.NetworkInterface]string, len(rt.Interfaces))
		for name, ni := range rt.Interfaces {
			names[ni] = name
		}
		rt.Metrics.Update(rt.Stats, names)
	})
	rt.Wheel.AddPeriodic("drain-control", 0, 10_000_000, nil, func(now time.Time, _ any) {
		for _, b := range rt.bindings {
			ringio.DrainToController(b.toMain, b.ni, rt.Control, stream.RingSink{Ring: b.ni.TXRing})
		}
	})

	go rt.Wheel.Run()
}

// Stop halts every RX/TX worker and the timer wheel, and closes every
// bound I/O handle.
func (rt *Runtime) Stop() {
	if !rt.running {
		return
	}
	rt.running = false

	rt.Wheel.Stop()
	for _, b := range rt.bindings {
		b.rxThread.Stop()
		if b.txThread != nil {
			b.txThread.Stop()
		}
		b.rx.Close()
		b.tx.Close()
	}
}
