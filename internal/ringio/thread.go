// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ringio

import (
	"time"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/ifctrl"
	"grimm.is/gwemu/internal/ifmodel"
	"grimm.is/gwemu/internal/rxmatch"
	"grimm.is/gwemu/internal/stream"
	"grimm.is/gwemu/internal/txq"
)

// idlePoll is the nanosleep interval a worker backs off to between empty
// polls, per spec's "short nanosleep (~10 microseconds) between empty
// polls" discipline. Real scheduling granularity on most kernels is
// coarser than this; it is a ceiling on latency, not a promise of it.
const idlePoll = 10 * time.Microsecond

// MaxPPIPerTick caps how many packets a single TX burst emits per stream
// before moving to the next, bounding how long one worker iteration can
// run when a single stream falls behind.
const MaxPPIPerTick = 64

// RXThread owns one ingress Handle, draining it continuously: test
// packets (anything internal/rxmatch recognizes as BBL) update the
// matched stream's RX state in place; everything else crosses the SPSC
// ring to the main loop's ifctrl.Controller.
type RXThread struct {
	NI      *ifmodel.NetworkInterface
	Handle  Handle
	Table   *rxmatch.Table
	ToMain  *txq.Ring // control frames handed to the main thread
	Capture FrameCapture // optional pcap mirror, nil when capture is off

	active bool
	scratch [maxFrameSize]byte
}

// NewRXThread builds an RXThread bound to an interface's ingress handle.
func NewRXThread(ni *ifmodel.NetworkInterface, handle Handle, table *rxmatch.Table, toMain *txq.Ring) *RXThread {
	return &RXThread{NI: ni, Handle: handle, Table: table, ToMain: toMain}
}

// Run drains Handle until Stop is called, polling with a short backoff
// when nothing is queued.
func (t *RXThread) Run() {
	t.active = true
	for t.active {
		if !t.drainOne() {
			time.Sleep(idlePoll)
		}
	}
}

// Stop requests Run's loop exit at the top of its next iteration.
func (t *RXThread) Stop() { t.active = false }

// drainOne processes at most one received frame, reporting whether it did.
func (t *RXThread) drainOne() bool {
	frame, ok, err := t.Handle.Recv(t.scratch[:])
	if err != nil {
		t.NI.Counters.RXErrors++
		return true
	}
	if !ok {
		return false
	}

	t.NI.Counters.AddRX(len(frame.Data))
	if t.Capture != nil {
		_ = t.Capture.WriteFrame(frame.Data, frame.Timestamp, true)
	}

	var pkt codec.Packet
	result, err := codec.Decode(frame.Data, &pkt)
	if err != nil || result == codec.ProtocolError {
		t.NI.Counters.RXErrors++
		return true
	}
	if result != codec.Success {
		t.NI.Counters.Unknown++
		return true
	}

	if pkt.Payload == codec.PayloadBBL {
		if s := t.Table.Match(&pkt, frame.Timestamp); s != nil {
			if s.RX.Verified {
				s.RX.Bytes += uint64(len(frame.Data))
			}
			return true
		}
		t.NI.Counters.Unknown++
		return true
	}

	t.redirectToMain(frame.Data)
	return true
}

// redirectToMain copies a control frame onto the RX->main SPSC ring,
// counting a drop as a receive error rather than blocking: per the
// concurrency model, RX workers never block on a full ring.
func (t *RXThread) redirectToMain(data []byte) {
	if t.ToMain == nil {
		return
	}
	slot := t.ToMain.WriteSlot()
	if slot == nil {
		t.NI.Counters.RXErrors++
		return
	}
	n := copy(slot.Data[:], data)
	slot.Len = n
	slot.Timestamp = time.Now().UnixNano()
	t.ToMain.WriteNext()
}

// DrainToController is the main-thread counterpart to redirectToMain: pop
// every control frame the RX worker queued and hand it to ctrl for
// ARP/ICMP/protocol demux. Safe to call from the main loop each tick.
func DrainToController(ring *txq.Ring, ni *ifmodel.NetworkInterface, ctrl *ifctrl.Controller, sink ifctrl.Sink) {
	if ring == nil {
		return
	}
	for {
		slot := ring.ReadSlot()
		if slot == nil {
			return
		}
		var pkt codec.Packet
		result, err := codec.Decode(slot.Data[:slot.Len], &pkt)
		if err == nil && result == codec.Success {
			_ = ctrl.Handle(ni, &pkt, sink)
		} else {
			ni.Counters.RXErrors++
		}
		ring.ReadNext()
	}
}

// TXThread owns one egress Handle, burst-draining a control TXQ ahead of
// its assigned streams' pacing and issuing a single kernel Flush per
// burst, per spec's TX work ordering.
type TXThread struct {
	NI        *ifmodel.NetworkInterface
	Handle    Handle
	FromMain  *txq.Ring // control frames the main loop wants emitted first
	Worker    *stream.Worker
	Capture   FrameCapture // optional pcap mirror, nil when capture is off

	active bool
}

// NewTXThread builds a TXThread bound to an interface's egress handle and
// the worker whose streams it paces.
func NewTXThread(ni *ifmodel.NetworkInterface, handle Handle, fromMain *txq.Ring, worker *stream.Worker) *TXThread {
	return &TXThread{NI: ni, Handle: handle, FromMain: fromMain, Worker: worker}
}

// Run paces every assigned stream and drains the control ring once per
// iteration until Stop is called.
func (t *TXThread) Run() {
	t.active = true
	for t.active {
		if t.Tick(time.Now()) == 0 {
			time.Sleep(idlePoll)
		}
	}
}

// Stop requests Run's loop exit at the top of its next iteration.
func (t *TXThread) Stop() { t.active = false }

// Tick drains the control ring, then paces every assigned stream once,
// flushing the handle once if at least one frame was sent, however many
// that was. Returns the number of frames sent, for the idle-backoff decision.
func (t *TXThread) Tick(now time.Time) int {
	sent := t.drainControl()

	if t.Worker != nil {
		for _, s := range t.Worker.Streams {
			sent += s.SendIter(now, MaxPPIPerTick)
		}
	}

	if sent > 0 {
		if err := t.Handle.Flush(); err != nil {
			t.NI.Counters.TXErrors++
		}
	}
	return sent
}

func (t *TXThread) drainControl() int {
	if t.FromMain == nil {
		return 0
	}
	sent := 0
	for {
		slot := t.FromMain.ReadSlot()
		if slot == nil {
			return sent
		}
		ok, err := t.Handle.Send(slot.Data[:slot.Len])
		if err != nil {
			t.NI.Counters.TXErrors++
		} else if ok {
			t.NI.Counters.AddTX(slot.Len)
			sent++
			if t.Capture != nil {
				_ = t.Capture.WriteFrame(slot.Data[:slot.Len], time.Now(), false)
			}
		}
		t.FromMain.ReadNext()
	}
}
