// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package stream

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grimm.is/gwemu/internal/codec"
	"grimm.is/gwemu/internal/ifmodel"
)

// fakeSession is a minimal handlers.Session stub carrying only the fields
// resolveAddressing actually reads.
type fakeSession struct {
	clientMAC, serverMAC net.HardwareAddr
	ipv6                 net.IP
}

func (f *fakeSession) Established() bool                   { return true }
func (f *fakeSession) ClientMAC() net.HardwareAddr          { return f.clientMAC }
func (f *fakeSession) ServerMAC() net.HardwareAddr          { return f.serverMAC }
func (f *fakeSession) OuterVLAN() uint16                    { return 0 }
func (f *fakeSession) InnerVLAN() uint16                    { return 0 }
func (f *fakeSession) PPPoESessionID() uint16               { return 0 }
func (f *fakeSession) IPv4Address() net.IP                  { return nil }
func (f *fakeSession) IPCPOpened() bool                     { return true }
func (f *fakeSession) IPv6Address() net.IP                  { return f.ipv6 }
func (f *fakeSession) IPv6DelegatedPrefix() *net.IPNet      { return nil }
func (f *fakeSession) IP6CPOpened() bool                    { return true }
func (f *fakeSession) RAReceived() bool                     { return true }
func (f *fakeSession) DHCPv6Bound() bool                    { return true }
func (f *fakeSession) L2TPSessionID() uint32                { return 0 }
func (f *fakeSession) L2TPTunnelID() uint32                 { return 0 }

type fakeSink struct {
	sent   [][]byte
	full   bool
}

func (f *fakeSink) Send(buf []byte) bool {
	if f.full {
		return false
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.sent = append(f.sent, cp)
	return true
}

func rawIPv4Stream(t *testing.T, pps float64) (*Stream, *fakeSink) {
	t.Helper()
	ni := ifmodel.New("raw0", "eth0", 0, net.HardwareAddr{0, 0, 0, 0, 0, 1})
	ni.PeerMAC = net.HardwareAddr{0, 0, 0, 0, 0, 2}
	ni.IPv4 = net.IPv4(10, 0, 0, 1).To4()
	ni.IPv4Gateway = net.IPv4(10, 0, 0, 2).To4()

	s := New(1, "test-raw", KindIPv4, Up)
	s.Interface = ni
	s.Length = 128
	s.PPS = pps
	require.NoError(t, BuildTemplate(s))

	sink := &fakeSink{}
	s.Sink = sink
	return s, sink
}

func TestCanSendRawRequiresInterfaceOnly(t *testing.T) {
	ni := ifmodel.New("raw0", "eth0", 0, net.HardwareAddr{0, 0, 0, 0, 0, 1})
	s := New(1, "raw", KindIPv4, Up)
	s.Interface = ni
	require.True(t, CanSend(s, true, true))
	require.False(t, CanSend(s, false, true))
	require.False(t, CanSend(s, true, false))
}

func TestFirstSendIterEmitsOneAndOpensWindow(t *testing.T) {
	s, sink := rawIPv4Stream(t, 10)
	now := time.Unix(1000, 0)
	sent := s.SendIter(now, 64)
	require.Equal(t, 1, sent)
	require.Len(t, sink.sent, 1)
	require.Equal(t, uint64(1), s.windowN)
}

func TestSendWindowDriftCorrects(t *testing.T) {
	s, sink := rawIPv4Stream(t, 10) // 10 pps
	t0 := time.Unix(2000, 0)
	require.Equal(t, 1, s.SendIter(t0, 64))

	// Half a second later at 10pps we'd expect ~5 total; only 1 sent so far.
	later := t0.Add(500 * time.Millisecond)
	sent := s.SendIter(later, 64)
	require.Equal(t, 4, sent) // expected(5) - alreadySent(1) = 4
	require.Len(t, sink.sent, 5)
}

func TestSendWindowRespectsMaxPPI(t *testing.T) {
	s, _ := rawIPv4Stream(t, 1000)
	t0 := time.Unix(3000, 0)
	require.Equal(t, 1, s.SendIter(t0, 10))
	later := t0.Add(1 * time.Second) // expected ~1000
	sent := s.SendIter(later, 10)
	require.Equal(t, 10, sent) // capped at maxPPI
}

func TestSendWindowRespectsMaxPackets(t *testing.T) {
	s, sink := rawIPv4Stream(t, 1000)
	s.MaxPackets = 5
	t0 := time.Unix(4000, 0)
	require.Equal(t, 1, s.SendIter(t0, 100))
	later := t0.Add(1 * time.Second)
	sent := s.SendIter(later, 100)
	require.Equal(t, 4, sent)
	require.Len(t, sink.sent, 5)

	// Further calls send nothing more.
	require.Equal(t, 0, s.SendIter(later.Add(time.Second), 100))
}

func TestStartDelayWaitWindowWastesFirstTick(t *testing.T) {
	s, sink := rawIPv4Stream(t, 10)
	s.StartDelay = 200 * time.Millisecond

	t0 := time.Unix(5000, 0)
	// First call only arms the wait window, even though nothing has been
	// sent yet and the delay itself might already be satisfiable later.
	require.Equal(t, 0, s.SendIter(t0, 64))
	require.False(t, s.waitUntil.IsZero())

	// Still before the deadline: no send.
	require.Equal(t, 0, s.SendIter(t0.Add(100*time.Millisecond), 64))

	// After the deadline: first packet goes out, opening the window.
	require.Equal(t, 1, s.SendIter(t0.Add(250*time.Millisecond), 64))
	require.Len(t, sink.sent, 1)
}

func TestStopZeroesWindowAndHalts(t *testing.T) {
	s, sink := rawIPv4Stream(t, 10)
	t0 := time.Unix(6000, 0)
	require.Equal(t, 1, s.SendIter(t0, 64))
	s.Stop()
	require.Equal(t, 0, s.SendIter(t0.Add(time.Second), 64))
	require.Equal(t, uint64(0), s.windowN)
	require.Len(t, sink.sent, 1)
}

func TestSinkBackpressureStopsEarly(t *testing.T) {
	s, sink := rawIPv4Stream(t, 1000)
	t0 := time.Unix(7000, 0)
	require.Equal(t, 1, s.SendIter(t0, 64))
	sink.full = true
	sent := s.SendIter(t0.Add(time.Second), 64)
	require.Equal(t, 0, sent)
}

func TestBuildTemplateMulticastDerivesMAC(t *testing.T) {
	ni := ifmodel.New("raw0", "eth0", 0, net.HardwareAddr{0, 0, 0, 0, 0, 1})
	ni.IPv4 = net.IPv4(10, 0, 0, 1).To4()

	s := New(2, "mc", KindIPv4, Down)
	s.Interface = ni
	s.Length = 128
	s.Overrides.DestIP = net.IPv4(239, 1, 2, 3).To4()
	require.NoError(t, BuildTemplate(s))

	var pkt codec.Packet
	res, err := codec.Decode(s.txBuf[:s.txLen], &pkt)
	require.NoError(t, err)
	require.Equal(t, codec.Success, res)
	require.Equal(t, codec.BBLTypeMulticast, pkt.BBL.Type)
	require.Equal(t, net.HardwareAddr{0x01, 0x00, 0x5e, 0x01, 0x02, 0x03}, pkt.Eth.DstMAC)
}

func TestGateTransitionInvalidatesTemplate(t *testing.T) {
	s, _ := rawIPv4Stream(t, 10)
	require.True(t, s.HasTemplate())
	GateTransition(s, true, false)
	require.False(t, s.HasTemplate())
}

func TestBuildTemplateAccessSessionKeepsSessionIPv6Source(t *testing.T) {
	ni := ifmodel.New("acc0", "eth0", 0, net.HardwareAddr{0, 0, 0, 0, 0, 1})
	ni.IPv6Gateway = net.ParseIP("fe80::ffff")
	sessionAddr := net.ParseIP("2001:db8::1")

	s := New(1, "access-v6", KindIPv6, Up)
	s.Interface = ni
	s.Length = 128
	s.Encap = AccessPPPoE
	s.Session = &fakeSession{
		clientMAC: net.HardwareAddr{0, 0, 0, 0, 0, 1},
		serverMAC: net.HardwareAddr{0, 0, 0, 0, 0, 2},
		ipv6:      sessionAddr,
	}
	require.NoError(t, BuildTemplate(s))

	var pkt codec.Packet
	res, err := codec.Decode(s.txBuf[:s.txLen], &pkt)
	require.NoError(t, err)
	require.Equal(t, codec.Success, res)
	require.True(t, pkt.IPv6.SrcIP.Equal(sessionAddr), "plain access stream must emit from the session-assigned address, not link-local")
}

func TestBuildTemplateA10NSPOverwritesWithLinkLocal(t *testing.T) {
	mac := net.HardwareAddr{0, 0, 0, 0, 0, 1}
	ni := ifmodel.New("a10nsp0", "eth0", 0, mac)
	ni.IPv6Gateway = net.ParseIP("fe80::ffff")
	sessionAddr := net.ParseIP("2001:db8::1")

	s := New(1, "a10nsp-v6", KindIPv6, Up)
	s.Interface = ni
	s.Length = 128
	s.Encap = A10NSPCrossConnect
	s.Session = &fakeSession{
		clientMAC: mac,
		serverMAC: net.HardwareAddr{0, 0, 0, 0, 0, 2},
		ipv6:      sessionAddr,
	}
	require.NoError(t, BuildTemplate(s))

	var pkt codec.Packet
	res, err := codec.Decode(s.txBuf[:s.txLen], &pkt)
	require.NoError(t, err)
	require.Equal(t, codec.Success, res)
	require.True(t, pkt.IPv6.SrcIP.Equal(ni.IPv6LinkLocal), "A10NSP cross-connect stream must emit from the interface's link-local address")
}

func TestWorkerPoolBalancesByPPS(t *testing.T) {
	pool := NewPool(2)
	s1 := New(1, "a", KindIPv4, Up)
	s1.PPS = 100
	s2 := New(2, "b", KindIPv4, Up)
	s2.PPS = 10
	s3 := New(3, "c", KindIPv4, Up)
	s3.PPS = 5

	w1 := pool.Assign(s1)
	w2 := pool.Assign(s2)
	w3 := pool.Assign(s3)

	require.NotEqual(t, w1.ID, w2.ID)
	// s3 (5pps) should land on whichever worker has less reserved so far.
	require.Same(t, w2, w3)
}
