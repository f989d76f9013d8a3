package lobby

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tnet "badc0de.net/pkg/go-lobby/net"
	"badc0de.net/pkg/go-lobby/secrets"
	"badc0de.net/pkg/go-lobby/ttesting"
)

func TestNewServerUnknownGameVersion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GameVersion = 1
	if _, err := NewServer(cfg); err == nil {
		t.Errorf("NewServer accepted a game version with no key layout")
	}
}

// serve runs srv.Serve on one end of a pipe and returns the other end, and
// a channel receiving Serve's result.
func serve(t *testing.T, srv *LobbyServer) (net.Conn, <-chan error) {
	t.Helper()
	client, server := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(server) }()
	t.Cleanup(func() { client.Close() })
	return client, done
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return")
		return nil
	}
}

func TestServeSplitPacket(t *testing.T) {
	client, done := serve(t, newTestServer(t))

	b := buildPacket(tnet.NewSegment(tnet.SegmentKeepAlive, 0, 0, keepAlivePayload))
	go func() {
		client.Write(b[:13])
		client.Write(b[13:])
	}()

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	pkt, err := tnet.NewPacketReader(client, 0).ReadPacket()
	if err != nil {
		t.Fatalf("reading echo: %s", err)
	}
	ttesting.AssertEqualUint16(t, "echo type", uint16(pkt.Segments[0].Type), uint16(tnet.SegmentKeepAliveAck))
	ttesting.AssertEqualBytes(t, "echo payload", pkt.Segments[0].Data, keepAlivePayload)

	client.Close()
	if err := waitServe(t, done); err != nil {
		t.Errorf("Serve after clean disconnect = %v; want nil", err)
	}
}

func TestServeMalformedPacketCloses(t *testing.T) {
	client, done := serve(t, newTestServer(t))

	bad := buildPacket(tnet.NewSegment(tnet.SegmentKeepAlive, 0, 0, keepAlivePayload))
	bad[tnet.HeaderSize] = 4 // segment size below its header size
	go client.Write(bad)

	err := waitServe(t, done)
	if !errors.Is(err, tnet.ErrMalformed) {
		t.Errorf("Serve = %v; want ErrMalformed", err)
	}
}

func TestServeReadTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadTimeout = 50 * time.Millisecond
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %s", err)
	}
	client, done := serve(t, srv)

	b := buildPacket(tnet.NewSegment(tnet.SegmentKeepAlive, 0, 0, keepAlivePayload))
	go client.Write(b[:10])

	var ne net.Error
	if err := waitServe(t, done); !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("Serve = %v; want a timeout", err)
	}
}

func TestServeRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PacketsPerSecond = 0.001
	cfg.PacketBurst = 1
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %s", err)
	}
	client, done := serve(t, srv)

	b := buildPacket(tnet.NewSegment(tnet.SegmentSessionInit, 0, 0, nil))
	go func() {
		client.Write(b)
		client.Write(b)
	}()

	if err := waitServe(t, done); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Serve = %v; want ErrRateLimited", err)
	}
}

func TestServeListenerIsolatesSessions(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %s", err)
	}
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.ServeListener(ctx, l) }()

	bad, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer bad.Close()
	good, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer good.Close()

	// A packet declaring a size below the header size kills only its own
	// session.
	garbage := make([]byte, tnet.HeaderSize)
	garbage[24] = 1
	bad.Write(garbage)
	bad.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := bad.Read(make([]byte, 1)); err == nil {
		t.Errorf("bad connection still open")
	}

	good.Write(buildPacket(tnet.NewSegment(tnet.SegmentKeepAlive, 0, 0, keepAlivePayload)))
	good.SetReadDeadline(time.Now().Add(5 * time.Second))
	pkt, err := tnet.NewPacketReader(good, 0).ReadPacket()
	if err != nil {
		t.Fatalf("reading echo on good connection: %s", err)
	}
	ttesting.AssertEqualBytes(t, "echo", pkt.Segments[0].Data, keepAlivePayload)

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("ServeListener = %v; want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("ServeListener did not return after cancel")
	}
}

func TestKeyLayoutFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyLayouts = cfg.KeyLayouts.Merge(secrets.KeyLayouts{
		5000: {Version: 5000, PhraseOffset: 10, PhraseLength: 32, SeedOffset: 100},
	})
	cfg.GameVersion = 5000
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %s", err)
	}
	ttesting.AssertEqualInt(t, "phrase offset", srv.KeyLayout().PhraseOffset, 10)
}

func TestNewServerServiceAccountNameTooLong(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceAccountName = strings.Repeat("x", 0x44)
	if _, err := NewServer(cfg); err == nil {
		t.Errorf("NewServer accepted a service account name that does not fit")
	}
}

func TestServePanicClosesOnlyItsSession(t *testing.T) {
	srv := newTestServer(t)
	srv.Registry().Handle(IPCReqCharList, func(*Session, *tnet.IPCMessage) (*Reply, error) {
		var chars map[string]int
		chars["x"]++
		return nil, nil
	})

	bad, badDone := serve(t, srv)
	req := (&tnet.IPCMessage{IPCHeader: tnet.NewIPCHeader(0, IPCReqCharList, time.Now())}).Bytes()
	go bad.Write(buildPacket(tnet.NewSegment(tnet.SegmentIPC, 0, 0, req)))

	err := waitServe(t, badDone)
	if !errors.Is(err, ErrSessionPanic) {
		t.Errorf("Serve = %v; want ErrSessionPanic", err)
	}
	if kind := ErrorKind(err); kind != "panic" {
		t.Errorf("ErrorKind = %q; want panic", kind)
	}

	good, _ := serve(t, srv)
	go good.Write(buildPacket(tnet.NewSegment(tnet.SegmentKeepAlive, 0, 0, keepAlivePayload)))
	good.SetReadDeadline(time.Now().Add(5 * time.Second))
	pkt, err := tnet.NewPacketReader(good, 0).ReadPacket()
	if err != nil {
		t.Fatalf("reading echo after another session panicked: %s", err)
	}
	ttesting.AssertEqualBytes(t, "echo", pkt.Segments[0].Data, keepAlivePayload)
}

var errNoDeadline = errors.New("deadlines not supported")

// noDeadlineConn is a connection refusing to set deadlines.
type noDeadlineConn struct {
	net.Conn
}

func (noDeadlineConn) SetReadDeadline(time.Time) error  { return errNoDeadline }
func (noDeadlineConn) SetWriteDeadline(time.Time) error { return errNoDeadline }

func TestServeReadDeadlineError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	err := newTestServer(t).Serve(noDeadlineConn{server})
	if !errors.Is(err, errNoDeadline) {
		t.Errorf("Serve = %v; want the read deadline error", err)
	}
}

func TestDeadlineWriterError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	w := deadlineWriter{conn: noDeadlineConn{server}, timeout: time.Second}
	if _, err := w.Write([]byte{1}); !errors.Is(err, errNoDeadline) {
		t.Errorf("Write = %v; want the write deadline error", err)
	}
}

// brokenListener fails every Accept and counts Close calls.
type brokenListener struct {
	closes int32
}

func (l *brokenListener) Accept() (net.Conn, error) { return nil, errors.New("accept failed") }
func (l *brokenListener) Close() error              { atomic.AddInt32(&l.closes, 1); return nil }
func (l *brokenListener) Addr() net.Addr            { return &net.TCPAddr{} }

func TestServeListenerAcceptFailure(t *testing.T) {
	l := &brokenListener{}
	if err := newTestServer(t).ServeListener(context.Background(), l); err == nil {
		t.Fatalf("ServeListener = nil; want the accept error")
	}

	// The goroutine watching for cancellation exits too, closing the
	// listener a second time.
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&l.closes) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("listener closed %d times; want 2", atomic.LoadInt32(&l.closes))
		}
		time.Sleep(time.Millisecond)
	}
}
