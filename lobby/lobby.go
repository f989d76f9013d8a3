// Package lobby implements the lobby server: the encryption handshake, the
// per-connection session state machine and the dispatch of IPC messages to
// handlers.
package lobby

import (
	"context"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	tnet "badc0de.net/pkg/go-lobby/net"
	"badc0de.net/pkg/go-lobby/secrets"
)

// Config holds the settings of a LobbyServer.
type Config struct {
	// GameVersion selects the key layout used during the handshake.
	GameVersion uint16
	KeyLayouts  secrets.KeyLayouts

	ServerID           uint16
	ServiceAccountName string

	// ReadTimeout bounds how long a session waits for the rest of a packet,
	// or for the next one. Zero means no bound.
	ReadTimeout time.Duration
	// WriteTimeout bounds how long writing one response may take.
	WriteTimeout time.Duration
	// MaxPacketSize bounds how large a packet a client may announce.
	MaxPacketSize int

	// PacketsPerSecond and PacketBurst bound how fast a client may send
	// packets. A zero PacketsPerSecond disables the bound.
	PacketsPerSecond float64
	PacketBurst      int
}

// DefaultConfig returns the configuration the lobby uses unless told
// otherwise.
func DefaultConfig() Config {
	return Config{
		GameVersion:        secrets.DefaultGameVersion,
		KeyLayouts:         secrets.DefaultKeyLayouts(),
		ServiceAccountName: DefaultServiceAccountName,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxPacketSize:      tnet.DefaultMaxPacketSize,
	}
}

// LobbyServer serves the lobby protocol on accepted connections.
type LobbyServer struct {
	cfg      Config
	layout   secrets.KeyLayout
	registry *Registry
	observer Observer
}

// NewServer creates a LobbyServer. The returned server's registry already
// has a handler for IPCClientVersionInfo.
func NewServer(cfg Config) (*LobbyServer, error) {
	layout, ok := cfg.KeyLayouts.Lookup(cfg.GameVersion)
	if !ok {
		return nil, errors.Errorf("no key layout for game version %d", cfg.GameVersion)
	}
	if err := layout.Validate(); err != nil {
		return nil, errors.Wrap(err, "key layout")
	}
	if err := NewServiceIDInfo().AddServiceAccount(0, cfg.ServiceAccountName); err != nil {
		return nil, err
	}

	c := &LobbyServer{
		cfg:      cfg,
		layout:   layout,
		registry: NewRegistry(),
		observer: NopObserver{},
	}
	c.registry.Handle(IPCClientVersionInfo, VersionInfoHandler(cfg.ServiceAccountName))
	return c, nil
}

// Registry returns the IPC handler registry of the server.
func (c *LobbyServer) Registry() *Registry {
	return c.registry
}

// SetObserver makes the server report events to o.
func (c *LobbyServer) SetObserver(o Observer) {
	if o == nil {
		o = NopObserver{}
	}
	c.observer = o
}

// KeyLayout returns the key layout the server uses for handshakes.
func (c *LobbyServer) KeyLayout() secrets.KeyLayout {
	return c.layout
}

// ServeListener accepts connections from l and serves each on its own
// goroutine until ctx is done or l fails. The listener is closed on return.
func (c *LobbyServer) ServeListener(ctx context.Context, l net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		l.Close()
	}()
	defer l.Close()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				glog.Errorln(err)
				continue
			}
			return errors.Wrap(err, "accepting")
		}
		glog.Infoln("accepted connection from ", conn.RemoteAddr())
		go func() {
			if err := c.Serve(conn); err != nil {
				glog.Errorf("%s: %s", conn.RemoteAddr(), err)
			}
		}()
	}
}

// deadlineWriter sets a write deadline on the connection before every write.
type deadlineWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w deadlineWriter) Write(b []byte) (int, error) {
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return 0, errors.Wrap(err, "setting write deadline")
		}
	}
	return w.conn.Write(b)
}

// Serve runs the lobby protocol on the accepted network connection until the
// client disconnects or a fatal error occurs. The connection is closed on
// return.
//
// A clean disconnect between packets returns nil. A panic while serving is
// recovered and returned as an error wrapping ErrSessionPanic.
func (c *LobbyServer) Serve(conn net.Conn) (err error) {
	defer conn.Close()

	s := c.NewSession(deadlineWriter{conn: conn, timeout: c.cfg.WriteTimeout}, conn.RemoteAddr().String())
	defer func() { s.Close(err) }()
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("%s: panic: %v\n%s", s.Name(), r, debug.Stack())
			err = errors.Wrapf(ErrSessionPanic, "%v", r)
		}
	}()

	var limiter *rate.Limiter
	if c.cfg.PacketsPerSecond > 0 {
		burst := c.cfg.PacketBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(c.cfg.PacketsPerSecond), burst)
	}

	pr := tnet.NewPacketReader(conn, c.cfg.MaxPacketSize)
	for {
		if c.cfg.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
				return errors.Wrap(err, "setting read deadline")
			}
		}
		pkt, err := pr.ReadPacket()
		if err == io.EOF {
			glog.V(2).Infof("%s: disconnected", s.Name())
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading packet")
		}
		glog.V(2).Infof("%s: packet of %d bytes, %d segments", s.Name(), pkt.Header.Size, len(pkt.Segments))

		if limiter != nil && !limiter.Allow() {
			return ErrRateLimited
		}
		if err := s.HandlePacket(pkt); err != nil {
			return err
		}
	}
}
