package lobby

import (
	"encoding/hex"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/trace"

	"badc0de.net/pkg/go-lobby/brokefish"
	tnet "badc0de.net/pkg/go-lobby/net"
)

// State is the encryption state of a session: either Unkeyed or Keyed.
type State interface {
	isState()
}

// Unkeyed is the state of a session before the handshake. IPC payloads
// travel in the clear.
type Unkeyed struct{}

// Keyed is the state of a session after the handshake. IPC payloads are
// enciphered with Cipher.
type Keyed struct {
	Key    [KeySize]byte
	Cipher *brokefish.Cipher
}

func (Unkeyed) isState() {}
func (Keyed) isState() {}

// Session is the lobby state of one client connection.
//
// A Session is driven by a single goroutine and is not safe for concurrent
// use.
type Session struct {
	name  string
	w     io.Writer
	srv   *LobbyServer
	state State

	events trace.EventLog
	now    func() time.Time
}

// NewSession creates a session writing its responses to w. name identifies
// the session in logs, usually the client's address.
//
// Sessions created this way must be closed with Close.
func (c *LobbyServer) NewSession(w io.Writer, name string) *Session {
	c.observer.SessionOpened()
	return &Session{
		name:   name,
		w:      w,
		srv:    c,
		state:  Unkeyed{},
		events: trace.NewEventLog("lobby.Session", name),
		now:    time.Now,
	}
}

// Close releases the session's resources. err is why the session ended, or
// nil if the client went away cleanly.
func (s *Session) Close(err error) {
	reason := "eof"
	if err != nil {
		reason = ErrorKind(err)
		s.events.Errorf("closed: %s", err)
	}
	s.srv.observer.SessionClosed(reason)
	s.events.Finish()
}

// Name returns the name the session was created with.
func (s *Session) Name() string {
	return s.name
}

// State returns the session's current encryption state.
func (s *Session) State() State {
	return s.state
}

// Config returns the configuration of the server owning the session.
func (s *Session) Config() Config {
	return s.srv.cfg
}

// HandlePacket processes the segments of pkt in order. Every response to a
// segment is written before the next segment is looked at.
//
// Errors for which IsFatal is false are logged and skipped over; the first
// fatal error stops processing and is returned.
func (s *Session) HandlePacket(pkt *tnet.Packet) error {
	for i, seg := range pkt.Segments {
		err := s.handleSegment(seg)
		if err == nil {
			continue
		}
		s.srv.observer.Error(ErrorKind(err))
		if IsFatal(err) {
			return errors.Wrapf(err, "segment %d/%d", i+1, len(pkt.Segments))
		}
		glog.Warningf("%s: segment %d/%d: %s", s.name, i+1, len(pkt.Segments), err)
		s.events.Printf("ignored: %s", err)
	}
	return nil
}

func (s *Session) handleSegment(seg tnet.Segment) error {
	glog.V(2).Infof("%s: segment %s, %d bytes", s.name, seg.Type, len(seg.Data))
	if glog.V(3) {
		glog.Infof("%s: segment data:\n%s", s.name, hex.Dump(seg.Data))
	}
	s.events.Printf("segment %s, %d bytes", seg.Type, len(seg.Data))
	s.srv.observer.Segment(seg.Type)

	switch seg.Type {
	case tnet.SegmentSessionInit:
		return nil
	case tnet.SegmentKeepAlive:
		return s.handleKeepAlive(seg)
	case tnet.SegmentEncryptionInit:
		return s.handleEncryptionInit(seg)
	case tnet.SegmentIPC:
		return s.handleIPC(seg)
	}
	return errors.Wrapf(ErrUnknownSegmentType, "%s", seg.Type)
}

func (s *Session) handleKeepAlive(seg tnet.Segment) error {
	if len(seg.Data) != 8 {
		return &tnet.FramingError{
			Op:  "keepalive",
			Err: errors.Wrapf(tnet.ErrMalformed, "payload is %d bytes, want 8", len(seg.Data)),
		}
	}
	return s.sendSegment(tnet.SegmentKeepAliveAck, seg.Data)
}

func (s *Session) handleEncryptionInit(seg tnet.Segment) error {
	key, err := DeriveKey(s.srv.layout, seg.Data)
	if err != nil {
		return err
	}
	c, err := brokefish.NewCipher(key[:])
	if err != nil {
		return errors.Wrap(err, "expanding session key")
	}

	if _, rekey := s.state.(Keyed); rekey {
		glog.Infof("%s: replacing session key", s.name)
	}
	s.state = Keyed{Key: key, Cipher: c}
	s.events.Printf("keyed")
	s.srv.observer.Handshake()
	glog.V(2).Infof("%s: handshake complete", s.name)

	return s.sendSegment(tnet.SegmentEncryptionInitAck, EncryptionInitAck())
}

func (s *Session) handleIPC(seg tnet.Segment) error {
	data := seg.Data
	if k, ok := s.state.(Keyed); ok {
		var err error
		if data, err = OpenIPC(k.Cipher, data); err != nil {
			return err
		}
	}

	ipcType, err := tnet.PeekIPCType(data)
	if err != nil {
		return err
	}
	h, ok := s.srv.registry.Lookup(ipcType)
	s.srv.observer.IPCMessage(ipcType, ok)
	if !ok {
		return errors.Wrapf(ErrUnknownMessageType, "%s", IPCTypeName(ipcType))
	}

	msg, err := tnet.ParseIPC(data)
	if err != nil {
		return err
	}
	s.events.Printf("ipc %s", IPCTypeName(ipcType))

	reply, err := h(s, msg)
	if err != nil {
		return &HandlerError{Type: ipcType, Err: err}
	}
	if reply == nil {
		return nil
	}
	return s.SendIPC(reply.Type, reply.Data)
}

// SendIPC wraps body in an IPC envelope of type ipcType and sends it,
// enciphered if the session is keyed.
func (s *Session) SendIPC(ipcType uint16, body []byte) error {
	msg := &tnet.IPCMessage{
		IPCHeader: tnet.NewIPCHeader(s.srv.cfg.ServerID, ipcType, s.now()),
		Data:      body,
	}
	payload := msg.Bytes()
	if k, ok := s.state.(Keyed); ok {
		payload = SealIPC(k.Cipher, payload)
	}
	return s.sendSegment(tnet.SegmentIPC, payload)
}

func (s *Session) sendSegment(typ tnet.SegmentType, data []byte) error {
	b := tnet.Encode(tnet.NewPacketHeader(s.now()), tnet.NewSegment(typ, 0, 0, data))
	glog.V(2).Infof("%s: sending %s, %d bytes", s.name, typ, len(b))
	if _, err := s.w.Write(b); err != nil {
		return errors.Wrapf(err, "writing %s", typ)
	}
	return nil
}
