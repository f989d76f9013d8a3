package lobby

import (
	"github.com/pkg/errors"

	"badc0de.net/pkg/go-lobby/brokefish"
	tnet "badc0de.net/pkg/go-lobby/net"
)

var (
	// ErrUnknownSegmentType is returned for a segment whose type the lobby
	// does not handle. The session carries on.
	ErrUnknownSegmentType = errors.New("unknown segment type")

	// ErrUnknownMessageType is returned for an IPC message no handler is
	// registered for. The session carries on.
	ErrUnknownMessageType = errors.New("unknown ipc message type")

	// ErrKeyMaterial is returned when the handshake payload does not hold
	// key material of the expected shape.
	ErrKeyMaterial = errors.New("unexpected key material")

	// ErrRateLimited is returned when a client sends packets faster than the
	// configured bound.
	ErrRateLimited = errors.New("packet rate exceeded")

	// ErrSessionPanic is returned when serving a session panicked. Only that
	// session is closed.
	ErrSessionPanic = errors.New("session panicked")
)

// IsFatal reports whether err should end the session that produced it.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrUnknownSegmentType) && !errors.Is(err, ErrUnknownMessageType)
}

// ErrorKind names the class of err, for logs and metrics.
func ErrorKind(err error) string {
	var fe *tnet.FramingError
	var kse brokefish.KeySizeError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnknownSegmentType):
		return "unknown_segment"
	case errors.Is(err, ErrUnknownMessageType):
		return "unknown_message"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrSessionPanic):
		return "panic"
	case errors.As(err, &fe):
		return "framing"
	case errors.Is(err, ErrKeyMaterial), errors.As(err, &kse):
		return "crypto"
	case errors.As(err, new(*HandlerError)):
		return "handler"
	}
	return "io"
}

// HandlerError wraps an error returned by an IPC handler.
type HandlerError struct {
	Type uint16
	Err  error
}

func (e *HandlerError) Error() string {
	return "ipc handler " + IPCTypeName(e.Type) + ": " + e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
