package net

import (
	"github.com/pkg/errors"
)

var (
	// ErrTruncated means fewer bytes were available than a header or a
	// declared size requires.
	ErrTruncated = errors.New("truncated")

	// ErrMalformed means a declared size is inconsistent with the layout,
	// e.g. a segment smaller than its own header.
	ErrMalformed = errors.New("malformed")

	// ErrPacketTooLarge means a packet declared a size above the reader's
	// bound.
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrUnsupportedCompression means the packet uses a compression scheme
	// this server cannot inflate.
	ErrUnsupportedCompression = errors.New("unsupported compression")
)

// FramingError reports a packet, segment or IPC envelope which could not be
// decoded. A connection which produced one cannot be resynchronized.
type FramingError struct {
	Op  string
	Err error
}

func (e *FramingError) Error() string {
	return "framing: " + e.Op + ": " + e.Err.Error()
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

func framingErrorf(op string, sentinel error, format string, args ...interface{}) error {
	return &FramingError{Op: op, Err: errors.Wrapf(sentinel, format, args...)}
}
