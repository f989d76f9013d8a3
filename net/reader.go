package net

import (
	"encoding/binary"
	"io"

	"github.com/golang/glog"
)

// DefaultMaxPacketSize is the byte bound used by NewPacketReader when none
// is given.
const DefaultMaxPacketSize = 64 << 10

const readChunkSize = 2048

// PacketReader accumulates bytes from a stream until a whole packet is
// available, so a packet may arrive split across any number of reads, and
// several packets may arrive in one.
//
// It bounds how many bytes it will buffer for one packet. Bounding the time
// spent waiting is up to the caller, e.g. with a read deadline on the
// connection.
type PacketReader struct {
	r       io.Reader
	maxSize int

	buf   []byte
	chunk []byte
	eof   bool
}

// NewPacketReader returns a PacketReader reading from r, refusing packets
// declaring more than maxSize bytes. maxSize <= 0 selects
// DefaultMaxPacketSize.
func NewPacketReader(r io.Reader, maxSize int) *PacketReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxPacketSize
	}
	if maxSize < HeaderSize {
		maxSize = HeaderSize
	}
	return &PacketReader{
		r:       r,
		maxSize: maxSize,
		chunk:   make([]byte, readChunkSize),
	}
}

// Buffered returns how many bytes have been read but not yet returned as
// part of a packet.
func (pr *PacketReader) Buffered() int {
	return len(pr.buf)
}

// ReadPacket returns the next complete packet.
//
// io.EOF is returned if the stream ends cleanly between packets, and
// io.ErrUnexpectedEOF if it ends in the middle of one. A FramingError means
// the stream cannot be continued.
func (pr *PacketReader) ReadPacket() (*Packet, error) {
	for {
		if len(pr.buf) >= HeaderSize {
			size := int(binary.LittleEndian.Uint32(pr.buf[24:28]))
			if size < HeaderSize {
				return nil, framingErrorf("read", ErrMalformed, "packet size %d below header size", size)
			}
			if size > pr.maxSize {
				return nil, framingErrorf("read", ErrPacketTooLarge, "packet size %d above bound %d", size, pr.maxSize)
			}
			if len(pr.buf) >= size {
				glog.V(3).Infof("complete packet of %d bytes, %d bytes buffered", size, len(pr.buf))
				pkt, err := Parse(pr.buf[:size])
				n := copy(pr.buf, pr.buf[size:])
				pr.buf = pr.buf[:n]
				return pkt, err
			}
		}

		if pr.eof {
			if len(pr.buf) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		}

		n, err := pr.r.Read(pr.chunk)
		glog.V(3).Infof("read %d bytes", n)
		pr.buf = append(pr.buf, pr.chunk[:n]...)
		switch {
		case err == io.EOF, err == nil && n == 0:
			// A zero-length read ends the stream too.
			pr.eof = true
		case err != nil:
			return nil, err
		}
	}
}
