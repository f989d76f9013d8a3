package net

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// MaxUncompressedSize bounds how large a compressed packet may claim to
// inflate to.
const MaxUncompressedSize = 1 << 20

// inflate returns the segment region of a packet, decompressing it if the
// header says it is compressed.
func inflate(hdr PacketHeader, body []byte) ([]byte, error) {
	switch hdr.Compression {
	case CompressionNone:
		return body, nil
	case CompressionZlib:
	default:
		return nil, framingErrorf("inflate", ErrUnsupportedCompression, "compression type %d", hdr.Compression)
	}

	want := int(hdr.UncompressedSize)
	if want > MaxUncompressedSize {
		return nil, framingErrorf("inflate", ErrPacketTooLarge, "uncompressed size %d", want)
	}

	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, framingErrorf("inflate", ErrMalformed, "zlib header: %s", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, framingErrorf("inflate", ErrMalformed, "zlib stream: %s", err)
	}
	if len(out) != want {
		return nil, framingErrorf("inflate", ErrMalformed, "inflated to %d bytes, header says %d", len(out), want)
	}
	return out, nil
}
