package net

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
)

// splitReader returns the first n bytes of b from its first Read and the
// rest from its second.
type splitReader struct {
	parts [][]byte
}

func (s *splitReader) Read(p []byte) (int, error) {
	if len(s.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.parts[0])
	s.parts[0] = s.parts[0][n:]
	if len(s.parts[0]) == 0 {
		s.parts = s.parts[1:]
	}
	return n, nil
}

func testPacket() []byte {
	return Encode(PacketHeader{Timestamp: 42}, NewSegment(SegmentKeepAlive, 1, 2, []byte{1, 2, 3, 4, 0xaa, 0xbb, 0xcc, 0xdd}))
}

func TestReadPacketSplitAtEveryBoundary(t *testing.T) {
	b := testPacket()
	want, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}

	for i := 1; i < len(b); i++ {
		pr := NewPacketReader(&splitReader{parts: [][]byte{b[:i], b[i:]}}, 0)
		got, err := pr.ReadPacket()
		if err != nil {
			t.Fatalf("split at %d: ReadPacket: %s", i, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("split at %d: packet mismatch (-want +got):\n%s", i, diff)
		}
		if _, err := pr.ReadPacket(); err != io.EOF {
			t.Fatalf("split at %d: second ReadPacket error = %v; want io.EOF", i, err)
		}
	}
}

func TestReadPacketOneByteAtATime(t *testing.T) {
	b := testPacket()
	pr := NewPacketReader(iotest.OneByteReader(bytes.NewReader(b)), 0)
	if _, err := pr.ReadPacket(); err != nil {
		t.Fatalf("ReadPacket: %s", err)
	}
}

func TestReadPacketTwoInOneRead(t *testing.T) {
	b := append(testPacket(), testPacket()...)
	pr := NewPacketReader(&splitReader{parts: [][]byte{b}}, 0)
	for i := 0; i < 2; i++ {
		if _, err := pr.ReadPacket(); err != nil {
			t.Fatalf("packet %d: %s", i, err)
		}
	}
	if pr.Buffered() != 0 {
		t.Errorf("Buffered() = %d after both packets", pr.Buffered())
	}
}

func TestReadPacketDataWithEOF(t *testing.T) {
	pr := NewPacketReader(iotest.DataErrReader(bytes.NewReader(testPacket())), 0)
	if _, err := pr.ReadPacket(); err != nil {
		t.Fatalf("ReadPacket: %s", err)
	}
	if _, err := pr.ReadPacket(); err != io.EOF {
		t.Errorf("ReadPacket error = %v; want io.EOF", err)
	}
}

func TestReadPacketEndsMidPacket(t *testing.T) {
	b := testPacket()
	pr := NewPacketReader(bytes.NewReader(b[:len(b)-3]), 0)
	if _, err := pr.ReadPacket(); err != io.ErrUnexpectedEOF {
		t.Errorf("ReadPacket error = %v; want io.ErrUnexpectedEOF", err)
	}
}

func TestReadPacketTooLarge(t *testing.T) {
	b := Encode(PacketHeader{}, NewSegment(SegmentIPC, 0, 0, make([]byte, 512)))
	pr := NewPacketReader(bytes.NewReader(b), 256)
	if _, err := pr.ReadPacket(); !errors.Is(err, ErrPacketTooLarge) {
		t.Errorf("ReadPacket error = %v; want ErrPacketTooLarge", err)
	}
}

func TestReadPacketIOError(t *testing.T) {
	pr := NewPacketReader(iotest.ErrReader(io.ErrClosedPipe), 0)
	if _, err := pr.ReadPacket(); err != io.ErrClosedPipe {
		t.Errorf("ReadPacket error = %v; want io.ErrClosedPipe", err)
	}
}
