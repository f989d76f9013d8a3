package net

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// HeaderSize is the length of the packet header on the wire.
	HeaderSize = 40

	// SegmentHeaderSize is the length of a segment header on the wire.
	SegmentHeaderSize = 16
)

// CompressionType says how the segments following a packet header are
// encoded.
type CompressionType uint8

const (
	CompressionNone  CompressionType = 0
	CompressionZlib  CompressionType = 1
	CompressionOodle CompressionType = 2
)

// PacketHeader is the fixed preamble of every packet.
//
// Size is the length of the whole packet, header included.
type PacketHeader struct {
	Unknown0, Unknown8 uint64

	Timestamp      uint64 // milliseconds since the epoch
	Size           uint32
	ConnectionType uint16
	Count          uint16

	Flags            uint8
	Compression      CompressionType
	Unknown24        uint16
	UncompressedSize uint32
}

// NewPacketHeader returns the header the server puts on outbound packets.
// Size and Count are filled in by Encode.
func NewPacketHeader(now time.Time) PacketHeader {
	return PacketHeader{
		Timestamp:   uint64(now.UnixNano() / int64(time.Millisecond)),
		Flags:       1,
		Compression: CompressionNone,
	}
}

// SegmentType identifies the kind of payload a segment carries.
type SegmentType uint16

const (
	SegmentSessionInit       SegmentType = 0x01
	SegmentIPC               SegmentType = 0x03
	SegmentKeepAlive         SegmentType = 0x07
	SegmentKeepAliveAck      SegmentType = 0x08
	SegmentEncryptionInit    SegmentType = 0x09
	SegmentEncryptionInitAck SegmentType = 0x0a
)

var segmentTypeNames = map[SegmentType]string{
	SegmentSessionInit:       "SessionInit",
	SegmentIPC:               "IPC",
	SegmentKeepAlive:         "KeepAlive",
	SegmentKeepAliveAck:      "KeepAliveAck",
	SegmentEncryptionInit:    "EncryptionInit",
	SegmentEncryptionInitAck: "EncryptionInitAck",
}

func (t SegmentType) String() string {
	if n, ok := segmentTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("SegmentType(0x%02x)", uint16(t))
}

// Known reports whether t is one of the segment types defined above.
func (t SegmentType) Known() bool {
	_, ok := segmentTypeNames[t]
	return ok
}

// Inbound reports whether t is a segment type a client may send.
func (t SegmentType) Inbound() bool {
	switch t {
	case SegmentSessionInit, SegmentIPC, SegmentKeepAlive, SegmentEncryptionInit:
		return true
	}
	return false
}

// SegmentHeader precedes every segment's payload. Size includes the header
// itself.
type SegmentHeader struct {
	Size        uint32
	SourceActor uint32
	TargetActor uint32
	Type        SegmentType
	Padding     uint16
}

// Segment is a single typed, length-delimited unit inside a packet.
type Segment struct {
	SegmentHeader
	Data []byte
}

// NewSegment creates a segment of the given type around data, with Size
// set accordingly.
func NewSegment(typ SegmentType, sourceActor, targetActor uint32, data []byte) Segment {
	return Segment{
		SegmentHeader: SegmentHeader{
			Size:        uint32(SegmentHeaderSize + len(data)),
			SourceActor: sourceActor,
			TargetActor: targetActor,
			Type:        typ,
		},
		Data: data,
	}
}

// Packet is a decoded packet: its header and its segments, in wire order.
type Packet struct {
	Header   PacketHeader
	Segments []Segment
}

// Parse decodes the packet at the start of b. Bytes past the size declared
// in the header are ignored.
//
// Segment types are not validated; deciding what to do with a type the
// server does not know is up to the caller.
func Parse(b []byte) (*Packet, error) {
	if len(b) < HeaderSize {
		return nil, framingErrorf("parse", ErrTruncated, "header needs %d bytes, have %d", HeaderSize, len(b))
	}

	pkt := &Packet{}
	if err := binary.Read(bytes.NewReader(b[:HeaderSize]), binary.LittleEndian, &pkt.Header); err != nil {
		return nil, framingErrorf("parse", ErrTruncated, "header: %s", err)
	}

	size := int(pkt.Header.Size)
	if size < HeaderSize {
		return nil, framingErrorf("parse", ErrMalformed, "packet size %d below header size", size)
	}
	if len(b) < size {
		return nil, framingErrorf("parse", ErrTruncated, "packet size %d, have %d bytes", size, len(b))
	}

	body, err := inflate(pkt.Header, b[HeaderSize:size])
	if err != nil {
		return nil, err
	}

	pkt.Segments = make([]Segment, 0, pkt.Header.Count)
	for i := 0; i < int(pkt.Header.Count); i++ {
		if len(body) < SegmentHeaderSize {
			return nil, framingErrorf("parse", ErrTruncated, "segment %d header: %d bytes left", i, len(body))
		}

		var seg Segment
		if err := binary.Read(bytes.NewReader(body[:SegmentHeaderSize]), binary.LittleEndian, &seg.SegmentHeader); err != nil {
			return nil, framingErrorf("parse", ErrTruncated, "segment %d header: %s", i, err)
		}
		if seg.Size < SegmentHeaderSize {
			return nil, framingErrorf("parse", ErrMalformed, "segment %d size %d below header size", i, seg.Size)
		}
		if int(seg.Size) > len(body) {
			return nil, framingErrorf("parse", ErrTruncated, "segment %d size %d, %d bytes left", i, seg.Size, len(body))
		}

		seg.Data = make([]byte, int(seg.Size)-SegmentHeaderSize)
		copy(seg.Data, body[SegmentHeaderSize:seg.Size])
		pkt.Segments = append(pkt.Segments, seg)

		body = body[seg.Size:]
	}

	if len(body) != 0 {
		return nil, framingErrorf("parse", ErrMalformed, "%d bytes after %d segments", len(body), pkt.Header.Count)
	}

	return pkt, nil
}

// Encode serializes a packet carrying the single segment seg.
//
// The Size and Count fields of hdr, and the Size field of seg, are
// recomputed; everything else is written as given. Encode never compresses.
func Encode(hdr PacketHeader, seg Segment) []byte {
	seg.Size = uint32(SegmentHeaderSize + len(seg.Data))
	hdr.Size = uint32(HeaderSize) + seg.Size
	hdr.Count = 1
	hdr.Compression = CompressionNone
	hdr.UncompressedSize = 0

	buf := bytes.NewBuffer(make([]byte, 0, hdr.Size))
	// Writes into a bytes.Buffer of fixed-size values cannot fail.
	binary.Write(buf, binary.LittleEndian, &hdr)
	binary.Write(buf, binary.LittleEndian, &seg.SegmentHeader)
	buf.Write(seg.Data)
	return buf.Bytes()
}
