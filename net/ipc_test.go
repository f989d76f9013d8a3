package net

import (
	"errors"
	"testing"
	"time"

	"badc0de.net/pkg/go-lobby/ttesting"
)

func TestIPCRoundTrip(t *testing.T) {
	msg := &IPCMessage{
		IPCHeader: NewIPCHeader(7, 0x0c, time.Unix(1700000000, 0)),
		Data:      []byte("body"),
	}
	b := msg.Bytes()
	ttesting.AssertEqualInt(t, "length", len(b), IPCHeaderSize+4)

	typ, err := PeekIPCType(b)
	if err != nil {
		t.Fatalf("PeekIPCType: %s", err)
	}
	ttesting.AssertEqualUint16(t, "peeked type", typ, 0x0c)

	got, err := ParseIPC(b)
	if err != nil {
		t.Fatalf("ParseIPC: %s", err)
	}
	ttesting.AssertEqualUint16(t, "type", got.Type, 0x0c)
	ttesting.AssertEqualUint16(t, "server id", got.ServerID, 7)
	ttesting.AssertEqualUint32(t, "timestamp", got.Timestamp, 1700000000)
	ttesting.AssertEqualBytes(t, "body", got.Data, []byte("body"))
}

func TestIPCTruncated(t *testing.T) {
	if _, err := PeekIPCType([]byte{0, 0, 5}); !errors.Is(err, ErrTruncated) {
		t.Errorf("PeekIPCType error = %v; want ErrTruncated", err)
	}
	if _, err := ParseIPC(make([]byte, IPCHeaderSize-1)); !errors.Is(err, ErrTruncated) {
		t.Errorf("ParseIPC error = %v; want ErrTruncated", err)
	}
}
