package net

import (
	"bytes"
	"encoding/binary"
	"time"
)

// IPCHeaderSize is the length of the IPC envelope.
const IPCHeaderSize = 16

// IPCHeader is the envelope in front of every IPC message.
type IPCHeader struct {
	Reserved  uint16
	Type      uint16
	Padding   uint16
	ServerID  uint16
	Timestamp uint32 // seconds since the epoch
	Padding1  uint32
}

// NewIPCHeader returns an envelope for an outbound message of type ipcType.
func NewIPCHeader(serverID, ipcType uint16, now time.Time) IPCHeader {
	return IPCHeader{
		Type:      ipcType,
		ServerID:  serverID,
		Timestamp: uint32(now.Unix()),
	}
}

// IPCMessage is an IPC envelope with its body.
type IPCMessage struct {
	IPCHeader
	Data []byte
}

// PeekIPCType returns the message type of the IPC message in b without
// decoding the rest of the envelope.
func PeekIPCType(b []byte) (uint16, error) {
	if len(b) < 4 {
		return 0, framingErrorf("ipc", ErrTruncated, "message type needs 4 bytes, have %d", len(b))
	}
	return binary.LittleEndian.Uint16(b[2:4]), nil
}

// ParseIPC decodes the envelope at the start of b. The rest of b becomes the
// message body.
func ParseIPC(b []byte) (*IPCMessage, error) {
	if len(b) < IPCHeaderSize {
		return nil, framingErrorf("ipc", ErrTruncated, "envelope needs %d bytes, have %d", IPCHeaderSize, len(b))
	}
	msg := &IPCMessage{}
	if err := binary.Read(bytes.NewReader(b[:IPCHeaderSize]), binary.LittleEndian, &msg.IPCHeader); err != nil {
		return nil, framingErrorf("ipc", ErrTruncated, "envelope: %s", err)
	}
	msg.Data = b[IPCHeaderSize:]
	return msg, nil
}

// Bytes serializes the envelope followed by the body.
func (m *IPCMessage) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, IPCHeaderSize+len(m.Data)))
	binary.Write(buf, binary.LittleEndian, &m.IPCHeader)
	buf.Write(m.Data)
	return buf.Bytes()
}
