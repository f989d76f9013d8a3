// Package net implements the network framing used by the lobby protocol.
//
// A packet is a fixed 40-byte header followed by one or more segments. Each
// segment carries its own 16-byte header and a typed payload. Segments of
// type SegmentIPC carry an IPC message: a 16-byte envelope followed by a
// message-specific body.
//
// All integers on the wire are little-endian.
package net
