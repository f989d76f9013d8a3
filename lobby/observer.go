package lobby

import (
	tnet "badc0de.net/pkg/go-lobby/net"
)

// Observer receives lobby events, e.g. to export them as metrics.
//
// Implementations are called from every session goroutine concurrently.
type Observer interface {
	SessionOpened()
	SessionClosed(reason string)
	Segment(t tnet.SegmentType)
	Handshake()
	IPCMessage(ipcType uint16, handled bool)
	Error(kind string)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) SessionOpened() {}
func (NopObserver) SessionClosed(string) {}
func (NopObserver) Segment(tnet.SegmentType) {}
func (NopObserver) Handshake() {}
func (NopObserver) IPCMessage(uint16, bool) {}
func (NopObserver) Error(string) {}
