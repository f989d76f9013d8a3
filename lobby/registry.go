package lobby

import (
	"sync"

	tnet "badc0de.net/pkg/go-lobby/net"
)

// Reply is an IPC message a handler wants sent back to the client.
type Reply struct {
	Type uint16
	Data []byte
}

// HandlerFunc handles one decrypted IPC message. Returning a nil Reply sends
// nothing back.
type HandlerFunc func(s *Session, msg *tnet.IPCMessage) (*Reply, error)

// Registry maps IPC message types to handlers.
//
// Handlers are usually registered before the server starts accepting; the
// registry is nevertheless safe to modify while sessions are running.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uint16]HandlerFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uint16]HandlerFunc)}
}

// Handle registers h for messages of type ipcType, replacing any previous
// handler. A nil h removes the registration.
func (r *Registry) Handle(ipcType uint16, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, ipcType)
		return
	}
	r.handlers[ipcType] = h
}

// Lookup returns the handler for ipcType.
func (r *Registry) Lookup(ipcType uint16) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[ipcType]
	return h, ok
}
