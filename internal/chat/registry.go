package chat

import (
	"sync"
	"time"
)

// Peer represents a connected remote side with a live session.
type Peer struct {
	Conn      Conn
	Transport string
	Since     time.Time
}

// Registry tracks the peers whose sessions are still running.
// Once every session has ended it is back to its empty state.
type Registry struct {
	peers  map[*Peer]struct{}
	served uint64
	mu     sync.RWMutex
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[*Peer]struct{}),
	}
}

// Register adds a peer for conn to the registry.
func (r *Registry) Register(conn Conn, transport string) *Peer {
	p := &Peer{Conn: conn, Transport: transport, Since: time.Now()}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p] = struct{}{}
	return p
}

// Unregister removes a peer from the registry.
func (r *Registry) Unregister(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p]; ok {
		delete(r.peers, p)
		r.served++
	}
}

// ActiveCount returns number of peers with a running session.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Served returns how many sessions have ended.
func (r *Registry) Served() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.served
}

// CloseAll closes every registered connection, unblocking their sessions.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for p := range r.peers {
		p.Conn.Close()
	}
}
