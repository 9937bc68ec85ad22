package chat

import (
	"log/slog"
	"sync"

	"github.com/Logesh0108/secure-chat-backend/internal/metrics"
)

// Registry tracks the set of currently open connections. It owns no logic
// beyond membership: registration, removal, and snapshot enumeration.
type Registry struct {
	mu    sync.RWMutex
	conns map[*Connection]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[*Connection]struct{}),
	}
}

// Register adds the connection and transitions it to Open. The two happen
// under the registry lock so there is no window where a connection is
// registered but not yet open. The failure hook is installed first, so a
// delivery failure on a freshly registered connection can never find it
// unset. Callers register exactly once per accepted connection.
func (r *Registry) Register(c *Connection) {
	c.OnWriteFailure(func() { r.Unregister(c) })

	r.mu.Lock()
	r.conns[c] = struct{}{}
	c.transitionOpen()
	total := len(r.conns)
	r.mu.Unlock()

	metrics.ConnectedClients.Set(float64(total))
	slog.Info("Client registered", "user", c.User(), "total_clients", total)
}

// Unregister removes the connection if present, transitions it to Closed,
// and tears down its transport. A connection that is already gone is a
// no-op, since disconnects race with delivery-failure evictions.
func (r *Registry) Unregister(c *Connection) {
	r.mu.Lock()
	_, present := r.conns[c]
	if present {
		delete(r.conns, c)
		c.transitionClosed()
	}
	total := len(r.conns)
	r.mu.Unlock()

	if !present {
		return
	}

	c.shutdown()
	metrics.ConnectedClients.Set(float64(total))
	slog.Info("Client unregistered", "user", c.User(), "total_clients", total)
}

// Snapshot returns the membership as of the call. The broadcaster iterates
// this copy, never the live map, so concurrent unregistration cannot
// invalidate an in-flight fan-out.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the current number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll gracefully closes every registered connection. Used on shutdown.
func (r *Registry) CloseAll(reason string) {
	for _, c := range r.Snapshot() {
		c.ShutdownGraceful(reason)
		r.Unregister(c)
	}
}
