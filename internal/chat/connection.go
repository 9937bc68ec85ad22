package chat

import (
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// SessionState tracks the lifecycle of one connection.
// Connecting → Open on registration; Open → Closed on close frame, transport
// error, or delivery failure. Closed is terminal: a client that wants back
// in must establish a new connection.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is the ephemeral handle to one live transport session. It owns
// the websocket exclusively from accept until Closed; all writes go through
// its writer goroutine so there is at most one writer per socket.
type Connection struct {
	conn   *websocket.Conn
	writer *clientWriter
	user   string
	state  atomic.Int32
}

// NewConnection wraps an accepted websocket with its user label and starts
// the per-connection writer. The connection starts in Connecting and only
// becomes a fan-out target once registered.
func NewConnection(conn *websocket.Conn, user string, clock clockwork.Clock) *Connection {
	c := &Connection{
		conn: conn,
		user: user,
	}
	c.state.Store(int32(StateConnecting))
	c.writer = newClientWriter(conn, clock)
	return c
}

// User returns the caller-supplied user label. It is not authenticated.
func (c *Connection) User() string {
	return c.user
}

// State returns the current session state.
func (c *Connection) State() SessionState {
	return SessionState(c.state.Load())
}

// OnWriteFailure sets the callback invoked when an asynchronous write or
// keepalive ping fails. The registry installs the self-healing unregister
// here, before the connection becomes reachable through any snapshot; the
// writer goroutine may already be running, so the handoff is atomic.
func (c *Connection) OnWriteFailure(fn func()) {
	c.writer.setOnFailure(fn)
}

// TrySend queues data for delivery without blocking. It reports false when
// the connection is not Open or its send buffer is full; either way the
// recipient is no longer keeping up and should be evicted by the caller.
func (c *Connection) TrySend(data []byte) bool {
	if c.State() != StateOpen {
		return false
	}
	return c.writer.trySend(data)
}

// transitionOpen moves Connecting → Open. Reports false if the connection
// was already open or closed.
func (c *Connection) transitionOpen() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// transitionClosed moves any non-terminal state to Closed. Reports false if
// the connection was closed already.
func (c *Connection) transitionClosed() bool {
	prev := c.state.Swap(int32(StateClosed))
	return SessionState(prev) != StateClosed
}

// shutdown stops the writer and closes the underlying socket. Idempotent.
func (c *Connection) shutdown() {
	c.writer.stop()
}

// ShutdownGraceful sends a close frame with the given reason before tearing
// the socket down. Used on server shutdown rather than on eviction.
func (c *Connection) ShutdownGraceful(reason string) {
	c.transitionClosed()
	c.writer.stopGraceful(reason)
}
