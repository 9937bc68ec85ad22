package chat

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// wsPair upgrades one websocket through a throwaway test server and returns
// both ends: the server-side conn for wrapping in a Connection, and the
// client-side conn for asserting on delivered frames.
func wsPair(t *testing.T) (*ws.Conn, *ws.Conn) {
	t.Helper()

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	serverConns := make(chan *ws.Conn, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-serverConns:
		return conn, client
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server side of websocket")
		return nil, nil
	}
}

// newTestConnection builds a registered-ready Connection around a real
// websocket, returning the client side alongside it.
func newTestConnection(t *testing.T, user string) (*Connection, *ws.Conn) {
	t.Helper()
	server, client := wsPair(t)
	conn := NewConnection(server, user, clockwork.NewRealClock())
	t.Cleanup(conn.shutdown)
	return conn, client
}

// snapshotHas reports registry membership by connection identity. Snapshot
// entries are live connections with running writer goroutines, so membership
// is checked by pointer, never by comparing connection contents.
func snapshotHas(reg *Registry, c *Connection) bool {
	return slices.Contains(reg.Snapshot(), c)
}

// readFrame reads one text frame from the client side with a deadline.
func readFrame(t *testing.T, client *ws.Conn) []byte {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	return data
}
