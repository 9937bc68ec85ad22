package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authorize runs the full OTP round-trip for the address against a running
// test server and returns the session cookie header value.
func authorize(t *testing.T, baseURL string, sender *captureSender, address string) string {
	t.Helper()

	resp, err := http.Post(baseURL+"/auth/send-otp", "application/json",
		strings.NewReader(fmt.Sprintf(`{"email":%q}`, address)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code := codePattern.FindString(sender.lastBody())
	require.NotEmpty(t, code)

	resp, err = http.Post(baseURL+"/auth/verify-otp", "application/json",
		strings.NewReader(fmt.Sprintf(`{"email":%q,"otp":%q}`, address, code)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := resp.Header.Get("Set-Cookie")
	require.Contains(t, cookie, sessionName)
	return cookie
}

func dialChat(t *testing.T, baseURL, cookie, user string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/chat"
	if user != "" {
		wsURL += "?user=" + user
	}
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", cookie)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func assertNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	netErr, ok := err.(interface{ Timeout() bool })
	require.True(t, ok && netErr.Timeout(), "expected a read timeout, got: %v", err)
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(event)))
}

func TestChatWebSocket_RequiresVerifiedSession(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat?user=A"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatWebSocket_FullExchange(t *testing.T) {
	srv, sender := newTestServer(t, testConfig())
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	cookieA := authorize(t, ts.URL, sender, "a@example.com")
	cookieB := authorize(t, ts.URL, sender, "b@example.com")

	connA := dialChat(t, ts.URL, cookieA, "A")
	connB := dialChat(t, ts.URL, cookieB, "B")

	// A posts a text message; everyone receives the stored form.
	sendEvent(t, connA, `{"type":"message","text":"hi"}`)

	gotA := readEvent(t, connA)
	gotB := readEvent(t, connB)
	assert.Equal(t, gotA, gotB)

	assert.Equal(t, "message", gotA["type"])
	assert.Equal(t, "A", gotA["user"])
	assert.Equal(t, "hi", gotA["text"])
	assert.Equal(t, map[string]any{}, gotA["reactions"])
	messageID, _ := gotA["id"].(string)
	require.NotEmpty(t, messageID)

	// B reacts; both receive the full merged reaction map.
	sendEvent(t, connB, fmt.Sprintf(`{"type":"reaction","messageId":%q,"emoji":"👍"}`, messageID))

	want := map[string]any{
		"type":      "reaction",
		"messageId": messageID,
		"reactions": map[string]any{"👍": []any{"B"}},
	}
	assert.Equal(t, want, readEvent(t, connA))
	assert.Equal(t, want, readEvent(t, connB))

	// The same reaction again changes nothing but is still broadcast.
	sendEvent(t, connB, fmt.Sprintf(`{"type":"reaction","messageId":%q,"emoji":"👍"}`, messageID))
	assert.Equal(t, want, readEvent(t, connA))
	assert.Equal(t, want, readEvent(t, connB))

	// Typing reaches everyone except the sender.
	sendEvent(t, connA, `{"type":"typing"}`)
	assert.Equal(t, map[string]any{"type": "typing", "user": "A"}, readEvent(t, connB))
	assertNoEvent(t, connA)
}

func TestChatWebSocket_ImageMessage(t *testing.T) {
	srv, sender := newTestServer(t, testConfig())
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	cookie := authorize(t, ts.URL, sender, "a@example.com")
	conn := dialChat(t, ts.URL, cookie, "A")

	sendEvent(t, conn, `{"type":"image","image":"data:image/png;base64,AAAA"}`)

	got := readEvent(t, conn)
	assert.Equal(t, "image", got["type"])
	assert.Equal(t, "A", got["user"])
	assert.Equal(t, "data:image/png;base64,AAAA", got["image"])
	assert.Nil(t, got["text"])
}

func TestChatWebSocket_DefaultUserLabel(t *testing.T) {
	srv, sender := newTestServer(t, testConfig())
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	cookie := authorize(t, ts.URL, sender, "a@example.com")
	conn := dialChat(t, ts.URL, cookie, "")

	sendEvent(t, conn, `{"type":"message","text":"anonymous hello"}`)

	got := readEvent(t, conn)
	assert.Equal(t, "Unknown", got["user"])
}

func TestChatWebSocket_SurvivesBadFrames(t *testing.T) {
	srv, sender := newTestServer(t, testConfig())
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	cookie := authorize(t, ts.URL, sender, "a@example.com")
	conn := dialChat(t, ts.URL, cookie, "A")

	// Malformed JSON, an unknown type, and a reaction to a message that does
	// not exist are all dropped without closing the connection.
	sendEvent(t, conn, `{not json`)
	sendEvent(t, conn, `{"type":"shrug"}`)
	sendEvent(t, conn, `{"type":"reaction","messageId":"no-such-id","emoji":"👍"}`)

	sendEvent(t, conn, `{"type":"message","text":"still here"}`)
	got := readEvent(t, conn)
	assert.Equal(t, "still here", got["text"])
}

func TestChatWebSocket_RateLimitRejection(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectionsPerSec = 0.001
	cfg.ConnectionBurst = 1
	srv, sender := newTestServer(t, cfg)
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	cookie := authorize(t, ts.URL, sender, "a@example.com")
	_ = dialChat(t, ts.URL, cookie, "A")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat?user=B"
	header := http.Header{}
	header.Set("Cookie", cookie)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestChatWebSocket_GlobalCapRejection(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	srv, sender := newTestServer(t, cfg)
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	cookie := authorize(t, ts.URL, sender, "a@example.com")
	_ = dialChat(t, ts.URL, cookie, "A")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat?user=B"
	header := http.Header{}
	header.Set("Cookie", cookie)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestChatWebSocket_DisconnectFreesSlot(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	srv, sender := newTestServer(t, cfg)
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	cookie := authorize(t, ts.URL, sender, "a@example.com")
	conn := dialChat(t, ts.URL, cookie, "A")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return srv.limits.Current() == 0
	}, 2*time.Second, 10*time.Millisecond)

	conn2 := dialChat(t, ts.URL, cookie, "B")
	sendEvent(t, conn2, `{"type":"message","text":"reconnected"}`)
	got := readEvent(t, conn2)
	assert.Equal(t, "reconnected", got["text"])
}
