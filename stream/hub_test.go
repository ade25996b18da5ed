package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PrincetonUniversity/flock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) (string, flock.Snapshot) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, typ)
	runID, snap, err := Decode(data)
	require.NoError(t, err)
	return runID, snap
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub("run-1", nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	// the greeting tells the viewer which run it is watching
	runID, snap := read(t, conn)
	assert.Equal(t, "run-1", runID)
	assert.Empty(t, snap.Agents)
	require.Equal(t, 1, hub.Len())

	hub.Broadcast(testSnapshot())
	runID, snap = read(t, conn)
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, testSnapshot(), snap)
}

func TestHubGreetsWithLastSnapshot(t *testing.T) {
	hub := NewHub("run-2", nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	hub.Broadcast(testSnapshot())

	conn := dial(t, srv)
	_, snap := read(t, conn)
	assert.Equal(t, 42, snap.Tick)
	assert.Len(t, snap.Agents, 2)
}

func TestHubDropsLeavingViewers(t *testing.T) {
	hub := NewHub("run-3", nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	read(t, conn)
	require.Equal(t, 1, hub.Len())

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHubDropsStalledViewers(t *testing.T) {
	hub := NewHub("run-4", nil)
	hub.WriteTimeout = 50 * time.Millisecond
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	// this viewer never reads, so its socket buffers end up full
	dial(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	big := flock.Snapshot{Agents: make([]flock.AgentState, 20000)}
	assert.Eventually(t, func() bool {
		hub.Broadcast(big)
		return hub.Len() == 0
	}, 20*time.Second, time.Millisecond)
}
