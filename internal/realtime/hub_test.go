package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu    sync.Mutex
	total int
}

func (o *countingObserver) WebsocketConnected(delta int) {
	o.mu.Lock()
	o.total += delta
	o.mu.Unlock()
}

func (o *countingObserver) value() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.total
}

func startServer(t *testing.T, hub *Hub, inbound InboundFunc) *httptest.Server {
	t.Helper()
	upgrader := NewUpgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(context.Background(), conn, r.URL.Query().Get("team"), r.URL.Query().Get("user"), inbound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, team, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?team=" + team + "&user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastReachesOnlyTeamClients(t *testing.T) {
	observer := &countingObserver{}
	hub := NewHub(observer, nil)
	srv := startServer(t, hub, nil)

	member := dial(t, srv, "team-1", "u1")
	outsider := dial(t, srv, "team-2", "u2")
	waitFor(t, func() bool { return hub.ClientCount("team-1") == 1 && hub.ClientCount("team-2") == 1 })
	assert.Equal(t, 2, observer.value())

	hub.Broadcast("team-1", "message", map[string]string{"content": "hi"})

	require.NoError(t, member.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := member.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type   string            `json:"type"`
		TeamID string            `json:"teamId"`
		Data   map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, "message", event.Type)
	assert.Equal(t, "team-1", event.TeamID)
	assert.Equal(t, "hi", event.Data["content"])

	require.NoError(t, outsider.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = outsider.ReadMessage()
	assert.Error(t, err)
}

func TestHubInboundAndDisconnect(t *testing.T) {
	observer := &countingObserver{}
	hub := NewHub(observer, nil)

	received := make(chan string, 1)
	srv := startServer(t, hub, func(ctx context.Context, teamID, userID, content string) error {
		received <- teamID + "/" + userID + "/" + content
		return nil
	})

	conn := dial(t, srv, "team-1", "u1")
	waitFor(t, func() bool { return hub.ClientCount("team-1") == 1 })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("  hello  ")))
	select {
	case got := <-received:
		assert.Equal(t, "team-1/u1/hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not delivered")
	}

	require.NoError(t, conn.Close())
	waitFor(t, func() bool { return hub.ClientCount("team-1") == 0 })
	waitFor(t, func() bool { return observer.value() == 0 })
}

func TestUpgraderOrigins(t *testing.T) {
	upgrader := NewUpgrader([]string{"https://app.example.com/"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, upgrader.CheckOrigin(req))
}
