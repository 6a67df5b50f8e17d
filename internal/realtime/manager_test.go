package realtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/auth"
)

func newTestServer(t *testing.T, m *Manager, id auth.Identity) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", auth.WithIdentity(id), m.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotifyUserReachesOnlyThatUser(t *testing.T) {
	m := NewManager("*", zap.NewNop())
	defer m.Close()

	alice := dial(t, newTestServer(t, m, auth.Identity{UserID: "alice", SessionID: "s1"}))
	bob := dial(t, newTestServer(t, m, auth.Identity{UserID: "bob", SessionID: "s2"}))

	require.Eventually(t, func() bool { return m.ConnectionCount("") == 2 }, time.Second, 10*time.Millisecond)

	m.NotifyUser("alice", EventCompleteness, map[string]any{"incomplete": []string{"industries"}})

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	require.NoError(t, alice.ReadJSON(&got))
	assert.Equal(t, EventCompleteness, got.Type)
	assert.Equal(t, "alice", got.Target)
	assert.Equal(t, map[string]any{"incomplete": []any{"industries"}}, got.Data)

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
}

func TestHelloIsAnswered(t *testing.T) {
	m := NewManager("", zap.NewNop())
	defer m.Close()

	conn := dial(t, newTestServer(t, m, auth.Identity{UserID: "carol", SessionID: "s9"}))
	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeHello}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventStatus, got.Type)
	data, ok := got.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, "s9", data["session_id"])
}

func TestCloseDisconnectsClients(t *testing.T) {
	m := NewManager("*", zap.NewNop())
	conn := dial(t, newTestServer(t, m, auth.Identity{UserID: "dave"}))
	require.Eventually(t, func() bool { return m.ConnectionCount("dave") == 1 }, time.Second, 10*time.Millisecond)

	m.Close()
	m.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, m.ConnectionCount(""))

	// Events after Close are dropped without blocking.
	m.NotifyUser("dave", EventDigest, nil)
}

func TestOriginCheck(t *testing.T) {
	m := NewManager("https://portal.example.com", zap.NewNop())
	defer m.Close()
	srv := newTestServer(t, m, auth.Identity{UserID: "erin"})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
