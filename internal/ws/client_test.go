package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
)

type fakeConn struct {
	inbound  chan []byte
	closedCh chan struct{}
	once     sync.Once

	mu      sync.Mutex
	written []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8), closedCh: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-f.inbound:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return websocket.TextMessage, data, nil
	case <-f.closedCh:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closedCh:
		return errors.New("use of closed connection")
	default:
	}
	if messageType == websocket.TextMessage {
		f.mu.Lock()
		f.written = append(f.written, string(data))
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closedCh) })
	return nil
}

func (f *fakeConn) frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func TestClientRunJoinsPushesAndCleansUp(t *testing.T) {
	hub, registry := newTestHub(HubConfig{SendBuffer: 8})
	conn := newFakeConn()
	client := hub.OnConnect(conn, ConnInfo{})

	done := make(chan struct{})
	go func() {
		client.Run()
		close(done)
	}()

	conn.inbound <- []byte(`{"event":"join","data":"` + alice + `"}`)
	require.Eventually(t, func() bool {
		_, ok := registry.Lookup(alice)
		return ok
	}, time.Second, 5*time.Millisecond)

	require.True(t, hub.Push(alice, models.EventReceiveMessage, map[string]string{"content": "hi"}))
	require.Eventually(t, func() bool { return len(conn.frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, conn.frames()[0], `"event":"receiveMessage"`)

	close(conn.inbound)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not exit")
	}

	_, ok := registry.Lookup(alice)
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())
}

func TestShutdownClosesLiveConnections(t *testing.T) {
	hub, _ := newTestHub(HubConfig{})
	conn := newFakeConn()
	client := hub.OnConnect(conn, ConnInfo{})

	done := make(chan struct{})
	go func() {
		client.Run()
		close(done)
	}()

	hub.Shutdown()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client did not stop after shutdown")
	}
	assert.Equal(t, 0, hub.Len())
}

func newWSServer(t *testing.T, requireToken bool) (*httptest.Server, *auth.JWTVerifier, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	verifier := auth.NewJWTVerifier("test-secret")
	hub := NewHub(presence.NewRegistry(), HubConfig{RequireToken: requireToken}, zerolog.Nop())
	handler := NewHandler(hub, verifier, "http://localhost:3000", zerolog.Nop())

	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/ws", handler.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return srv, verifier, hub
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestHandlerRejectsMissingTokenWhenRequired(t *testing.T) {
	srv, _, _ := newWSServer(t, true)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlerRejectsForeignOrigin(t *testing.T) {
	srv, _, _ := newWSServer(t, false)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandlerRefusesJoinForAnotherUser(t *testing.T) {
	srv, verifier, _ := newWSServer(t, true)
	token, err := verifier.Issue(alice, time.Hour)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"join","data":"`+bob+`"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"error"`)
	assert.Contains(t, string(data), ErrJoinForbidden.Error())
}

func connectedInfo(t *testing.T, hub *Hub) ConnInfo {
	t.Helper()
	var info ConnInfo
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		if len(hub.clients) != 1 {
			return false
		}
		for _, c := range hub.clients {
			info = c.Info()
		}
		return true
	}, time.Second, 10*time.Millisecond)
	return info
}

func TestHandlerRecordsMintedRequestID(t *testing.T) {
	srv, _, hub := newWSServer(t, false)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	info := connectedInfo(t, hub)
	assert.NotEmpty(t, info.RequestID)
	assert.NotEmpty(t, info.ConnID)
}

func TestHandlerKeepsCallerRequestID(t *testing.T) {
	srv, _, hub := newWSServer(t, false)

	header := http.Header{"X-Request-Id": []string{"req-42"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "req-42", connectedInfo(t, hub).RequestID)
}
