package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHub(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()
	defer hub.Stop()

	// Mock client
	client := &Client{
		hub:  hub,
		send: make(chan []byte, 1),
	}

	// Test registration
	hub.register <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// Test broadcast
	hub.BroadcastJSON(map[string]string{"msg": "hello"})

	select {
	case received := <-client.send:
		assert.JSONEq(t, `{"msg":"hello"}`, string(received))
	case <-time.After(1 * time.Second):
		t.Fatal("Client did not receive broadcast message in time")
	}

	// Test unregistration
	hub.unregister <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()
	defer hub.Stop()

	slow := &Client{hub: hub, send: make(chan []byte)} // never read
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastJSON("tick")
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-slow.send
	assert.False(t, open, "dropped client's channel is closed")
}

func TestServeWsDeliversJobEvents(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(models.JobEvent{Type: "created", Job: models.Job{ID: "ab12cd34", Kind: models.KindConvert, Status: models.JobRunning}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev models.JobEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "created", ev.Type)
	assert.Equal(t, "ab12cd34", ev.Job.ID)
	assert.Equal(t, models.JobRunning, ev.Job.Status)
}
