package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)
	return hub
}

func dialClient(t *testing.T, hub *Hub, userID int64) *websocket.Conn {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, userID)
		if !hub.Attach(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount(userID) > 0 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestHub_PublishReachesUserConnections(t *testing.T) {
	hub := startHub(t)

	first := dialClient(t, hub, 7)
	second := dialClient(t, hub, 7)
	require.Eventually(t, func() bool { return hub.ClientCount(7) == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.PublishEvent(7, []byte(`{"eventType":"model_liked"}`))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		require.JSONEq(t, `{"eventType":"model_liked"}`, string(msg))
	}
}

func TestHub_PublishSkipsOtherUsers(t *testing.T) {
	hub := startHub(t)

	other := dialClient(t, hub, 8)
	hub.PublishEvent(9, []byte(`{"eventType":"user_followed"}`))

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := other.ReadMessage()
	require.Error(t, err, "user 8 must not receive user 9's events")
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub := startHub(t)

	conn := dialClient(t, hub, 11)
	require.Equal(t, 1, hub.ClientCount(11))

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount(11) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{hub: hub, send: make(chan []byte, 1), UserID: 3}
	hub.registerClient(client)

	done := make(chan struct{})
	go func() {
		hub.PublishEvent(3, []byte("one"))
		hub.PublishEvent(3, []byte("two"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishEvent blocked on a full buffer")
	}

	require.Equal(t, []byte("one"), <-client.send)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	client := &Client{hub: hub, send: make(chan []byte, 1), UserID: 4}
	hub.registerClient(client)

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	_, ok := <-client.send
	require.False(t, ok)
	require.Zero(t, hub.ClientCount(4))
}

func TestHub_AttachAfterStopDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	cancel()
	<-stopped

	attached := make(chan bool, 1)
	go func() { attached <- hub.Attach(&Client{UserID: 5, send: make(chan []byte, 1)}) }()

	select {
	case ok := <-attached:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Attach blocked after the hub stopped")
	}
	require.Zero(t, hub.ClientCount(5))
}
