// SPDX-License-Identifier: MIT
package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, wst *WebSocketTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", wst.Clients(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWebSocketBroadcastsColumns(t *testing.T) {
	wst := newWebSocketTransport("test")
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()
	defer wst.Close()

	a := dialTest(t, srv)
	b := dialTest(t, srv)
	waitForClients(t, wst, 2)

	sent := Column{Type: TypeColumn, Seq: 5, Height: 2, Pixels: []uint32{0xFF000000, 0xFFFFFFFF}}
	if err := wst.Send(sent); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got Column
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if got.Seq != 5 || got.Type != TypeColumn || len(got.Pixels) != 2 || got.Pixels[1] != 0xFFFFFFFF {
			t.Errorf("received %+v", got)
		}
	}
}

func TestWebSocketDropsDisconnectedClients(t *testing.T) {
	wst := newWebSocketTransport("test")
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()
	defer wst.Close()

	conn := dialTest(t, srv)
	waitForClients(t, wst, 1)

	conn.Close()
	waitForClients(t, wst, 0)
}

func TestWebSocketSendNeverBlocks(t *testing.T) {
	wst := newWebSocketTransport("test")
	defer wst.Close()

	// No clients: the broadcaster drains the queue; a burst larger than the
	// queue must still return immediately.
	done := make(chan struct{})
	go func() {
		for range 4 * broadcastQueue {
			_ = wst.Send(Event{Type: TypeResize})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked")
	}
}

func TestWebSocketClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	if !strings.HasPrefix(wst.Addr(), "127.0.0.1:") || strings.HasSuffix(wst.Addr(), ":0") {
		t.Errorf("Addr() = %q, want resolved port", wst.Addr())
	}
	if err := wst.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := wst.Send(Column{}); err == nil {
		t.Error("Send after Close returned nil")
	}
}

func TestLoggingTransportCountsColumns(t *testing.T) {
	lt := NewLoggingTransport()
	for i := range 3 {
		_ = lt.Send(Column{Type: TypeColumn, Seq: uint64(i + 1)})
	}
	_ = lt.Send(Event{Type: TypeConfig})
	_ = lt.Send("other")
	if lt.Columns() != 3 {
		t.Errorf("Columns() = %d, want 3", lt.Columns())
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
