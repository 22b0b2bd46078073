package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chessduel/client/pkg/logger"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newEchoServer echoes every text frame back, closes the socket on "bye".
func newEchoServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			mt, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(message) == "bye" {
				return
			}
			if err := conn.WriteMessage(mt, message); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsAddress(server *httptest.Server) string { return "ws" + strings.TrimPrefix(server.URL, "http") }

func TestWebsocket(t *testing.T) {
	testCases := []struct {
		name string
		test func(t *testing.T)
	}{
		{"If frames are echoed in order", testEcho},
		{"If a local close reports no error", testLocalClose},
		{"If a remote close reports an error", testRemoteClose},
	}
	for _, tc := range testCases {
		t.Run(tc.name, tc.test)
	}
}

func dial(t *testing.T, server *httptest.Server) *WS {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, err := Dial(ctx, wsAddress(server), Options{}, logger.Nop())
	if err != nil {
		t.Fatalf("couldn't connect to %v because of %v", server.URL, err)
	}
	return ws
}

func testEcho(t *testing.T) {
	ws := dial(t, newEchoServer(t))
	messages := make(chan string, 10)
	closed := make(chan error, 1)
	ws.Listen(func(m []byte) { messages <- string(m) }, func(err error) { closed <- err })

	want := []string{"a", "b", "c"}
	for _, m := range want {
		if err := ws.Write([]byte(m)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	for _, w := range want {
		select {
		case got := <-messages:
			if got != w {
				t.Errorf("got %v, want %v", got, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no echo for %v", w)
		}
	}
	ws.Close()
	<-closed
}

func testLocalClose(t *testing.T) {
	ws := dial(t, newEchoServer(t))
	closed := make(chan error, 1)
	ws.Listen(func([]byte) {}, func(err error) { closed <- err })
	ws.Close()
	ws.Close()

	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("local close has error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no close callback")
	}
	if err := ws.Write([]byte("late")); err != ErrClosed {
		t.Errorf("write after close returned %v", err)
	}
}

func testRemoteClose(t *testing.T) {
	ws := dial(t, newEchoServer(t))
	closed := make(chan error, 1)
	ws.Listen(func([]byte) {}, func(err error) { closed <- err })
	_ = ws.Write([]byte("bye"))

	select {
	case err := <-closed:
		if err == nil {
			t.Errorf("remote close has no error")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no close callback")
	}
}
