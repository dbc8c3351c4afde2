package echoserver

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) (websocket.MessageType, []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return typ, data
}

func TestWelcomeAndEcho(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialTest(t, srv)
	defer conn.Close(websocket.StatusNormalClosure, "")

	typ, data := readText(t, conn)
	if typ != websocket.MessageText || string(data) != DefaultWelcome {
		t.Fatalf("unexpected welcome: %v %q", typ, data)
	}

	ctx := context.Background()
	if err := conn.Write(ctx, websocket.MessageText, []byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data = readText(t, conn)
	if string(data) != "Echo: hi" {
		t.Fatalf("unexpected echo: %q", data)
	}

	bin := []byte{1, 2, 3}
	if err := conn.Write(ctx, websocket.MessageBinary, bin); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	typ, data = readText(t, conn)
	if typ != websocket.MessageBinary || !bytes.Equal(data, bin) {
		t.Fatalf("unexpected binary echo: %v %v", typ, data)
	}

	st := s.Stats()
	if st.Accepted != 1 || st.Active != 1 || st.TextMessages != 1 || st.BinaryMessages != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if len(st.Sessions) != 1 {
		t.Fatalf("expected one session id, got %v", st.Sessions)
	}
}

func TestCustomWelcome(t *testing.T) {
	srv := httptest.NewServer(New(WithWelcome("hello there")))
	defer srv.Close()
	conn := dialTest(t, srv)
	defer conn.Close(websocket.StatusNormalClosure, "")
	_, data := readText(t, conn)
	if string(data) != "hello there" {
		t.Fatalf("unexpected welcome: %q", data)
	}
}

func TestShutdownClosesSessions(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s)
	defer srv.Close()
	conn := dialTest(t, srv)
	readText(t, conn)

	go s.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Fatalf("expected going away close, got %v", err)
	}
}
