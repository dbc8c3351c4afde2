package wsclient

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/park285/eazews/internal/echoserver"
)

type event struct {
	kind    string
	payload Payload
	code    int
	reason  string
	err     error
}

func recordEvents(c *Client) chan event {
	ch := make(chan event, 32)
	c.OnOpen(func() { ch <- event{kind: "open"} })
	c.OnMessage(func(p Payload) { ch <- event{kind: "message", payload: p} })
	c.OnClose(func(code int, reason string) { ch <- event{kind: "close", code: code, reason: reason} })
	c.OnError(func(err error) { ch <- event{kind: "error", err: err} })
	return ch
}

func next(t *testing.T, ch chan event, kind string) event {
	t.Helper()
	return nextWithin(t, ch, kind, 5*time.Second)
}

func nextWithin(t *testing.T, ch chan event, kind string, d time.Duration) event {
	t.Helper()
	select {
	case ev := <-ch:
		if ev.kind != kind {
			t.Fatalf("expected %s event, got %+v", kind, ev)
		}
		return ev
	case <-time.After(d):
		t.Fatalf("timed out waiting for %s event", kind)
	}
	return event{}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialers() map[string]func(DialConfig) Dialer {
	return map[string]func(DialConfig) Dialer{
		"nhooyr":  func(c DialConfig) Dialer { return &NhooyrDialer{DialConfig: c} },
		"gorilla": func(c DialConfig) Dialer { return &GorillaDialer{DialConfig: c} },
	}
}

func TestEchoRoundTrip(t *testing.T) {
	srv := httptest.NewServer(echoserver.New())
	defer srv.Close()

	for name, mk := range dialers() {
		t.Run(name, func(t *testing.T) {
			c := New(wsURL(srv), WithDialer(mk(DialConfig{})))
			ch := recordEvents(c)
			c.Connect()

			next(t, ch, "open")
			welcome := next(t, ch, "message")
			if welcome.payload.String() != echoserver.DefaultWelcome {
				t.Fatalf("unexpected welcome: %q", welcome.payload.String())
			}

			if err := c.SendText("hi"); err != nil {
				t.Fatalf("send: %v", err)
			}
			echo := next(t, ch, "message")
			if !echo.payload.IsText() || echo.payload.String() != "Echo: hi" {
				t.Fatalf("unexpected echo: %+v", echo.payload)
			}

			bin := []byte{0xde, 0xad, 0xbe, 0xef}
			if err := c.Send(Binary(bin)); err != nil {
				t.Fatalf("send binary: %v", err)
			}
			got := next(t, ch, "message")
			if got.payload.Type != MessageBinary || !bytes.Equal(got.payload.Data, bin) {
				t.Fatalf("unexpected binary echo: %+v", got.payload)
			}

			_ = c.Close()
			cl := next(t, ch, "close")
			if cl.code != StatusNormalClosure {
				t.Fatalf("unexpected close code: %d", cl.code)
			}
			if err := c.SendText("late"); !errors.Is(err, ErrNotOpen) {
				t.Fatalf("expected ErrNotOpen after close, got %v", err)
			}
		})
	}
}

func TestDialFailureReportsErrorThenAbnormalClose(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	for name, mk := range dialers() {
		t.Run(name, func(t *testing.T) {
			c := New(wsURL(srv), WithDialer(mk(DialConfig{DialTimeout: 2 * time.Second})))
			ch := recordEvents(c)
			c.Connect()

			ev := next(t, ch, "error")
			if ev.err == nil {
				t.Fatalf("expected dial error")
			}
			cl := next(t, ch, "close")
			if cl.code != StatusAbnormalClosure {
				t.Fatalf("expected 1006, got %d", cl.code)
			}
		})
	}
}

func TestPeerCloseStatusPassedThrough(t *testing.T) {
	for name, mk := range dialers() {
		t.Run(name, func(t *testing.T) {
			s := echoserver.New()
			srv := httptest.NewServer(s)
			defer srv.Close()

			c := New(wsURL(srv), WithDialer(mk(DialConfig{})))
			ch := recordEvents(c)
			c.Connect()
			next(t, ch, "open")
			next(t, ch, "message")

			s.Shutdown()
			cl := next(t, ch, "close")
			if cl.code != 1001 || cl.reason != "server shutdown" {
				t.Fatalf("unexpected close: code=%d reason=%q", cl.code, cl.reason)
			}
		})
	}
}

func TestHandshakeHeaders(t *testing.T) {
	got := make(chan string, 2)
	inner := echoserver.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-User-Id")
		inner.ServeHTTP(w, r)
	}))
	defer srv.Close()

	cfg := DialConfig{HeaderProvider: func() map[string]string {
		return map[string]string{"X-User-Id": "u1", "X-Empty": " "}
	}}
	for name, mk := range dialers() {
		t.Run(name, func(t *testing.T) {
			c := New(wsURL(srv), WithDialer(mk(cfg)))
			ch := recordEvents(c)
			c.Connect()
			next(t, ch, "open")
			if v := <-got; v != "u1" {
				t.Fatalf("header not forwarded: %q", v)
			}
			_ = c.Close()
		})
	}
}

// silentPeer completes the upgrade and then never reads or writes.
func silentPeer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := websocket.Accept(w, r, nil); err != nil {
			return
		}
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func TestCloseAgainstSilentPeer(t *testing.T) {
	for name, mk := range dialers() {
		t.Run(name, func(t *testing.T) {
			srv := silentPeer(t)
			c := New(wsURL(srv), WithDialer(mk(DialConfig{WriteTimeout: 500 * time.Millisecond})))
			ch := recordEvents(c)
			c.Connect()
			next(t, ch, "open")

			start := time.Now()
			if err := c.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if d := time.Since(start); d > time.Second {
				t.Fatalf("close blocked for %v", d)
			}

			cl := nextWithin(t, ch, "close", 15*time.Second)
			if cl.code != StatusNormalClosure {
				t.Fatalf("unexpected close code: %d", cl.code)
			}
			if st := c.handle.ReadyState(); st != Closed {
				t.Fatalf("expected CLOSED after close event, got %s", st)
			}
		})
	}
}

func TestCloseWhileConnecting(t *testing.T) {
	for name, mk := range dialers() {
		t.Run(name, func(t *testing.T) {
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				<-release
			}))
			defer srv.Close()
			defer close(release)

			c := New(wsURL(srv), WithDialer(mk(DialConfig{})))
			ch := recordEvents(c)
			c.Connect()

			start := time.Now()
			if err := c.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if d := time.Since(start); d > time.Second {
				t.Fatalf("close blocked for %v", d)
			}

			cl := next(t, ch, "close")
			if cl.code != StatusNormalClosure {
				t.Fatalf("unexpected close code: %d", cl.code)
			}
			if st := c.handle.ReadyState(); st != Closed {
				t.Fatalf("expected CLOSED, got %s", st)
			}
			if err := c.SendText("x"); !errors.Is(err, ErrNotOpen) {
				t.Fatalf("expected ErrNotOpen, got %v", err)
			}
		})
	}
}
