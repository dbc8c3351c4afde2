package wsclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// GorillaDialer dials with github.com/gorilla/websocket.
type GorillaDialer struct {
	DialConfig

	EnableCompression bool
}

func (d *GorillaDialer) Dial(endpoint string, h Handlers) Transport {
	t := &gorillaHandle{cfg: *d}
	t.init(h)
	go t.run(endpoint)
	return t
}

type gorillaHandle struct {
	handleBase
	cfg GorillaDialer

	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (t *gorillaHandle) run(endpoint string) {
	defer t.cancel()

	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  t.cfg.dialTimeout(),
		Subprotocols:      t.cfg.Subprotocols,
		EnableCompression: t.cfg.EnableCompression,
	}
	conn, resp, err := dialer.DialContext(t.ctx, endpoint, t.cfg.buildHeaders())
	if err != nil {
		if resp != nil {
			var body []byte
			if resp.Body != nil {
				body, _ = io.ReadAll(io.LimitReader(resp.Body, 4096))
				_ = resp.Body.Close()
			}
			err = fmt.Errorf("dial %s: status=%d body=%s: %w", endpoint, resp.StatusCode, string(body), err)
		} else {
			err = fmt.Errorf("dial %s: %w", endpoint, err)
		}
		t.fail(err)
		return
	}
	if t.cfg.ReadLimit > 0 {
		conn.SetReadLimit(t.cfg.ReadLimit)
	}

	t.mu.Lock()
	if t.state != Connecting {
		t.state = Closed
		t.mu.Unlock()
		_ = conn.Close()
		t.fireClose(StatusNormalClosure, "")
		return
	}
	t.conn = conn
	t.state = Open
	t.mu.Unlock()

	t.fireOpen()
	t.listen(conn)
}

func (t *gorillaHandle) listen(conn *websocket.Conn) {
	defer conn.Close()
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				t.markClosed()
				t.fireClose(ce.Code, ce.Text)
				return
			}
			t.fail(err)
			return
		}
		switch typ {
		case websocket.TextMessage:
			t.fireMessage(Payload{Type: MessageText, Data: data})
		case websocket.BinaryMessage:
			t.fireMessage(Binary(data))
		}
	}
}

func (t *gorillaHandle) Send(p Payload) error {
	t.mu.Lock()
	conn, st := t.conn, t.state
	t.mu.Unlock()
	if st != Open || conn == nil {
		return &NotOpenError{HasHandle: true, State: st}
	}

	typ := websocket.TextMessage
	if p.Type == MessageBinary {
		typ = websocket.BinaryMessage
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.writeTimeout()))
	return conn.WriteMessage(typ, p.Data)
}

func (t *gorillaHandle) Close() error {
	switch t.beginClose() {
	case Connecting:
		t.cancel()
		return nil
	case Open:
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.cfg.writeTimeout())); err != nil {
			_ = conn.Close()
			return fmt.Errorf("write close frame: %w", err)
		}
		// a peer that never answers the close frame must not keep listen blocked
		time.AfterFunc(t.cfg.writeTimeout(), func() { _ = conn.Close() })
		return nil
	default:
		return nil
	}
}
