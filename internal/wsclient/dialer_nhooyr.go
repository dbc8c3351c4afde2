package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
)

// NhooyrDialer dials with nhooyr.io/websocket. It is the default dialer.
type NhooyrDialer struct {
	DialConfig

	HTTPClient      *http.Client
	CompressionMode websocket.CompressionMode
}

func (d *NhooyrDialer) Dial(endpoint string, h Handlers) Transport {
	t := &nhooyrHandle{cfg: *d}
	t.init(h)
	go t.run(endpoint)
	return t
}

type nhooyrHandle struct {
	handleBase
	cfg NhooyrDialer

	conn *websocket.Conn
}

func (t *nhooyrHandle) run(endpoint string) {
	defer t.cancel()

	dialCtx, cancel := context.WithTimeout(t.ctx, t.cfg.dialTimeout())
	conn, _, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{
		HTTPClient:      t.cfg.HTTPClient,
		HTTPHeader:      t.cfg.buildHeaders(),
		Subprotocols:    t.cfg.Subprotocols,
		CompressionMode: t.cfg.CompressionMode,
	})
	cancel()
	if err != nil {
		t.fail(fmt.Errorf("dial %s: %w", endpoint, err))
		return
	}
	if t.cfg.ReadLimit > 0 {
		conn.SetReadLimit(t.cfg.ReadLimit)
	}

	t.mu.Lock()
	if t.state != Connecting {
		// closed while the handshake was in flight
		t.state = Closed
		t.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		t.fireClose(StatusNormalClosure, "")
		return
	}
	t.conn = conn
	t.state = Open
	t.mu.Unlock()

	t.fireOpen()
	t.listen(conn)
}

func (t *nhooyrHandle) listen(conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(t.ctx)
		if err != nil {
			var ce websocket.CloseError
			if errors.As(err, &ce) {
				t.markClosed()
				t.fireClose(int(ce.Code), ce.Reason)
				return
			}
			t.fail(err)
			return
		}
		if typ == websocket.MessageBinary {
			t.fireMessage(Binary(data))
		} else {
			t.fireMessage(Payload{Type: MessageText, Data: data})
		}
	}
}

func (t *nhooyrHandle) Send(p Payload) error {
	t.mu.Lock()
	conn, st := t.conn, t.state
	t.mu.Unlock()
	if st != Open || conn == nil {
		return &NotOpenError{HasHandle: true, State: st}
	}

	typ := websocket.MessageText
	if p.Type == MessageBinary {
		typ = websocket.MessageBinary
	}
	ctx, cancel := context.WithTimeout(t.ctx, t.cfg.writeTimeout())
	defer cancel()
	return conn.Write(ctx, typ, p.Data)
}

func (t *nhooyrHandle) Close() error {
	switch t.beginClose() {
	case Connecting:
		t.cancel()
		return nil
	case Open:
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		// The handshake runs in the background; listen reports the close event.
		// Cancelling ctx afterwards unblocks a Read left waiting on a silent peer.
		go func() {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			t.cancel()
		}()
		return nil
	default:
		return nil
	}
}
