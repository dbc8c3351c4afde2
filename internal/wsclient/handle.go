package wsclient

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// DialConfig holds the settings shared by all dialers.
type DialConfig struct {
	HeaderProvider HeaderProvider
	Subprotocols   []string
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	// ReadLimit caps a single incoming message; zero keeps the driver default.
	ReadLimit int64
}

func (c DialConfig) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return defaultDialTimeout
}

func (c DialConfig) writeTimeout() time.Duration {
	if c.WriteTimeout > 0 {
		return c.WriteTimeout
	}
	return defaultWriteTimeout
}

func (c DialConfig) buildHeaders() http.Header {
	hdr := http.Header{}
	if c.HeaderProvider == nil {
		return hdr
	}
	for k, v := range c.HeaderProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}

// handleBase tracks ready state and event delivery for one handle. Events are fired
// from the handle's own goroutine only, so they arrive in order.
type handleBase struct {
	h Handlers

	state ReadyState
	mu    sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

func (b *handleBase) init(h Handlers) {
	b.h = h
	b.state = Connecting
	b.ctx, b.cancel = context.WithCancel(context.Background())
}

func (b *handleBase) ReadyState() ReadyState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// beginClose moves the handle to Closing and reports the state it left.
func (b *handleBase) beginClose() ReadyState {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.state
	if prev == Connecting || prev == Open {
		b.state = Closing
	}
	return prev
}

// markClosed sets Closed and reports whether a local close was in progress.
func (b *handleBase) markClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	closing := b.state == Closing
	b.state = Closed
	return closing
}

func (b *handleBase) fireOpen() {
	if b.h.OnOpen != nil {
		b.h.OnOpen()
	}
}

func (b *handleBase) fireMessage(p Payload) {
	if b.h.OnMessage != nil {
		b.h.OnMessage(p)
	}
}

func (b *handleBase) fireClose(code int, reason string) {
	if b.h.OnClose != nil {
		b.h.OnClose(code, reason)
	}
}

func (b *handleBase) fireError(err error) {
	if b.h.OnError != nil {
		b.h.OnError(err)
	}
}

// fail reports a connection that ended without a close frame.
func (b *handleBase) fail(err error) {
	if b.markClosed() {
		b.fireClose(StatusNormalClosure, "")
		return
	}
	b.fireError(err)
	b.fireClose(StatusAbnormalClosure, "")
}
