package wsclient

import (
	"sync"

	"go.uber.org/zap"
)

type (
	OpenCallback    func()
	MessageCallback func(p Payload)
	CloseCallback   func(code int, reason string)
	ErrorCallback   func(err error)
)

// Client wraps a single WebSocket handle and re-dispatches its events to at most one
// callback per event kind. Registering a callback replaces the previous one.
type Client struct {
	endpoint string
	dialer   Dialer
	logger   *zap.Logger

	closeOnReconnect bool

	handle Transport
	gen    uint64
	mu     sync.Mutex

	onOpen    OpenCallback
	onMessage MessageCallback
	onClose   CloseCallback
	onError   ErrorCallback
	cbM       sync.RWMutex
}

type Option func(*Client)

func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCloseOnReconnect makes Connect close the handle it replaces.
// By default the old handle is abandoned as is.
func WithCloseOnReconnect(v bool) Option {
	return func(c *Client) { c.closeOnReconnect = v }
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{endpoint: endpoint}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = &NhooyrDialer{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

func (c *Client) Endpoint() string { return c.endpoint }

// Connect creates a new handle for the endpoint and replaces the current one.
// Events from a replaced handle are no longer dispatched.
func (c *Client) Connect() {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	prev := c.handle
	c.mu.Unlock()

	if prev != nil && c.closeOnReconnect {
		if err := prev.Close(); err != nil {
			c.logger.Warn("ws_close_replaced_failed", zap.String("endpoint", c.endpoint), zap.Error(err))
		}
	}

	h := c.dialer.Dial(c.endpoint, c.handlersFor(gen))

	c.mu.Lock()
	if c.gen == gen {
		c.handle = h
	}
	c.mu.Unlock()
}

// Send forwards p to the transport. It fails with *NotOpenError unless the handle is open.
func (c *Client) Send(p Payload) error {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()

	if h == nil {
		return &NotOpenError{}
	}
	if st := h.ReadyState(); st != Open {
		return &NotOpenError{HasHandle: true, State: st}
	}
	return h.Send(p)
}

func (c *Client) SendText(s string) error { return c.Send(Text(s)) }

// Close asks the current handle to close. Without a handle it does nothing.
func (c *Client) Close() error {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close()
}

func (c *Client) OnOpen(cb OpenCallback) {
	c.cbM.Lock()
	c.onOpen = cb
	c.cbM.Unlock()
}

func (c *Client) OnMessage(cb MessageCallback) {
	c.cbM.Lock()
	c.onMessage = cb
	c.cbM.Unlock()
}

func (c *Client) OnClose(cb CloseCallback) {
	c.cbM.Lock()
	c.onClose = cb
	c.cbM.Unlock()
}

func (c *Client) OnError(cb ErrorCallback) {
	c.cbM.Lock()
	c.onError = cb
	c.cbM.Unlock()
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Client) handlersFor(gen uint64) Handlers {
	return Handlers{
		OnOpen: func() {
			if !c.current(gen) {
				return
			}
			c.logger.Info("ws_connected", zap.String("endpoint", c.endpoint))
			c.cbM.RLock()
			cb := c.onOpen
			c.cbM.RUnlock()
			if cb != nil {
				cb()
			}
		},
		OnMessage: func(p Payload) {
			if !c.current(gen) {
				return
			}
			c.cbM.RLock()
			cb := c.onMessage
			c.cbM.RUnlock()
			if cb != nil {
				cb(p)
			}
		},
		OnClose: func(code int, reason string) {
			if !c.current(gen) {
				return
			}
			c.logger.Info("ws_disconnected", zap.String("endpoint", c.endpoint), zap.Int("code", code), zap.String("reason", reason))
			c.cbM.RLock()
			cb := c.onClose
			c.cbM.RUnlock()
			if cb != nil {
				cb(code, reason)
			}
		},
		OnError: func(err error) {
			if !c.current(gen) {
				return
			}
			c.logger.Error("ws_error", zap.String("endpoint", c.endpoint), zap.Error(err))
			c.cbM.RLock()
			cb := c.onError
			c.cbM.RUnlock()
			if cb != nil {
				cb(err)
			}
		},
	}
}
