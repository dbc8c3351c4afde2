package wsclient

import "fmt"

// ReadyState mirrors the browser WebSocket readyState numbering.
type ReadyState int

const (
	Connecting ReadyState = iota
	Open
	Closing
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Open:
		return "OPEN"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	default:
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
}

type MessageType int

const (
	MessageText MessageType = iota + 1
	MessageBinary
)

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Payload is a single WebSocket message, either text or binary.
type Payload struct {
	Type MessageType
	Data []byte
}

func Text(s string) Payload { return Payload{Type: MessageText, Data: []byte(s)} }

func Binary(b []byte) Payload { return Payload{Type: MessageBinary, Data: b} }

func (p Payload) IsText() bool { return p.Type == MessageText }

// String returns the data as text regardless of type.
func (p Payload) String() string { return string(p.Data) }

// Handlers receive the lifecycle events of one transport handle.
type Handlers struct {
	OnOpen    func()
	OnMessage func(p Payload)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

// Transport is a live connection handle produced by a Dialer.
type Transport interface {
	ReadyState() ReadyState
	Send(p Payload) error
	Close() error
}

// Dialer creates transport handles. Dial must return without blocking on the network;
// the handle starts in Connecting and reports progress through h.
type Dialer interface {
	Dial(endpoint string, h Handlers) Transport
}

type DialerFunc func(endpoint string, h Handlers) Transport

func (f DialerFunc) Dial(endpoint string, h Handlers) Transport { return f(endpoint, h) }

// HeaderProvider supplies extra handshake headers per dial.
type HeaderProvider func() map[string]string

const (
	StatusNormalClosure = 1000
	// StatusAbnormalClosure is reported when the connection drops without a close frame.
	StatusAbnormalClosure = 1006
)
