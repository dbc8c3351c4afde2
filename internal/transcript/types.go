package transcript

import (
	"context"
	"errors"
	"time"
)

type Kind string

const (
	KindOpen    Kind = "open"
	KindMessage Kind = "message"
	KindClose   Kind = "close"
	KindError   Kind = "error"
)

type Direction string

const (
	DirectionIn    Direction = "in"
	DirectionOut   Direction = "out"
	DirectionLocal Direction = "local"
)

// Entry is one recorded connection event.
type Entry struct {
	SessionID   string    `json:"session_id"`
	Seq         int64     `json:"seq"`
	Kind        Kind      `json:"kind"`
	Direction   Direction `json:"direction"`
	PayloadType string    `json:"payload_type,omitempty"`
	Data        []byte    `json:"data,omitempty"`
	Code        int       `json:"code,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

var ErrInvalidEntry = errors.New("transcript entry requires a session id")

// Store persists entries per session. List returns entries in Seq order;
// limit <= 0 returns everything.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, sessionID string, limit int) ([]*Entry, error)
	Close() error
}
