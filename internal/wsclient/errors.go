package wsclient

import (
	"errors"
	"fmt"
)

var ErrNotOpen = errors.New("websocket is not open")

// NotOpenError is returned by Send when there is no handle or the handle is not open.
type NotOpenError struct {
	// HasHandle is false before the first Connect.
	HasHandle bool
	State     ReadyState
}

func (e *NotOpenError) Error() string {
	if !e.HasHandle {
		return "websocket is not open (ready state: null)"
	}
	return fmt.Sprintf("websocket is not open (ready state: %s)", e.State)
}

func (e *NotOpenError) Is(target error) bool { return target == ErrNotOpen }
