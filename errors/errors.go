package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrEmptyWords   = fmt.Errorf("no words have been found")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// Lifecycle
	ErrNotJoined     = fmt.Errorf("connection has not joined a room")
	ErrAlreadyJoined = fmt.Errorf("connection already joined a room")
	ErrTerminated    = fmt.Errorf("connection is terminated")
	ErrRoomNotFound  = fmt.Errorf("room not found")

	// Routing provider
	ErrProviderUnavailable = fmt.Errorf("routing provider unavailable")
	ErrProviderRejected    = fmt.Errorf("routing provider rejected the request")

	// Delivery
	ErrSinkFull     = fmt.Errorf("sink buffer is full")
	ErrUnknownEvent = fmt.Errorf("unknown event")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
