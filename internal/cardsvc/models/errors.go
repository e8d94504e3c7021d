package models

import (
	"errors"
	"fmt"
)

// Error kinds mirror the admin API contract: the dashboard branches on the
// kind string, not on the message.
const (
	KindConflict     = "conflict"
	KindNotFound     = "not_found"
	KindInvalidState = "invalid_state"
	KindAuth         = "auth"
)

// DomainError carries a stable kind alongside a human message.
type DomainError struct {
	Kind string
	Msg  string
}

func (e *DomainError) Error() string { return e.Msg }

func Conflict(format string, args ...interface{}) error {
	return &DomainError{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return &DomainError{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) error {
	return &DomainError{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func AuthFailed(format string, args ...interface{}) error {
	return &DomainError{Kind: KindAuth, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the error kind, or "" for plain errors.
func KindOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ErrSlotGone signals that the pending operation was already resolved or
// cancelled by the time a conditional write ran. Callers treat it as a replay
// and resolve the tap as ignored.
var ErrSlotGone = errors.New("pending operation no longer present")
