package scheduling

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidSlot               Kind = "invalid_slot"
	KindSlotConflict              Kind = "slot_conflict"
	KindNoAvailability            Kind = "no_availability"
	KindNotFound                  Kind = "not_found"
	KindUnauthorized              Kind = "unauthorized"
	KindCancellationWindowExpired Kind = "cancellation_window_expired"
	KindInvalidState              Kind = "invalid_state"
	KindTransient                 Kind = "transient"
)

// Error is returned by every engine operation. errors.Is matches on Kind, so
// callers compare against the sentinels below regardless of the message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidSlot               = &Error{Kind: KindInvalidSlot, Msg: "Invalid time slot"}
	ErrSlotConflict              = &Error{Kind: KindSlotConflict, Msg: "Slot already booked"}
	ErrNoAvailability            = &Error{Kind: KindNoAvailability, Msg: "No available slots found"}
	ErrNotFound                  = &Error{Kind: KindNotFound, Msg: "Appointment not found"}
	ErrUnauthorized              = &Error{Kind: KindUnauthorized, Msg: "Unauthorized"}
	ErrCancellationWindowExpired = &Error{Kind: KindCancellationWindowExpired, Msg: "Cancellation window expired"}
	ErrInvalidState              = &Error{Kind: KindInvalidState, Msg: "Appointment already cancelled"}
	ErrTransient                 = &Error{Kind: KindTransient, Msg: "Scheduling store unavailable"}
)

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// KindOf classifies any error. Anything that is not an *Error, including
// context cancellation, is transient.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// transient wraps storage and context failures, leaving engine errors untouched.
func transient(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	msg := ErrTransient.Msg
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		msg = "Scheduling request timed out"
	}
	return &Error{Kind: KindTransient, Msg: msg, Err: err}
}
