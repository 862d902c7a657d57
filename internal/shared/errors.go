package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates an operation violates a single-instance or lifecycle rule.
	ErrConflict = errors.New("conflict")
	// ErrTransport indicates the gateway could not be reached or timed out.
	ErrTransport = errors.New("gateway unavailable")
)

// MessageError carries the user facing messages of a failure next to its class.
type MessageError struct {
	Class    error
	Messages []string
}

func (e *MessageError) Error() string {
	if len(e.Messages) == 0 {
		return e.Class.Error()
	}
	return fmt.Sprintf("%s: %s", e.Class, strings.Join(e.Messages, "; "))
}

func (e *MessageError) Unwrap() error { return e.Class }

// Validation builds an ErrValidation failure with one or more messages.
func Validation(messages ...string) error {
	return &MessageError{Class: ErrValidation, Messages: messages}
}

// NotFound builds an ErrNotFound failure.
func NotFound(messages ...string) error {
	return &MessageError{Class: ErrNotFound, Messages: messages}
}

// Conflict builds an ErrConflict failure.
func Conflict(messages ...string) error {
	return &MessageError{Class: ErrConflict, Messages: messages}
}

// Transport builds an ErrTransport failure.
func Transport(messages ...string) error {
	return &MessageError{Class: ErrTransport, Messages: messages}
}

// Messages returns every user facing message attached to err.
func Messages(err error) []string {
	var msgErr *MessageError
	if errors.As(err, &msgErr) && len(msgErr.Messages) > 0 {
		return msgErr.Messages
	}
	var multi interface{ UserMessages() []string }
	if errors.As(err, &multi) {
		if msgs := multi.UserMessages(); len(msgs) > 0 {
			return msgs
		}
	}
	return nil
}

// UserSafeMessage reduces err to the single message shown to the operator.
// Internal failures are not echoed back.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if msgs := Messages(err); len(msgs) > 0 {
		return msgs[0]
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "Validation failed"
	case errors.Is(err, ErrNotFound):
		return "Resource not found"
	case errors.Is(err, ErrConflict):
		return "Operation conflicts with the current state"
	case errors.Is(err, ErrTransport):
		return "Service is unavailable, please try again"
	default:
		return "Something went wrong"
	}
}
