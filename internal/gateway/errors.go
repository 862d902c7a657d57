package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fieldops/fieldops/internal/shared"
)

// Kind classifies a failed remote call.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindTransport  Kind = "transport"
	KindRejected   Kind = "rejected"
)

// Error is a failed remote call. Messages holds the backend's messages verbatim.
type Error struct {
	Op         string
	StatusCode int
	Messages   []string
	Kind       Kind
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway %s", e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if len(e.Messages) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Message returns the first backend message.
func (e *Error) Message() string {
	return Messages(e.Messages).First()
}

// UserMessages exposes the backend messages to shared.UserSafeMessage.
func (e *Error) UserMessages() []string {
	return e.Messages
}

// Unwrap makes the error match the shared taxonomy and any transport cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if class := e.Kind.class(); class != nil {
		out = append(out, class)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func (k Kind) class() error {
	switch k {
	case KindValidation:
		return shared.ErrValidation
	case KindNotFound:
		return shared.ErrNotFound
	case KindConflict:
		return shared.ErrConflict
	case KindTransport:
		return shared.ErrTransport
	default:
		return nil
	}
}

// KindForStatus maps an HTTP status onto an error kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status >= http.StatusInternalServerError:
		return KindTransport
	default:
		return KindRejected
	}
}

// failureFromBody builds an Error from a non-success response. The body is
// read with gjson so a truncated or non-envelope body still yields something
// readable.
func failureFromBody(op string, httpStatus int, body []byte) *Error {
	status := httpStatus
	var messages []string
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		if code := res.Get("statusCode"); code.Exists() && code.Int() >= 400 {
			status = int(code.Int())
		}
		msg := res.Get("message")
		switch {
		case msg.IsArray():
			for _, m := range msg.Array() {
				if s := strings.TrimSpace(m.String()); s != "" {
					messages = append(messages, s)
				}
			}
		case msg.Exists():
			if s := strings.TrimSpace(msg.String()); s != "" {
				messages = append(messages, s)
			}
		}
		if len(messages) == 0 {
			if s := strings.TrimSpace(res.Get("error").String()); s != "" {
				messages = append(messages, s)
			}
		}
	}
	kind := KindForStatus(status)
	if len(messages) == 0 && kind != KindTransport {
		if text := http.StatusText(status); text != "" {
			messages = []string{text}
		}
	}
	return &Error{Op: op, StatusCode: status, Messages: messages, Kind: kind}
}
