package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Messages is the envelope "message" field, which the backend sends either as
// a single string or as a list of strings.
type Messages []string

// First returns the message a caller shows to the operator.
func (m Messages) First() string {
	if len(m) == 0 {
		return ""
	}
	return m[0]
}

// MarshalJSON writes a single message as a plain string.
func (m Messages) MarshalJSON() ([]byte, error) {
	switch len(m) {
	case 0:
		return []byte(`""`), nil
	case 1:
		return json.Marshal(m[0])
	default:
		return json.Marshal([]string(m))
	}
}

// UnmarshalJSON accepts a string, a list of strings or null.
func (m *Messages) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*m = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode message list: %w", err)
		}
		*m = list
		return nil
	default:
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		if single == "" {
			*m = nil
			return nil
		}
		*m = Messages{single}
		return nil
	}
}

// Envelope wraps every response of the remote API.
type Envelope[T any] struct {
	Success    bool     `json:"success"`
	StatusCode int      `json:"statusCode"`
	Message    Messages `json:"message"`
	Data       T        `json:"data"`
}

// OK builds a success envelope.
func OK[T any](status int, message string, data T) Envelope[T] {
	return Envelope[T]{Success: true, StatusCode: status, Message: Messages{message}, Data: data}
}

// Fail builds a failure envelope with no data.
func Fail(status int, messages ...string) Envelope[any] {
	return Envelope[any]{Success: false, StatusCode: status, Message: messages}
}
