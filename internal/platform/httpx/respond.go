// Package httpx provides HTTP response utilities that speak the
// {success, statusCode, message, data} envelope.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fieldops/fieldops/internal/gateway"
	"github.com/fieldops/fieldops/internal/shared"
)

const maxRequestBytes = 1 << 20

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a success envelope.
func OK[T any](w http.ResponseWriter, status int, message string, data T) {
	JSON(w, status, gateway.OK(status, message, data))
}

// Fail sends a failure envelope.
func Fail(w http.ResponseWriter, status int, messages ...string) {
	JSON(w, status, gateway.Fail(status, messages...))
}

// DecodeJSON decodes the request body into target. Malformed bodies are
// reported as validation failures.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.Validation("request body is required")
		}
		var msgErr *shared.MessageError
		if errors.As(err, &msgErr) {
			return msgErr
		}
		return shared.Validation("request body must be valid JSON")
	}
	return nil
}
