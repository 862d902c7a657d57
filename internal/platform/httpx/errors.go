package httpx

import (
	"errors"
	"net/http"

	"github.com/fieldops/fieldops/internal/gateway"
	"github.com/fieldops/fieldops/internal/shared"
)

// StatusFor maps the error taxonomy onto an HTTP status.
func StatusFor(err error) int {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrTransport):
		return http.StatusBadGateway
	case errors.As(err, &gwErr) && gwErr.StatusCode >= 400:
		return gwErr.StatusCode
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as a failure envelope. Every user facing message
// is kept so forms can show all of them; internal failures get a generic one.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	messages := shared.Messages(err)
	if len(messages) == 0 {
		messages = []string{shared.UserSafeMessage(err)}
	}
	Fail(w, status, messages...)
}
