package httpx

import (
	"errors"
	"net/http"

	"github.com/citypark/citypark/internal/shared"
)

// Sentinel errors shared by handlers.
var (
	ErrMalformedBody = errors.New("malformed request body")
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("conflict")
)

// RespondError maps common errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrMalformedBody), errors.Is(err, ErrBodyTooLarge):
		Problem(w, r, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrNotFound):
		Problem(w, r, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, r, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, r, http.StatusForbidden, "Forbidden", "role not allowed for this resource")
	case errors.Is(err, shared.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="citypark"`)
		Problem(w, r, http.StatusUnauthorized, "Unauthorized", "valid bearer token required")
	default:
		Problem(w, r, http.StatusInternalServerError, "Internal Error", "")
	}
}
