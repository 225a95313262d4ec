package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing or invalid bearer token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the caller's role does not allow the action.
	ErrForbidden = errors.New("forbidden")
)
