package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token payload: the subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	// ErrInvalidToken indicates a token that failed parsing or verification.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrMissingToken indicates the Authorization header carried no bearer token.
	ErrMissingToken = errors.New("auth: missing bearer token")
)
