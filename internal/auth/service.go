package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/citypark/citypark/internal/shared"
)

// Service verifies HS256 bearer tokens. Issuance lives with the identity
// provider; Issue exists for tooling and tests.
type Service struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewService constructs a Service. An empty issuer disables the issuer check.
func NewService(secret, issuer string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret required")
	}
	return &Service{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Verify parses the token and returns the caller it identifies.
func (s *Service) Verify(raw string) (shared.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return shared.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return shared.Caller{}, fmt.Errorf("%w: subject %q", ErrInvalidToken, claims.Subject)
	}
	role := shared.Role(claims.Role)
	if !role.Valid() {
		return shared.Caller{}, fmt.Errorf("%w: role %q", ErrInvalidToken, claims.Role)
	}
	return shared.Caller{UserID: userID, Role: role}, nil
}

// Issue signs a token for caller valid for ttl.
func (s *Service) Issue(caller shared.Caller, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Role: string(caller.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(caller.UserID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
