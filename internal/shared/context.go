package shared

import "context"

// Role is the coarse access level carried by a caller.
type Role string

const (
	// RoleAdmin operates the lot.
	RoleAdmin Role = "ADMIN"
	// RoleClient is a registered client viewing their own sessions.
	RoleClient Role = "CLIENT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID int64
	Role   Role
}

type callerContextKey struct{}

// ContextWithCaller stores the caller in context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}
