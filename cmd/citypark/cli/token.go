package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/citypark/citypark/internal/auth"
	"github.com/citypark/citypark/internal/shared"
)

// TokenOptions defines the flags of the token command.
type TokenOptions struct {
	Secret string
	Issuer string
	UserID int64
	Role   string
	TTL    time.Duration
	Stdout io.Writer
	Stderr io.Writer
}

// TokenCommand mints a bearer token for local development and returns the
// process exit code.
func TokenCommand(opts TokenOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	role := shared.Role(strings.ToUpper(strings.TrimSpace(opts.Role)))
	if !role.Valid() {
		fmt.Fprintf(opts.Stderr, "token: unknown role %q\n", opts.Role)
		return 2
	}
	if opts.UserID <= 0 {
		fmt.Fprintln(opts.Stderr, "token: user id must be positive")
		return 2
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	service, err := auth.NewService(opts.Secret, opts.Issuer)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "token: %v\n", err)
		return 1
	}
	token, err := service.Issue(shared.Caller{UserID: opts.UserID, Role: role}, opts.TTL)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "token: %v\n", err)
		return 1
	}
	fmt.Fprintln(opts.Stdout, token)
	return 0
}
