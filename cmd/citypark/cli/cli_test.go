package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/citypark/citypark/internal/auth"
	"github.com/citypark/citypark/internal/shared"
)

func TestTokenCommandIssuesVerifiableToken(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := TokenCommand(TokenOptions{
		Secret: "cli-secret",
		Issuer: "citypark",
		UserID: 42,
		Role:   "client",
		TTL:    time.Minute,
		Stdout: stdout,
		Stderr: stderr,
	})
	require.Equal(t, 0, code, stderr.String())

	service, err := auth.NewService("cli-secret", "citypark")
	require.NoError(t, err)
	caller, err := service.Verify(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	require.Equal(t, shared.Caller{UserID: 42, Role: shared.RoleClient}, caller)
}

func TestTokenCommandRejectsBadInput(t *testing.T) {
	stderr := new(bytes.Buffer)
	require.Equal(t, 2, TokenCommand(TokenOptions{Secret: "s", UserID: 1, Role: "root", Stderr: stderr}))
	require.Contains(t, stderr.String(), "unknown role")

	stderr.Reset()
	require.Equal(t, 2, TokenCommand(TokenOptions{Secret: "s", UserID: 0, Role: "ADMIN", Stderr: stderr}))
	require.Contains(t, stderr.String(), "user id")

	stderr.Reset()
	require.Equal(t, 1, TokenCommand(TokenOptions{UserID: 1, Role: "ADMIN", Stderr: stderr}))
	require.Contains(t, stderr.String(), "secret")
}

func TestJobsCLITriggerRejectsUnknownJob(t *testing.T) {
	c, err := NewJobsCLI("127.0.0.1:0")
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Trigger(context.Background(), "parking:unknown")
	require.ErrorContains(t, err, "unsupported job")

	_, err = NewJobsCLI("")
	require.Error(t, err)
}

func TestWriteStats(t *testing.T) {
	out := new(bytes.Buffer)
	WriteStats(out, QueueStats{Queue: "default", Pending: 3, Retry: 1})
	require.Equal(t, "queue=default pending=3 active=0 scheduled=0 retry=1 archived=0\n", out.String())
}
