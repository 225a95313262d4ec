package clients

import (
	"errors"
	"time"
)

// Client is a registered customer of the lot. Registration itself happens
// outside this service; the directory is read-only here.
type Client struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	DocumentID string    `json:"document_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrNotFound indicates no client matched the lookup.
var ErrNotFound = errors.New("clients: not found")
