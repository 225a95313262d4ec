package clients

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-process directory used by the memory store driver
// and by tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	byDoc    map[string]Client
	byUserID map[int64]Client
}

// NewMemoryDirectory seeds a directory with the given clients.
func NewMemoryDirectory(seed ...Client) *MemoryDirectory {
	d := &MemoryDirectory{
		byDoc:    make(map[string]Client),
		byUserID: make(map[int64]Client),
	}
	for _, c := range seed {
		d.Put(c)
	}
	return d
}

// Put inserts or replaces a client.
func (d *MemoryDirectory) Put(c Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byDoc[c.DocumentID] = c
	if c.UserID != 0 {
		d.byUserID[c.UserID] = c
	}
}

// FindByDocumentID implements the directory lookup.
func (d *MemoryDirectory) FindByDocumentID(_ context.Context, documentID string) (Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byDoc[documentID]
	if !ok {
		return Client{}, ErrNotFound
	}
	return c, nil
}

// FindByUserID implements the directory lookup.
func (d *MemoryDirectory) FindByUserID(_ context.Context, userID int64) (Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byUserID[userID]
	if !ok {
		return Client{}, ErrNotFound
	}
	return c, nil
}
