package parking

import (
	"time"
)

// SlotStatus enumerates slot occupancy states.
type SlotStatus string

const (
	// SlotFree marks a slot available for check-in.
	SlotFree SlotStatus = "FREE"
	// SlotOccupied marks a slot bound to exactly one open session.
	SlotOccupied SlotStatus = "OCCUPIED"
)

// SessionStatus enumerates the lifecycle states of a parking session.
type SessionStatus string

const (
	// SessionOpen is the state between check-in and check-out.
	SessionOpen SessionStatus = "OPEN"
	// SessionClosed is terminal.
	SessionClosed SessionStatus = "CLOSED"
)

// Slot models a single physical parking space.
type Slot struct {
	ID        int64
	Code      string
	Status    SlotStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Vehicle describes the parked vehicle. The fields are opaque to the ledger.
type Vehicle struct {
	Plate string
	Make  string
	Model string
	Color string
}

// Session models one vehicle stay from check-in to check-out.
type Session struct {
	ID         string
	Receipt    string
	Vehicle    Vehicle
	DocumentID string
	SlotID     int64
	SlotCode   string
	EntryAt    time.Time
	ExitAt     *time.Time
	Amount     *Money
	Discount   *Money
	Status     SessionStatus
}

// IsOpen reports whether the session still holds its slot.
func (s Session) IsOpen() bool {
	return s.Status == SessionOpen
}

// PageRequest selects a zero-based page of results.
type PageRequest struct {
	Number int
	Size   int
}

// DefaultPageSize is used when callers do not request a size.
const DefaultPageSize = 5

// MaxPageSize bounds page sizes accepted by the ledger.
const MaxPageSize = 100

// Normalize clamps the request into the accepted range.
func (p PageRequest) Normalize() PageRequest {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the page.
func (p PageRequest) Offset() int {
	return p.Number * p.Size
}

// SessionPage is a page of sessions plus the total row count.
type SessionPage struct {
	Sessions []Session
	Page     PageRequest
	Total    int
}

// Occupancy summarises the slot pool.
type Occupancy struct {
	Free     int
	Occupied int
}

// Total returns the number of provisioned slots.
func (o Occupancy) Total() int {
	return o.Free + o.Occupied
}
