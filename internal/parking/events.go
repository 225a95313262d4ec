package parking

import "time"

// SessionClosedEvent describes a completed stay, emitted after check-out commits.
type SessionClosedEvent struct {
	SessionID  string
	Receipt    string
	DocumentID string
	SlotCode   string
	Plate      string
	EntryAt    time.Time
	ExitAt     time.Time
	Amount     Money
	Discount   Money
}

func closedEvent(s Session) SessionClosedEvent {
	evt := SessionClosedEvent{
		SessionID:  s.ID,
		Receipt:    s.Receipt,
		DocumentID: s.DocumentID,
		SlotCode:   s.SlotCode,
		Plate:      s.Vehicle.Plate,
		EntryAt:    s.EntryAt,
	}
	if s.ExitAt != nil {
		evt.ExitAt = *s.ExitAt
	}
	if s.Amount != nil {
		evt.Amount = *s.Amount
	}
	if s.Discount != nil {
		evt.Discount = *s.Discount
	}
	return evt
}
