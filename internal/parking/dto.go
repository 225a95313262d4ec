package parking

import (
	"fmt"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/citypark/citypark/internal/shared"
)

// TimestampLayout is the wire format for entry and exit times.
const TimestampLayout = "2006-01-02 15:04:05"

// CheckInRequest is the check-in payload.
type CheckInRequest struct {
	Plate      string `json:"plate" validate:"required,plate"`
	Make       string `json:"make" validate:"required,max=45"`
	Model      string `json:"model" validate:"required,max=45"`
	Color      string `json:"color" validate:"required,max=45"`
	DocumentID string `json:"document_id" validate:"required,len=11,numeric"`
}

// Input converts the request into a ledger input.
func (r CheckInRequest) Input() CheckInInput {
	return CheckInInput{
		Vehicle:    Vehicle{Plate: r.Plate, Make: r.Make, Model: r.Model, Color: r.Color},
		DocumentID: r.DocumentID,
	}
}

// ProvisionSlotRequest is the slot creation payload.
type ProvisionSlotRequest struct {
	Code string `json:"code" validate:"required,max=10"`
}

// SessionResponse is the wire shape of a session.
type SessionResponse struct {
	Receipt       string  `json:"receipt"`
	Plate         string  `json:"plate"`
	Make          string  `json:"make"`
	Model         string  `json:"model"`
	Color         string  `json:"color"`
	DocumentID    string  `json:"document_id"`
	SlotCode      string  `json:"slot_code"`
	Status        string  `json:"status"`
	EntryAt       string  `json:"entry_at"`
	ExitAt        *string `json:"exit_at,omitempty"`
	AmountCents   *int64  `json:"amount_cents,omitempty"`
	DiscountCents *int64  `json:"discount_cents,omitempty"`
	AmountDisplay string  `json:"amount_display,omitempty"`
}

// SessionPageResponse is a zero-based page of sessions.
type SessionPageResponse struct {
	Content       []SessionResponse `json:"content"`
	Number        int               `json:"number"`
	Size          int               `json:"size"`
	TotalElements int               `json:"total_elements"`
	TotalPages    int               `json:"total_pages"`
	First         bool              `json:"first"`
	Last          bool              `json:"last"`
}

// SlotResponse is the wire shape of a slot.
type SlotResponse struct {
	Code   string `json:"code"`
	Status string `json:"status"`
}

// OccupancyResponse summarises the pool.
type OccupancyResponse struct {
	Free     int `json:"free"`
	Occupied int `json:"occupied"`
	Total    int `json:"total"`
}

// MoneyFormatter renders minor units for humans. Pricing never goes through it.
type MoneyFormatter struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMoneyFormatter builds a formatter for an ISO 4217 code and a BCP 47 tag.
func NewMoneyFormatter(code, lang string) (MoneyFormatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return MoneyFormatter{}, fmt.Errorf("parking: currency %q: %w", code, err)
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return MoneyFormatter{}, fmt.Errorf("parking: language %q: %w", lang, err)
	}
	return MoneyFormatter{unit: unit, printer: message.NewPrinter(tag)}, nil
}

// Format renders m, e.g. 1000 cents as "R$ 10.00".
func (f MoneyFormatter) Format(m Money) string {
	if f.printer == nil {
		return fmt.Sprintf("%d.%02d", int64(m)/100, abs(int64(m)%100))
	}
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(float64(m) / 100)))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// FormatTimestamp renders t in TimestampLayout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ToSessionResponse converts a session for the wire.
func ToSessionResponse(s Session, money MoneyFormatter) SessionResponse {
	resp := SessionResponse{
		Receipt:    s.Receipt,
		Plate:      s.Vehicle.Plate,
		Make:       s.Vehicle.Make,
		Model:      s.Vehicle.Model,
		Color:      s.Vehicle.Color,
		DocumentID: s.DocumentID,
		SlotCode:   s.SlotCode,
		Status:     string(s.Status),
		EntryAt:    FormatTimestamp(s.EntryAt),
	}
	if s.ExitAt != nil {
		exit := FormatTimestamp(*s.ExitAt)
		resp.ExitAt = &exit
	}
	if s.Amount != nil {
		amount := int64(*s.Amount)
		resp.AmountCents = &amount
		resp.AmountDisplay = money.Format(*s.Amount)
	}
	if s.Discount != nil {
		discount := int64(*s.Discount)
		resp.DiscountCents = &discount
	}
	return resp
}

// ToSessionPageResponse converts a page for the wire.
func ToSessionPageResponse(p SessionPage, money MoneyFormatter) SessionPageResponse {
	meta := shared.NewPagination(p.Page.Number, p.Page.Size, p.Total)
	content := make([]SessionResponse, 0, len(p.Sessions))
	for _, s := range p.Sessions {
		content = append(content, ToSessionResponse(s, money))
	}
	return SessionPageResponse{
		Content:       content,
		Number:        meta.Number,
		Size:          meta.Size,
		TotalElements: meta.Total,
		TotalPages:    meta.TotalPages,
		First:         meta.First(),
		Last:          meta.Last(),
	}
}

// ToSlotResponse converts a slot for the wire.
func ToSlotResponse(s Slot) SlotResponse {
	return SlotResponse{Code: s.Code, Status: string(s.Status)}
}

// ToOccupancyResponse converts an occupancy summary for the wire.
func ToOccupancyResponse(o Occupancy) OccupancyResponse {
	return OccupancyResponse{Free: o.Free, Occupied: o.Occupied, Total: o.Total()}
}
