package parking

import (
	"strings"
	"time"
)

// ReceiptLayout is the timestamp portion of every receipt.
const ReceiptLayout = "20060102-150405"

// NewReceipt derives a receipt from the entry time and slot code. The slot
// suffix keeps receipts unique among open sessions; a collision can only
// happen when the same slot is re-used within one second.
func NewReceipt(entry time.Time, slotCode string) string {
	stamp := entry.UTC().Format(ReceiptLayout)
	code := strings.ToUpper(strings.TrimSpace(slotCode))
	if code == "" {
		return stamp
	}
	return stamp + "-" + code
}
