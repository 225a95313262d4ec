package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/citypark/citypark/internal/parking"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskParkingReceipt renders the receipt of a closed session.
	TaskParkingReceipt = "parking:receipt"
	// TaskOccupancySnapshot records slot occupancy.
	TaskOccupancySnapshot = "parking:occupancy_snapshot"
)

// ReceiptPayload describes a closed session for receipt rendering.
type ReceiptPayload struct {
	SessionID     string    `json:"session_id"`
	Receipt       string    `json:"receipt"`
	DocumentID    string    `json:"document_id"`
	SlotCode      string    `json:"slot_code"`
	Plate         string    `json:"plate"`
	EntryAt       time.Time `json:"entry_at"`
	ExitAt        time.Time `json:"exit_at"`
	AmountCents   int64     `json:"amount_cents"`
	DiscountCents int64     `json:"discount_cents"`
}

// ReceiptPayloadFromEvent converts a ledger event into a task payload.
func ReceiptPayloadFromEvent(evt parking.SessionClosedEvent) ReceiptPayload {
	return ReceiptPayload{
		SessionID:     evt.SessionID,
		Receipt:       evt.Receipt,
		DocumentID:    evt.DocumentID,
		SlotCode:      evt.SlotCode,
		Plate:         evt.Plate,
		EntryAt:       evt.EntryAt,
		ExitAt:        evt.ExitAt,
		AmountCents:   int64(evt.Amount),
		DiscountCents: int64(evt.Discount),
	}
}

// NewReceiptTask constructs an Asynq task. The receipt doubles as task id so
// a retried check-out notification never renders twice.
func NewReceiptTask(payload ReceiptPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskParkingReceipt, data,
		asynq.TaskID(TaskParkingReceipt+":"+payload.Receipt),
		asynq.MaxRetry(5),
		asynq.Queue(QueueDefault),
	), nil
}

// OccupancySnapshotPayload carries no parameters; it exists for forward compatibility.
type OccupancySnapshotPayload struct{}

// NewOccupancySnapshotTask constructs the periodic snapshot task.
func NewOccupancySnapshotTask() (*asynq.Task, error) {
	data, err := json.Marshal(OccupancySnapshotPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOccupancySnapshot, data, asynq.MaxRetry(0), asynq.Queue(QueueDefault)), nil
}
