package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/citypark/citypark/internal/jobs"
	"github.com/citypark/citypark/internal/parking"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReceiptJob renders receipts for closed sessions.
type ReceiptJob struct {
	Money   parking.MoneyFormatter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReceiptJob wires dependencies for the receipt handler.
func NewReceiptJob(money parking.MoneyFormatter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReceiptJob {
	return &ReceiptJob{Money: money, Logger: logger, Metrics: metrics}
}

// Handle processes TaskParkingReceipt tasks.
func (j *ReceiptJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("receipt: handler not configured")
	}
	var payload ReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Receipt == "" {
		return fmt.Errorf("receipt: empty receipt: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskParkingReceipt)
	body := j.Render(payload)
	j.logger().Info("receipt rendered",
		slog.String("receipt", payload.Receipt),
		slog.String("document_id", payload.DocumentID),
		slog.String("body", body))
	j.metrics().ReceiptRendered()
	return tracker.End(nil)
}

// Render produces the plain-text receipt.
func (j *ReceiptJob) Render(p ReceiptPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Receipt %s\n", p.Receipt)
	fmt.Fprintf(&b, "Plate:    %s\n", p.Plate)
	fmt.Fprintf(&b, "Slot:     %s\n", p.SlotCode)
	fmt.Fprintf(&b, "Entry:    %s\n", parking.FormatTimestamp(p.EntryAt))
	fmt.Fprintf(&b, "Exit:     %s\n", parking.FormatTimestamp(p.ExitAt))
	if p.DiscountCents > 0 {
		fmt.Fprintf(&b, "Discount: %s\n", j.Money.Format(parking.Money(p.DiscountCents)))
	}
	fmt.Fprintf(&b, "Total:    %s\n", j.Money.Format(parking.Money(p.AmountCents)))
	return b.String()
}

func (j *ReceiptJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ReceiptJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
