package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/citypark/citypark/internal/jobs"
	"github.com/citypark/citypark/internal/parking"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func closedEvent() parking.SessionClosedEvent {
	entry := time.Date(2024, 8, 15, 18, 52, 17, 0, time.UTC)
	return parking.SessionClosedEvent{
		SessionID:  "3b2c4c1e-1111-4a4a-9999-000000000001",
		Receipt:    "20240815-185217-A-01",
		DocumentID: "94392380033",
		SlotCode:   "A-01",
		Plate:      "ABC-2222",
		EntryAt:    entry,
		ExitAt:     entry.Add(65 * time.Minute),
		Amount:     700,
		Discount:   300,
	}
}

func TestClientEnqueuesReceiptOnSessionClosed(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq)

	require.NoError(t, client.SessionClosed(context.Background(), closedEvent()))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskParkingReceipt, enq.tasks[0].Type())

	var payload ReceiptPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "20240815-185217-A-01", payload.Receipt)
	require.Equal(t, int64(700), payload.AmountCents)
	require.Equal(t, int64(300), payload.DiscountCents)
}

func TestClientTreatsDuplicateReceiptAsDelivered(t *testing.T) {
	client := NewClientWith(&fakeEnqueuer{err: asynq.ErrTaskIDConflict})
	require.NoError(t, client.SessionClosed(context.Background(), closedEvent()))

	boom := errors.New("redis down")
	client = NewClientWith(&fakeEnqueuer{err: boom})
	require.ErrorIs(t, client.SessionClosed(context.Background(), closedEvent()), boom)
}

func TestReceiptJobRendersReceipt(t *testing.T) {
	money, err := parking.NewMoneyFormatter("BRL", "pt-BR")
	require.NoError(t, err)
	job := NewReceiptJob(money, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	body := job.Render(ReceiptPayloadFromEvent(closedEvent()))
	require.Contains(t, body, "Receipt 20240815-185217-A-01")
	require.Contains(t, body, "Entry:    2024-08-15 18:52:17")
	require.Contains(t, body, "Exit:     2024-08-15 19:57:17")
	require.Contains(t, body, "Discount:")
	require.Contains(t, body, "Total:")

	task, err := NewReceiptTask(ReceiptPayloadFromEvent(closedEvent()))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	err = job.Handle(context.Background(), asynq.NewTask(TaskParkingReceipt, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	err = job.Handle(context.Background(), asynq.NewTask(TaskParkingReceipt, []byte(`{}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type failingSource struct{}

func (failingSource) SlotOccupancy(context.Context) (parking.Occupancy, error) {
	return parking.Occupancy{}, errors.New("db unavailable")
}

func TestOccupancySnapshotJob(t *testing.T) {
	repo := parking.NewMemoryRepository("A-01", "A-02", "A-03")
	job := NewOccupancySnapshotJob(repo, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewOccupancySnapshotTask()
	require.NoError(t, err)
	require.Equal(t, TaskOccupancySnapshot, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	failing := NewOccupancySnapshotJob(failingSource{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.Error(t, failing.Handle(context.Background(), task))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
