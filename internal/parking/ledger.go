package parking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/citypark/citypark/internal/clients"
	"github.com/citypark/citypark/internal/shared"
)

// ClientDirectory resolves clients for the ledger.
type ClientDirectory interface {
	FindByDocumentID(ctx context.Context, documentID string) (clients.Client, error)
	FindByUserID(ctx context.Context, userID int64) (clients.Client, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SessionNotifier receives closed sessions once check-out has committed.
type SessionNotifier interface {
	SessionClosed(ctx context.Context, evt SessionClosedEvent) error
}

// Recorder receives operation outcomes for metrics.
type Recorder interface {
	CheckIn(outcome string)
	CheckOut(outcome string, chargedCents int64)
	SlotsOccupied(delta int)
}

type nopRecorder struct{}

func (nopRecorder) CheckIn(string)         {}
func (nopRecorder) CheckOut(string, int64) {}
func (nopRecorder) SlotsOccupied(int)      {}

// LedgerConfig groups optional collaborators.
type LedgerConfig struct {
	Clock     func() time.Time
	Discounts DiscountRule
	Recorder  Recorder
	Audit     AuditPort
	Notifier  SessionNotifier
	Logger    *slog.Logger
}

// SessionLedger owns parking sessions and drives check-in and check-out.
type SessionLedger struct {
	repo      RepositoryPort
	slots     *SlotPool
	fees      FeeCalculator
	directory ClientDirectory
	clock     func() time.Time
	discounts DiscountRule
	recorder  Recorder
	audit     AuditPort
	notifier  SessionNotifier
	logger    *slog.Logger
}

// NewSessionLedger builds a SessionLedger.
func NewSessionLedger(repo RepositoryPort, slots *SlotPool, fees FeeCalculator, directory ClientDirectory, cfg LedgerConfig) *SessionLedger {
	l := &SessionLedger{
		repo:      repo,
		slots:     slots,
		fees:      fees,
		directory: directory,
		clock:     cfg.Clock,
		discounts: cfg.Discounts,
		recorder:  cfg.Recorder,
		audit:     cfg.Audit,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	if l.discounts == nil {
		l.discounts = EveryNthSession{}
	}
	if l.recorder == nil {
		l.recorder = nopRecorder{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// CheckInInput carries a check-in request.
type CheckInInput struct {
	Vehicle    Vehicle
	DocumentID string
}

const (
	maxPlateLen   = 8
	maxVehicleLen = 45
	documentLen   = 11
)

func (in CheckInInput) normalize() CheckInInput {
	in.Vehicle.Plate = strings.ToUpper(strings.TrimSpace(in.Vehicle.Plate))
	in.Vehicle.Make = strings.TrimSpace(in.Vehicle.Make)
	in.Vehicle.Model = strings.TrimSpace(in.Vehicle.Model)
	in.Vehicle.Color = strings.TrimSpace(in.Vehicle.Color)
	in.DocumentID = strings.TrimSpace(in.DocumentID)
	return in
}

func (in CheckInInput) validate() error {
	fields := make(map[string]string)
	checkText(fields, "plate", in.Vehicle.Plate, maxPlateLen)
	checkText(fields, "make", in.Vehicle.Make, maxVehicleLen)
	checkText(fields, "model", in.Vehicle.Model, maxVehicleLen)
	checkText(fields, "color", in.Vehicle.Color, maxVehicleLen)
	switch {
	case in.DocumentID == "":
		fields["document_id"] = "is required"
	case len(in.DocumentID) != documentLen || strings.IndexFunc(in.DocumentID, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0:
		fields["document_id"] = fmt.Sprintf("must be %d digits", documentLen)
	}
	return validationError(fields)
}

func checkText(fields map[string]string, name, value string, max int) {
	switch {
	case value == "":
		fields[name] = "is required"
	case utf8.RuneCountInString(value) > max:
		fields[name] = fmt.Sprintf("must be at most %d characters", max)
	}
}

func (l *SessionLedger) now() time.Time {
	return l.clock().UTC().Truncate(time.Second)
}

// CheckIn opens a session for the vehicle on the first free slot.
func (l *SessionLedger) CheckIn(ctx context.Context, input CheckInInput) (Session, error) {
	session, err := l.checkIn(ctx, input)
	l.recorder.CheckIn(outcomeOf(err))
	if err != nil {
		return Session{}, err
	}
	l.recorder.SlotsOccupied(1)
	l.logger.InfoContext(ctx, "vehicle checked in",
		slog.String("receipt", session.Receipt),
		slog.String("slot", session.SlotCode),
		slog.String("plate", session.Vehicle.Plate))
	l.record(ctx, "parking:check-in", session, map[string]any{
		"slot":        session.SlotCode,
		"plate":       session.Vehicle.Plate,
		"document_id": session.DocumentID,
	})
	return session, nil
}

func (l *SessionLedger) checkIn(ctx context.Context, input CheckInInput) (Session, error) {
	input = input.normalize()
	if err := input.validate(); err != nil {
		return Session{}, err
	}
	if _, err := l.directory.FindByDocumentID(ctx, input.DocumentID); err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return Session{}, fmt.Errorf("%w: %s", ErrClientNotFound, input.DocumentID)
		}
		return Session{}, fmt.Errorf("parking: resolve client: %w", err)
	}

	var session Session
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		slot, err := l.slots.AcquireFreeSlot(ctx, tx)
		if err != nil {
			return err
		}
		entry := l.now()
		session = Session{
			ID:         uuid.NewString(),
			Receipt:    NewReceipt(entry, slot.Code),
			Vehicle:    input.Vehicle,
			DocumentID: input.DocumentID,
			SlotID:     slot.ID,
			SlotCode:   slot.Code,
			EntryAt:    entry,
			Status:     SessionOpen,
		}
		if err := tx.InsertSession(ctx, session); err != nil {
			l.logger.WarnContext(ctx, "check-in rolled back, slot returned to pool",
				slog.String("slot", slot.Code),
				slog.String("receipt", session.Receipt),
				slog.Any("error", err))
			return err
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// CheckOut closes the session, charges it and frees its slot in one unit.
func (l *SessionLedger) CheckOut(ctx context.Context, receipt string) (Session, error) {
	session, err := l.checkOut(ctx, strings.TrimSpace(receipt))
	if err != nil {
		l.recorder.CheckOut(outcomeOf(err), 0)
		return Session{}, err
	}
	evt := closedEvent(session)
	l.recorder.CheckOut(outcomeOf(nil), int64(evt.Amount))
	l.recorder.SlotsOccupied(-1)
	l.logger.InfoContext(ctx, "vehicle checked out",
		slog.String("receipt", session.Receipt),
		slog.String("slot", session.SlotCode),
		slog.Int64("amount_cents", int64(evt.Amount)),
		slog.Int64("discount_cents", int64(evt.Discount)))
	l.record(ctx, "parking:check-out", session, map[string]any{
		"slot":           session.SlotCode,
		"amount_cents":   int64(evt.Amount),
		"discount_cents": int64(evt.Discount),
	})
	if l.notifier != nil {
		if err := l.notifier.SessionClosed(ctx, evt); err != nil {
			l.logger.WarnContext(ctx, "session closed notification failed",
				slog.String("receipt", session.Receipt), slog.Any("error", err))
		}
	}
	return session, nil
}

func (l *SessionLedger) checkOut(ctx context.Context, receipt string) (Session, error) {
	if receipt == "" {
		return Session{}, ErrSessionNotFound
	}
	var session Session
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		s, err := tx.GetSessionForUpdate(ctx, receipt)
		if err != nil {
			return err
		}
		if !s.IsOpen() {
			return fmt.Errorf("%w: session %s is %s", ErrInvalidState, s.Receipt, s.Status)
		}
		exit := l.now()
		completed, err := tx.CountClosedSessions(ctx, s.DocumentID)
		if err != nil {
			return err
		}
		charge, err := l.fees.ComputeCharge(s.EntryAt, exit, l.discounts.Eligible(completed))
		if err != nil {
			return err
		}
		if err := l.slots.ReleaseSlot(ctx, tx, s.SlotID); err != nil {
			return err
		}
		s.ExitAt = &exit
		s.Amount = MoneyPtr(charge.Total)
		s.Discount = MoneyPtr(charge.Discount)
		s.Status = SessionClosed
		closed, err := tx.CloseSession(ctx, s)
		if err != nil {
			return err
		}
		if !closed {
			return fmt.Errorf("%w: session %s already closed", ErrInvalidState, s.Receipt)
		}
		session = s
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// FindByReceipt returns a session snapshot.
func (l *SessionLedger) FindByReceipt(ctx context.Context, receipt string) (Session, error) {
	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		return Session{}, ErrSessionNotFound
	}
	return l.repo.FindSessionByReceipt(ctx, receipt)
}

// ListByClient pages through a client's sessions, newest first.
func (l *SessionLedger) ListByClient(ctx context.Context, documentID string, page PageRequest) (SessionPage, error) {
	page = page.Normalize()
	sessions, total, err := l.repo.ListSessionsByDocument(ctx, strings.TrimSpace(documentID), page)
	if err != nil {
		return SessionPage{}, err
	}
	return SessionPage{Sessions: sessions, Page: page, Total: total}, nil
}

// ListForUser pages through the sessions of the client owned by userID. A
// user without a client record gets an empty page.
func (l *SessionLedger) ListForUser(ctx context.Context, userID int64, page PageRequest) (SessionPage, error) {
	page = page.Normalize()
	client, err := l.directory.FindByUserID(ctx, userID)
	if errors.Is(err, clients.ErrNotFound) {
		return SessionPage{Page: page}, nil
	}
	if err != nil {
		return SessionPage{}, fmt.Errorf("parking: resolve client: %w", err)
	}
	return l.ListByClient(ctx, client.DocumentID, page)
}

// ListForCurrentClient lists the sessions of the caller stored in ctx.
func (l *SessionLedger) ListForCurrentClient(ctx context.Context, page PageRequest) (SessionPage, error) {
	caller, ok := shared.CallerFromContext(ctx)
	if !ok {
		return SessionPage{Page: page.Normalize()}, nil
	}
	return l.ListForUser(ctx, caller.UserID, page)
}

// Slots exposes the pool for administrative queries.
func (l *SessionLedger) Slots() *SlotPool {
	return l.slots
}

func (l *SessionLedger) record(ctx context.Context, action string, s Session, meta map[string]any) {
	if l.audit == nil {
		return
	}
	var actor int64
	if caller, ok := shared.CallerFromContext(ctx); ok {
		actor = caller.UserID
	}
	if err := l.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "parking_session",
		EntityID: s.Receipt,
		Meta:     meta,
	}); err != nil {
		l.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// outcomeOf maps an error to a metrics label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrClientNotFound):
		return "client_not_found"
	case errors.Is(err, ErrNoFreeSlot):
		return "lot_full"
	case errors.Is(err, ErrReceiptCollision):
		return "receipt_collision"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "error"
	}
}
