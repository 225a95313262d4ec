package parking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citypark/citypark/internal/platform/db"
)

// SlotWriter flips slot occupancy inside a transaction.
type SlotWriter interface {
	// ClaimFirstFreeSlot marks the lowest-coded FREE slot OCCUPIED and
	// returns it, or ErrNoFreeSlot.
	ClaimFirstFreeSlot(ctx context.Context) (Slot, error)
	// FreeSlot marks an OCCUPIED slot FREE. It reports false when the slot
	// was not OCCUPIED.
	FreeSlot(ctx context.Context, slotID int64) (bool, error)
}

// TxRepository exposes transactional operations used by the ledger.
type TxRepository interface {
	SlotWriter
	InsertSession(ctx context.Context, s Session) error
	GetSessionForUpdate(ctx context.Context, receipt string) (Session, error)
	CloseSession(ctx context.Context, s Session) (bool, error)
	CountClosedSessions(ctx context.Context, documentID string) (int, error)
}

// SlotRepository covers slot reads and provisioning.
type SlotRepository interface {
	FindSlotByCode(ctx context.Context, code string) (Slot, error)
	InsertSlot(ctx context.Context, code string) (Slot, error)
	SlotOccupancy(ctx context.Context) (Occupancy, error)
}

// RepositoryPort abstracts persistence for the ledger.
type RepositoryPort interface {
	SlotRepository
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindSessionByReceipt(ctx context.Context, receipt string) (Session, error)
	ListSessionsByDocument(ctx context.Context, documentID string, page PageRequest) ([]Session, int, error)
}

// Repository persists slots and sessions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes fn inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const slotColumns = `id, code, status, created_at, updated_at`

const sessionColumns = `s.id, s.receipt, s.plate, s.make, s.model, s.color, s.document_id,
	s.slot_id, p.code, s.entry_at, s.exit_at, s.amount_cents, s.discount_cents, s.status`

func scanSlot(row pgx.Row) (Slot, error) {
	var s Slot
	var status string
	if err := row.Scan(&s.ID, &s.Code, &status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Slot{}, err
	}
	s.Status = SlotStatus(status)
	return s, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		s        Session
		status   string
		amount   *int64
		discount *int64
	)
	err := row.Scan(&s.ID, &s.Receipt, &s.Vehicle.Plate, &s.Vehicle.Make, &s.Vehicle.Model, &s.Vehicle.Color,
		&s.DocumentID, &s.SlotID, &s.SlotCode, &s.EntryAt, &s.ExitAt, &amount, &discount, &status)
	if err != nil {
		return Session{}, err
	}
	s.Status = SessionStatus(status)
	if amount != nil {
		s.Amount = MoneyPtr(Money(*amount))
	}
	if discount != nil {
		s.Discount = MoneyPtr(Money(*discount))
	}
	return s, nil
}

func (t *txRepo) ClaimFirstFreeSlot(ctx context.Context) (Slot, error) {
	row := t.tx.QueryRow(ctx, `UPDATE parking_slots SET status = 'OCCUPIED', updated_at = NOW()
WHERE status = 'FREE' AND id = (
	SELECT id FROM parking_slots WHERE status = 'FREE' ORDER BY code LIMIT 1 FOR UPDATE SKIP LOCKED
)
RETURNING `+slotColumns)
	slot, err := scanSlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Slot{}, ErrNoFreeSlot
	}
	if err != nil {
		return Slot{}, fmt.Errorf("parking: claim slot: %w", err)
	}
	return slot, nil
}

func (t *txRepo) FreeSlot(ctx context.Context, slotID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE parking_slots SET status = 'FREE', updated_at = NOW()
WHERE id = $1 AND status = 'OCCUPIED'`, slotID)
	if err != nil {
		return false, fmt.Errorf("parking: free slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) InsertSession(ctx context.Context, s Session) error {
	tag, err := t.tx.Exec(ctx, `INSERT INTO parking_sessions
	(id, receipt, plate, make, model, color, document_id, slot_id, entry_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (receipt) DO NOTHING`,
		s.ID, s.Receipt, s.Vehicle.Plate, s.Vehicle.Make, s.Vehicle.Model, s.Vehicle.Color,
		s.DocumentID, s.SlotID, s.EntryAt, string(s.Status))
	if err != nil {
		return fmt.Errorf("parking: insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReceiptCollision
	}
	return nil
}

func (t *txRepo) GetSessionForUpdate(ctx context.Context, receipt string) (Session, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+sessionColumns+`
FROM parking_sessions s JOIN parking_slots p ON p.id = s.slot_id
WHERE s.receipt = $1
FOR UPDATE OF s`, receipt)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("parking: load session: %w", err)
	}
	return s, nil
}

func (t *txRepo) CloseSession(ctx context.Context, s Session) (bool, error) {
	var amount, discount *int64
	if s.Amount != nil {
		v := int64(*s.Amount)
		amount = &v
	}
	if s.Discount != nil {
		v := int64(*s.Discount)
		discount = &v
	}
	tag, err := t.tx.Exec(ctx, `UPDATE parking_sessions
SET exit_at = $2, amount_cents = $3, discount_cents = $4, status = 'CLOSED'
WHERE id = $1 AND status = 'OPEN'`, s.ID, s.ExitAt, amount, discount)
	if err != nil {
		return false, fmt.Errorf("parking: close session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) CountClosedSessions(ctx context.Context, documentID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM parking_sessions WHERE document_id = $1 AND status = 'CLOSED'`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("parking: count sessions: %w", err)
	}
	return n, nil
}

// FindSlotByCode loads a slot by its code.
func (r *Repository) FindSlotByCode(ctx context.Context, code string) (Slot, error) {
	slot, err := scanSlot(r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM parking_slots WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Slot{}, ErrSlotNotFound
	}
	if err != nil {
		return Slot{}, fmt.Errorf("parking: find slot: %w", err)
	}
	return slot, nil
}

// InsertSlot provisions a FREE slot. An existing code yields ErrDuplicateSlot.
func (r *Repository) InsertSlot(ctx context.Context, code string) (Slot, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO parking_slots (code, status) VALUES ($1, 'FREE')
ON CONFLICT (code) DO NOTHING
RETURNING `+slotColumns, code)
	slot, err := scanSlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Slot{}, ErrDuplicateSlot
	}
	if err != nil {
		return Slot{}, fmt.Errorf("parking: insert slot: %w", err)
	}
	return slot, nil
}

// SlotOccupancy counts slots per status.
func (r *Repository) SlotOccupancy(ctx context.Context) (Occupancy, error) {
	var occ Occupancy
	err := r.pool.QueryRow(ctx, `SELECT
	COUNT(*) FILTER (WHERE status = 'FREE'),
	COUNT(*) FILTER (WHERE status = 'OCCUPIED')
FROM parking_slots`).Scan(&occ.Free, &occ.Occupied)
	if err != nil {
		return Occupancy{}, fmt.Errorf("parking: occupancy: %w", err)
	}
	return occ, nil
}

// FindSessionByReceipt loads a session snapshot.
func (r *Repository) FindSessionByReceipt(ctx context.Context, receipt string) (Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+`
FROM parking_sessions s JOIN parking_slots p ON p.id = s.slot_id
WHERE s.receipt = $1`, receipt)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("parking: find session: %w", err)
	}
	return s, nil
}

// ListSessionsByDocument returns a page of sessions, newest first, plus the
// total count for the client.
func (r *Repository) ListSessionsByDocument(ctx context.Context, documentID string, page PageRequest) ([]Session, int, error) {
	page = page.Normalize()
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM parking_sessions WHERE document_id = $1`, documentID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("parking: count sessions: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+`
FROM parking_sessions s JOIN parking_slots p ON p.id = s.slot_id
WHERE s.document_id = $1
ORDER BY s.entry_at DESC, s.receipt DESC
LIMIT $2 OFFSET $3`, documentID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("parking: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("parking: scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("parking: list sessions: %w", err)
	}
	return sessions, total, nil
}
