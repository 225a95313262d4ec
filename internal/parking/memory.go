package parking

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process RepositoryPort. A single mutex is held
// for the whole of WithTx, which serialises slot claims; on error the
// state captured at the start of the transaction is restored.
type MemoryRepository struct {
	mu       sync.Mutex
	nextID   int64
	slots    map[int64]Slot
	sessions map[string]Session
	now      func() time.Time
}

// NewMemoryRepository returns a store provisioned with FREE slots for codes.
// Codes are normalized and repeats are dropped.
func NewMemoryRepository(codes ...string) *MemoryRepository {
	r := &MemoryRepository{
		slots:    make(map[int64]Slot),
		sessions: make(map[string]Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = normalizeSlotCode(code)
		if _, dup := seen[code]; dup || code == "" {
			continue
		}
		seen[code] = struct{}{}
		r.insertSlotLocked(code)
	}
	return r
}

type memoryTx struct {
	repo *MemoryRepository
}

// WithTx implements RepositoryPort.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	slots := make(map[int64]Slot, len(r.slots))
	for k, v := range r.slots {
		slots[k] = v
	}
	sessions := make(map[string]Session, len(r.sessions))
	for k, v := range r.sessions {
		sessions[k] = v
	}
	nextID := r.nextID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.slots = slots
		r.sessions = sessions
		r.nextID = nextID
		return err
	}
	return nil
}

func (t *memoryTx) ClaimFirstFreeSlot(ctx context.Context) (Slot, error) {
	r := t.repo
	var (
		found Slot
		ok    bool
	)
	for _, s := range r.slots {
		if s.Status != SlotFree {
			continue
		}
		if !ok || s.Code < found.Code {
			found, ok = s, true
		}
	}
	if !ok {
		return Slot{}, ErrNoFreeSlot
	}
	found.Status = SlotOccupied
	found.UpdatedAt = r.now()
	r.slots[found.ID] = found
	return found, nil
}

func (t *memoryTx) FreeSlot(ctx context.Context, slotID int64) (bool, error) {
	r := t.repo
	s, ok := r.slots[slotID]
	if !ok || s.Status != SlotOccupied {
		return false, nil
	}
	s.Status = SlotFree
	s.UpdatedAt = r.now()
	r.slots[slotID] = s
	return true, nil
}

func (t *memoryTx) InsertSession(ctx context.Context, s Session) error {
	if _, exists := t.repo.sessions[s.Receipt]; exists {
		return ErrReceiptCollision
	}
	t.repo.sessions[s.Receipt] = s
	return nil
}

func (t *memoryTx) GetSessionForUpdate(ctx context.Context, receipt string) (Session, error) {
	s, ok := t.repo.sessions[receipt]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (t *memoryTx) CloseSession(ctx context.Context, s Session) (bool, error) {
	cur, ok := t.repo.sessions[s.Receipt]
	if !ok || cur.ID != s.ID || cur.Status != SessionOpen {
		return false, nil
	}
	cur.ExitAt = s.ExitAt
	cur.Amount = s.Amount
	cur.Discount = s.Discount
	cur.Status = SessionClosed
	t.repo.sessions[s.Receipt] = cur
	return true, nil
}

func (t *memoryTx) CountClosedSessions(ctx context.Context, documentID string) (int, error) {
	n := 0
	for _, s := range t.repo.sessions {
		if s.DocumentID == documentID && s.Status == SessionClosed {
			n++
		}
	}
	return n, nil
}

// FindSlotByCode implements SlotRepository.
func (r *MemoryRepository) FindSlotByCode(ctx context.Context, code string) (Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.Code == code {
			return s, nil
		}
	}
	return Slot{}, ErrSlotNotFound
}

// InsertSlot implements SlotRepository.
func (r *MemoryRepository) InsertSlot(ctx context.Context, code string) (Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.Code == code {
			return Slot{}, ErrDuplicateSlot
		}
	}
	return r.insertSlotLocked(code), nil
}

func (r *MemoryRepository) insertSlotLocked(code string) Slot {
	r.nextID++
	now := r.now()
	s := Slot{ID: r.nextID, Code: code, Status: SlotFree, CreatedAt: now, UpdatedAt: now}
	r.slots[s.ID] = s
	return s
}

// SlotOccupancy implements SlotRepository.
func (r *MemoryRepository) SlotOccupancy(ctx context.Context) (Occupancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var occ Occupancy
	for _, s := range r.slots {
		if s.Status == SlotOccupied {
			occ.Occupied++
		} else {
			occ.Free++
		}
	}
	return occ, nil
}

// FindSessionByReceipt implements RepositoryPort.
func (r *MemoryRepository) FindSessionByReceipt(ctx context.Context, receipt string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[receipt]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// ListSessionsByDocument implements RepositoryPort.
func (r *MemoryRepository) ListSessionsByDocument(ctx context.Context, documentID string, page PageRequest) ([]Session, int, error) {
	page = page.Normalize()
	r.mu.Lock()
	var matched []Session
	for _, s := range r.sessions {
		if s.DocumentID == documentID {
			matched = append(matched, s)
		}
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].EntryAt.Equal(matched[j].EntryAt) {
			return matched[i].EntryAt.After(matched[j].EntryAt)
		}
		return matched[i].Receipt > matched[j].Receipt
	})
	total := len(matched)
	start := page.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + page.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
