package parking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var slotCodePattern = regexp.MustCompile(`^[A-Z0-9]{1,4}-[0-9]{1,4}$`)

// SlotPool is the only component that flips slot occupancy.
type SlotPool struct {
	repo   SlotRepository
	logger *slog.Logger
}

// NewSlotPool builds a SlotPool.
func NewSlotPool(repo SlotRepository, logger *slog.Logger) *SlotPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlotPool{repo: repo, logger: logger}
}

// AcquireFreeSlot claims the lowest-coded FREE slot through w. Exclusivity
// comes from w: a row lock in PostgreSQL or the store mutex in memory.
func (p *SlotPool) AcquireFreeSlot(ctx context.Context, w SlotWriter) (Slot, error) {
	slot, err := w.ClaimFirstFreeSlot(ctx)
	if err != nil {
		return Slot{}, err
	}
	if slot.Status != SlotOccupied {
		return Slot{}, fmt.Errorf("%w: claimed slot %s reported %s", ErrInvalidState, slot.Code, slot.Status)
	}
	return slot, nil
}

// ReleaseSlot returns an OCCUPIED slot to the pool. Releasing a slot that is
// not OCCUPIED fails with ErrInvalidState and changes nothing.
func (p *SlotPool) ReleaseSlot(ctx context.Context, w SlotWriter, slotID int64) error {
	ok, err := w.FreeSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Error("release of slot that is not occupied", slog.Int64("slot_id", slotID))
		return fmt.Errorf("%w: slot %d is not occupied", ErrInvalidState, slotID)
	}
	return nil
}

// FindByCode looks a slot up by code.
func (p *SlotPool) FindByCode(ctx context.Context, code string) (Slot, error) {
	code = normalizeSlotCode(code)
	if code == "" {
		return Slot{}, ErrSlotNotFound
	}
	return p.repo.FindSlotByCode(ctx, code)
}

// Provision creates a FREE slot. Duplicate codes fail with ErrDuplicateSlot.
func (p *SlotPool) Provision(ctx context.Context, code string) (Slot, error) {
	code, err := NormalizeSlotCode(code)
	if err != nil {
		return Slot{}, err
	}
	if _, err := p.repo.FindSlotByCode(ctx, code); err == nil {
		return Slot{}, ErrDuplicateSlot
	} else if !errors.Is(err, ErrSlotNotFound) {
		return Slot{}, err
	}
	slot, err := p.repo.InsertSlot(ctx, code)
	if err != nil {
		return Slot{}, err
	}
	p.logger.Info("slot provisioned", slog.String("code", slot.Code), slog.Int64("slot_id", slot.ID))
	return slot, nil
}

// Occupancy summarises free and occupied slots.
func (p *SlotPool) Occupancy(ctx context.Context) (Occupancy, error) {
	return p.repo.SlotOccupancy(ctx)
}

func normalizeSlotCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeSlotCode upper-cases and trims code and checks it against the
// slot code format.
func NormalizeSlotCode(code string) (string, error) {
	code = normalizeSlotCode(code)
	if !slotCodePattern.MatchString(code) {
		return "", validationError(map[string]string{"code": "must look like A-01"})
	}
	return code, nil
}

// NormalizeSlotCodes normalizes a seed list of slot codes. Repeated codes
// fail with ErrDuplicateSlot.
func NormalizeSlotCodes(codes []string) ([]string, error) {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, raw := range codes {
		code, err := NormalizeSlotCode(raw)
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", raw, err)
		}
		if _, dup := seen[code]; dup {
			return nil, fmt.Errorf("slot %q: %w", code, ErrDuplicateSlot)
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}
