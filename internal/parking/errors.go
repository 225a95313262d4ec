package parking

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrClientNotFound indicates the document id did not resolve to a client.
	ErrClientNotFound = errors.New("parking: client not found")
	// ErrNoFreeSlot indicates the lot is full.
	ErrNoFreeSlot = errors.New("parking: no free slot")
	// ErrSessionNotFound indicates an unknown receipt.
	ErrSessionNotFound = errors.New("parking: session not found")
	// ErrReceiptCollision indicates a generated receipt already exists.
	ErrReceiptCollision = errors.New("parking: receipt collision")
	// ErrInvalidState indicates an illegal lifecycle transition.
	ErrInvalidState = errors.New("parking: invalid state")
	// ErrInvalidInterval indicates exit time earlier than entry time.
	ErrInvalidInterval = errors.New("parking: invalid interval")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("parking: validation failed")
	// ErrSlotNotFound indicates an unknown slot code.
	ErrSlotNotFound = errors.New("parking: slot not found")
	// ErrDuplicateSlot indicates a slot code is already provisioned.
	ErrDuplicateSlot = errors.New("parking: slot code already exists")
)

// ValidationError lists field level problems. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + " (" + strings.Join(parts, "; ") + ")"
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
