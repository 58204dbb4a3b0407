package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by repositories when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrInsufficientLots matches any *InsufficientLotsError via errors.Is
	ErrInsufficientLots = errors.New("insufficient lots")

	// ErrDisposalAlreadyApplied is returned when a SELL was already consumed from the lot book
	ErrDisposalAlreadyApplied = errors.New("disposal already applied")
)

// InsufficientLotsError reports a SELL asking for more units than the open lots hold.
// It signals an upstream data problem: a disposal recorded before its acquisition,
// or a duplicated disposal.
type InsufficientLotsError struct {
	HoldingID uuid.UUID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("not enough units to sell in holding %s: requested %s, available %s",
		e.HoldingID, e.Requested.String(), e.Available.String())
}

// Is lets errors.Is(err, ErrInsufficientLots) match
func (e *InsufficientLotsError) Is(target error) bool {
	return target == ErrInsufficientLots
}
