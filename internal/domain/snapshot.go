package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scope identifies whose portfolio a snapshot values
type Scope string

const (
	ScopePersonal Scope = "PERSONAL"
	ScopeFamily   Scope = "FAMILY"
)

// ParseScope converts user input to a Scope, defaulting to personal
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopePersonal:
		return ScopePersonal, nil
	case ScopeFamily:
		return ScopeFamily, nil
	default:
		return "", errors.New("scope must be PERSONAL or FAMILY")
	}
}

// Snapshot is the portfolio value of a subject (user or family) at a cutoff date.
// Snapshots are derived data: they are regenerated wholesale, never patched.
type Snapshot struct {
	ID             uuid.UUID
	SubjectID      uuid.UUID
	Scope          Scope
	AsOfDate       time.Time
	AggregateValue decimal.Decimal
	// HoldingsValued counts holdings that contributed a price to AggregateValue.
	HoldingsValued int
	// HoldingsSkipped counts holdings that still held units but had no usable price
	// or inconsistent lots at this date. Non-zero means the value is incomplete.
	HoldingsSkipped int
	CreatedAt       time.Time
}

// Incomplete reports whether some held position could not be valued
func (s Snapshot) Incomplete() bool {
	return s.HoldingsSkipped > 0
}

// Validate ensures the snapshot adheres to domain rules
func (s *Snapshot) Validate() error {
	if s.SubjectID == uuid.Nil {
		return errors.New("snapshot subject ID is required")
	}
	if s.Scope != ScopePersonal && s.Scope != ScopeFamily {
		return errors.New("snapshot scope must be PERSONAL or FAMILY")
	}
	if s.AsOfDate.IsZero() {
		return errors.New("snapshot date is required")
	}
	// Zero and negative aggregates mean "no position yet" and are never recorded
	if s.AggregateValue.LessThanOrEqual(decimal.Zero) {
		return errors.New("snapshot aggregate value must be positive")
	}
	return nil
}
