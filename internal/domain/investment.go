package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Holding is a mutual fund (scheme) that users can invest in
type Holding struct {
	ID         uuid.UUID
	Name       string
	ISIN       string
	SchemeCode string
	Category   string
}

// Validate ensures the holding adheres to domain rules
func (h *Holding) Validate() error {
	if h.ID == uuid.Nil {
		return errors.New("holding ID is required")
	}
	if strings.TrimSpace(h.Name) == "" {
		return errors.New("holding name is required")
	}
	return nil
}

// PricePoint is one published price (NAV) of a holding.
// It is the market value of a single unit on Date, as opposed to the cost paid.
type PricePoint struct {
	HoldingID uuid.UUID
	Date      time.Time
	Price     decimal.Decimal
}

// Disposal is a SELL that has been applied against the persisted lot book
type Disposal struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	HoldingID        uuid.UUID
	Date             time.Time
	Quantity         decimal.Decimal
	Proceeds         decimal.Decimal
	CostBasisRemoved decimal.Decimal
	RealizedGain     decimal.Decimal
	Consumptions     []LotConsumption
}

// Key identifies the disposal for idempotent replay
func (d Disposal) Key() DisposalKey {
	return DisposalKey{
		UserID:    d.UserID,
		HoldingID: d.HoldingID,
		Date:      Day(d.Date),
		Kind:      TransactionKindSell,
		Quantity:  d.Quantity.String(),
	}
}

// DisposalKey matches a SELL transaction against already-recorded consumption.
// Quantity is kept in its canonical string form so keys compare with ==.
type DisposalKey struct {
	UserID    uuid.UUID
	HoldingID uuid.UUID
	Date      time.Time
	Kind      TransactionKind
	Quantity  string
}

// DisposalKeyFor builds the replay key of a SELL transaction
func DisposalKeyFor(tx Transaction) DisposalKey {
	return DisposalKey{
		UserID:    tx.UserID,
		HoldingID: tx.HoldingID,
		Date:      Day(tx.Date),
		Kind:      tx.Kind,
		Quantity:  tx.Quantity.String(),
	}
}
