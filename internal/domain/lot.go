package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuantityDust is the remaining quantity at or below which a lot counts as fully consumed
var QuantityDust = decimal.New(1, -9)

// Lot represents the units acquired by a single BUY transaction.
// ID is the source transaction ID, so a lot is never created twice for the same purchase.
type Lot struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	HoldingID          uuid.UUID
	OpenDate           time.Time
	Quantity           decimal.Decimal // units originally acquired
	RemainingQuantity  decimal.Decimal
	RemainingCostBasis decimal.Decimal
}

// NewLotFromTransaction opens a lot for a BUY transaction
func NewLotFromTransaction(tx Transaction) Lot {
	return Lot{
		ID:                 tx.ID,
		UserID:             tx.UserID,
		HoldingID:          tx.HoldingID,
		OpenDate:           Day(tx.Date),
		Quantity:           tx.Quantity,
		RemainingQuantity:  tx.Quantity,
		RemainingCostBasis: tx.GrossAmount,
	}
}

// IsExhausted reports whether the lot has nothing left to consume
func (l Lot) IsExhausted() bool {
	return l.RemainingQuantity.LessThanOrEqual(QuantityDust)
}

// CostPerUnit is the average cost of the units still in the lot
func (l Lot) CostPerUnit() decimal.Decimal {
	if l.RemainingQuantity.IsZero() {
		return decimal.Zero
	}
	return l.RemainingCostBasis.Div(l.RemainingQuantity)
}

// LotConsumption records how much of one lot a disposal used
type LotConsumption struct {
	LotID     uuid.UUID
	Quantity  decimal.Decimal
	CostBasis decimal.Decimal
}
