package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind represents the direction of a transaction
type TransactionKind string

const (
	TransactionKindBuy  TransactionKind = "BUY"
	TransactionKindSell TransactionKind = "SELL"
)

// Transaction represents one buy or sell event for one holding.
// Transactions are created by the ingestion layer and never edited afterwards;
// a correction arrives as a new transaction.
type Transaction struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	HoldingID    uuid.UUID
	Date         time.Time
	Kind         TransactionKind
	Quantity     decimal.Decimal // ABSOLUTE VALUE (Always Positive)
	GrossAmount  decimal.Decimal // ABSOLUTE VALUE (Always Positive)
	PricePerUnit decimal.Decimal
	Sequence     int64 // arrival order, breaks ties between same-day transactions
}

// Validate ensures the transaction adheres to domain rules
// Returns an error if validation fails
func (t *Transaction) Validate() error {
	if t.Kind != TransactionKindBuy && t.Kind != TransactionKindSell {
		return errors.New("transaction kind must be BUY or SELL")
	}

	if t.Date.IsZero() {
		return errors.New("transaction date is required")
	}

	// Quantity and amount are magnitudes; direction lives in Kind
	if t.Quantity.LessThanOrEqual(decimal.Zero) {
		return errors.New("transaction quantity must be positive (absolute value)")
	}

	if t.GrossAmount.IsNegative() {
		return errors.New("transaction gross amount must not be negative (absolute value)")
	}

	if t.PricePerUnit.IsNegative() {
		return errors.New("transaction price per unit must not be negative")
	}

	return nil
}

// IsBuy reports whether the transaction acquires units
func (t *Transaction) IsBuy() bool {
	return t.Kind == TransactionKindBuy
}

// SortTransactions orders transactions by calendar day, then arrival order.
// The sort is stable so callers that did not assign a Sequence keep their input order.
func SortTransactions(txns []Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		di, dj := Day(txns[i].Date), Day(txns[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return txns[i].Sequence < txns[j].Sequence
	})
}

// GroupByHolding splits transactions per holding, preserving their relative order
func GroupByHolding(txns []Transaction) map[uuid.UUID][]Transaction {
	grouped := make(map[uuid.UUID][]Transaction)
	for _, tx := range txns {
		grouped[tx.HoldingID] = append(grouped[tx.HoldingID], tx)
	}
	return grouped
}
