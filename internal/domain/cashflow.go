package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashFlow is a dated, signed movement of money.
// Negative amounts leave the investor (purchases), positive amounts return (sale proceeds
// and the terminal valuation of units still held).
type CashFlow struct {
	Date     time.Time
	Amount   decimal.Decimal
	Terminal bool // synthetic valuation of remaining units, not a real transaction
}
