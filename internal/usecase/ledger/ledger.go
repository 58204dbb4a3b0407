package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/simaogato/fundfolio-backend/internal/usecase/xirr"
)

var daysPerYear = decimal.NewFromInt(365)

// PriceFunc returns the unit price of the holding as of date, or false when none is known
type PriceFunc func(date time.Time) (decimal.Decimal, bool)

// Result is the state of one holding's lots as of a valuation date
type Result struct {
	HoldingID          uuid.UUID
	AsOf               time.Time
	RemainingQuantity  decimal.Decimal
	RemainingCostBasis decimal.Decimal
	Price              decimal.Decimal
	Priced             bool
	CurrentValue       decimal.Decimal
	AbsoluteGain       decimal.Decimal // CurrentValue - RemainingCostBasis
	RealizedGain       decimal.Decimal // sale proceeds - cost basis removed by those sales
	// RealizedFlows holds the purchase and sale flows only
	RealizedFlows []domain.CashFlow
	// CashFlows is RealizedFlows plus the terminal valuation flow, when positive
	CashFlows []domain.CashFlow
	OpenLots  []domain.Lot
	// WeightedDays is Σ(days held × remaining cost) over open lots
	WeightedDays       decimal.Decimal
	HoldingPeriodYears float64
}

// Rate solves the annualized return of the holding's cash flows
func (r *Result) Rate() xirr.Result {
	return xirr.Solve(r.CashFlows)
}

// IsOpen reports whether units are still held
func (r *Result) IsOpen() bool {
	return r.RemainingQuantity.GreaterThan(domain.QuantityDust)
}

// Book replays transactions of a single holding into lots and cash flows
type Book struct {
	holdingID   uuid.UUID
	lots        []domain.Lot
	flows       []domain.CashFlow
	proceeds    decimal.Decimal
	costRemoved decimal.Decimal
}

// NewBook creates an empty book for a holding
func NewBook(holdingID uuid.UUID) *Book {
	return &Book{
		holdingID:   holdingID,
		proceeds:    decimal.Zero,
		costRemoved: decimal.Zero,
	}
}

// Apply processes one transaction.
// A SELL that exceeds the open lots fails with *domain.InsufficientLotsError and leaves the book unchanged.
func (b *Book) Apply(tx domain.Transaction) error {
	switch tx.Kind {
	case domain.TransactionKindBuy:
		b.lots = append(b.lots, domain.NewLotFromTransaction(tx))
		b.flows = append(b.flows, domain.CashFlow{
			Date:   domain.Day(tx.Date),
			Amount: tx.GrossAmount.Abs().Neg(),
		})
		return nil

	case domain.TransactionKindSell:
		consumption, err := ConsumeFIFO(b.holdingID, b.lots, tx.Quantity.Abs())
		if err != nil {
			return err
		}
		b.lots = consumption.Open
		// The recorded proceeds are authoritative, not quantity x looked-up price
		b.flows = append(b.flows, domain.CashFlow{
			Date:   domain.Day(tx.Date),
			Amount: tx.GrossAmount.Abs(),
		})
		b.proceeds = b.proceeds.Add(tx.GrossAmount.Abs())
		b.costRemoved = b.costRemoved.Add(consumption.CostBasisRemoved)
		return nil

	default:
		return fmt.Errorf("unsupported transaction kind %q", tx.Kind)
	}
}

// Lots returns a copy of the open lots, oldest first
func (b *Book) Lots() []domain.Lot {
	out := make([]domain.Lot, len(b.lots))
	copy(out, b.lots)
	return out
}

// Close values the book as of asOf
func (b *Book) Close(asOf time.Time, priceAsOf PriceFunc) *Result {
	asOf = domain.Day(asOf)

	res := &Result{
		HoldingID:          b.holdingID,
		AsOf:               asOf,
		RemainingQuantity:  OpenQuantity(b.lots),
		RemainingCostBasis: decimal.Zero,
		Price:              decimal.Zero,
		CurrentValue:       decimal.Zero,
		RealizedGain:       b.proceeds.Sub(b.costRemoved),
		RealizedFlows:      make([]domain.CashFlow, len(b.flows)),
		OpenLots:           b.Lots(),
		WeightedDays:       decimal.Zero,
	}
	copy(res.RealizedFlows, b.flows)

	costOfWeightedLots := decimal.Zero
	for _, lot := range b.lots {
		res.RemainingCostBasis = res.RemainingCostBasis.Add(lot.RemainingCostBasis)
		if lot.RemainingCostBasis.IsPositive() {
			days := decimal.NewFromInt(int64(domain.DaysBetween(lot.OpenDate, asOf)))
			res.WeightedDays = res.WeightedDays.Add(days.Mul(lot.RemainingCostBasis))
			costOfWeightedLots = costOfWeightedLots.Add(lot.RemainingCostBasis)
		}
	}
	if costOfWeightedLots.IsPositive() {
		res.HoldingPeriodYears = res.WeightedDays.Div(costOfWeightedLots).Div(daysPerYear).InexactFloat64()
	}

	if priceAsOf != nil {
		if price, ok := priceAsOf(asOf); ok {
			res.Price = price
			res.Priced = true
			res.CurrentValue = res.RemainingQuantity.Mul(price)
		}
	}
	res.AbsoluteGain = res.CurrentValue.Sub(res.RemainingCostBasis)

	res.CashFlows = make([]domain.CashFlow, len(res.RealizedFlows), len(res.RealizedFlows)+1)
	copy(res.CashFlows, res.RealizedFlows)
	if res.CurrentValue.IsPositive() {
		res.CashFlows = append(res.CashFlows, domain.CashFlow{
			Date:     asOf,
			Amount:   res.CurrentValue,
			Terminal: true,
		})
	}

	return res
}

// ComputeLots replays the transactions of one holding up to and including asOf,
// matching sells against buys first-in first-out, and values what is left with priceAsOf.
//
// Transactions may arrive unsorted; they are ordered by date then arrival order.
// All transactions must belong to the same holding.
func ComputeLots(txns []domain.Transaction, asOf time.Time, priceAsOf PriceFunc) (*Result, error) {
	asOf = domain.Day(asOf)

	ordered := make([]domain.Transaction, len(txns))
	copy(ordered, txns)
	domain.SortTransactions(ordered)

	var holdingID uuid.UUID
	if len(ordered) > 0 {
		holdingID = ordered[0].HoldingID
	}

	book := NewBook(holdingID)
	for _, tx := range ordered {
		if domain.Day(tx.Date).After(asOf) {
			break
		}
		if tx.HoldingID != holdingID {
			return nil, fmt.Errorf("transaction %s belongs to holding %s, expected %s", tx.ID, tx.HoldingID, holdingID)
		}
		if err := book.Apply(tx); err != nil {
			return nil, fmt.Errorf("failed to apply %s transaction %s dated %s: %w",
				tx.Kind, tx.ID, tx.Date.Format(time.DateOnly), err)
		}
	}

	return book.Close(asOf, priceAsOf), nil
}
