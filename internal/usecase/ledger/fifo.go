package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// Consumption is the outcome of disposing units from a set of lots
type Consumption struct {
	// Open holds the lots still open after the disposal, oldest first
	Open []domain.Lot
	// Touched holds every lot whose remaining quantity changed, including retired ones
	Touched []domain.Lot
	// Parts lists how much quantity and cost came out of each touched lot
	Parts            []domain.LotConsumption
	CostBasisRemoved decimal.Decimal
}

// OpenQuantity sums the remaining quantity of the given lots
func OpenQuantity(lots []domain.Lot) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.RemainingQuantity)
	}
	return total
}

// ConsumeFIFO disposes quantity from lots, oldest first.
// Consuming a fraction p of a lot removes exactly p of its remaining cost basis.
//
// The input slice is never modified. When quantity exceeds the open total (beyond
// domain.QuantityDust) it returns *domain.InsufficientLotsError and nothing is consumed.
func ConsumeFIFO(holdingID uuid.UUID, lots []domain.Lot, quantity decimal.Decimal) (*Consumption, error) {
	available := OpenQuantity(lots)
	if quantity.Sub(available).GreaterThan(domain.QuantityDust) {
		return nil, &domain.InsufficientLotsError{
			HoldingID: holdingID,
			Requested: quantity,
			Available: available,
		}
	}

	result := &Consumption{
		Open:             make([]domain.Lot, 0, len(lots)),
		CostBasisRemoved: decimal.Zero,
	}

	toSell := quantity
	for _, lot := range lots {
		if toSell.LessThanOrEqual(domain.QuantityDust) || lot.IsExhausted() {
			if !lot.IsExhausted() {
				result.Open = append(result.Open, lot)
			}
			continue
		}

		consumed := decimal.Min(lot.RemainingQuantity, toSell)

		var costRemoved decimal.Decimal
		if consumed.Equal(lot.RemainingQuantity) {
			costRemoved = lot.RemainingCostBasis
		} else {
			// Proportional: cost * consumed / remaining keeps cost-per-unit stable
			costRemoved = lot.RemainingCostBasis.Mul(consumed).Div(lot.RemainingQuantity)
		}

		lot.RemainingQuantity = lot.RemainingQuantity.Sub(consumed)
		lot.RemainingCostBasis = lot.RemainingCostBasis.Sub(costRemoved)
		toSell = toSell.Sub(consumed)

		if lot.IsExhausted() {
			// Retire the lot; dust left by upstream rounding goes with it
			costRemoved = costRemoved.Add(lot.RemainingCostBasis)
			lot.RemainingQuantity = decimal.Zero
			lot.RemainingCostBasis = decimal.Zero
		} else {
			result.Open = append(result.Open, lot)
		}

		result.Touched = append(result.Touched, lot)
		result.Parts = append(result.Parts, domain.LotConsumption{
			LotID:     lot.ID,
			Quantity:  consumed,
			CostBasis: costRemoved,
		})
		result.CostBasisRemoved = result.CostBasisRemoved.Add(costRemoved)
	}

	return result, nil
}
