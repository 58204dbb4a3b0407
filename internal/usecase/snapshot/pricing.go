package snapshot

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/simaogato/fundfolio-backend/internal/usecase/ledger"
)

// DefaultFallbackDays is how far after a cutoff a price may be borrowed
// when nothing was published on or before it
const DefaultFallbackDays = 15

// PriceSource looks up the unit price of a holding for a cutoff date
type PriceSource interface {
	PriceAt(holdingID uuid.UUID, date time.Time) (decimal.Decimal, bool)
}

// PriceSeries is the price history of one holding, sorted by date
type PriceSeries []domain.PricePoint

// NewPriceSeries sorts points by date; on duplicate dates the last one wins
func NewPriceSeries(points []domain.PricePoint) PriceSeries {
	sorted := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		p.Date = domain.Day(p.Date)
		sorted = append(sorted, p)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	series := make(PriceSeries, 0, len(sorted))
	for _, p := range sorted {
		if n := len(series); n > 0 && series[n-1].Date.Equal(p.Date) {
			series[n-1] = p
			continue
		}
		series = append(series, p)
	}
	return series
}

// OnOrBefore returns the latest price published on or before date
func (s PriceSeries) OnOrBefore(date time.Time) (domain.PricePoint, bool) {
	date = domain.Day(date)
	// first index strictly after date
	i := sort.Search(len(s), func(i int) bool { return s[i].Date.After(date) })
	if i == 0 {
		return domain.PricePoint{}, false
	}
	return s[i-1], true
}

// After returns the earliest price published after date and no later than date+days
func (s PriceSeries) After(date time.Time, days int) (domain.PricePoint, bool) {
	date = domain.Day(date)
	limit := date.AddDate(0, 0, days)
	i := sort.Search(len(s), func(i int) bool { return s[i].Date.After(date) })
	if i == len(s) || s[i].Date.After(limit) {
		return domain.PricePoint{}, false
	}
	return s[i], true
}

// Lookup prefers the latest price on or before date, falling back to the earliest
// price within the following fallbackDays to bridge short publication gaps
func (s PriceSeries) Lookup(date time.Time, fallbackDays int) (domain.PricePoint, bool) {
	if p, ok := s.OnOrBefore(date); ok {
		return p, true
	}
	if fallbackDays <= 0 {
		return domain.PricePoint{}, false
	}
	return s.After(date, fallbackDays)
}

// PriceBook holds the price series of several holdings
type PriceBook struct {
	series       map[uuid.UUID]PriceSeries
	FallbackDays int
}

// NewPriceBook creates an empty PriceBook
func NewPriceBook(fallbackDays int) *PriceBook {
	return &PriceBook{
		series:       make(map[uuid.UUID]PriceSeries),
		FallbackDays: fallbackDays,
	}
}

// Add sets the price history of a holding
func (b *PriceBook) Add(holdingID uuid.UUID, points []domain.PricePoint) {
	b.series[holdingID] = NewPriceSeries(points)
}

// Point returns the price point used for holdingID at date
func (b *PriceBook) Point(holdingID uuid.UUID, date time.Time) (domain.PricePoint, bool) {
	series, ok := b.series[holdingID]
	if !ok {
		return domain.PricePoint{}, false
	}
	return series.Lookup(date, b.FallbackDays)
}

// PriceAt implements PriceSource
func (b *PriceBook) PriceAt(holdingID uuid.UUID, date time.Time) (decimal.Decimal, bool) {
	p, ok := b.Point(holdingID, date)
	if !ok {
		return decimal.Zero, false
	}
	return p.Price, true
}

// PriceFunc binds a PriceSource to one holding for the ledger
func PriceFunc(src PriceSource, holdingID uuid.UUID) ledger.PriceFunc {
	return func(date time.Time) (decimal.Decimal, bool) {
		return src.PriceAt(holdingID, date)
	}
}
