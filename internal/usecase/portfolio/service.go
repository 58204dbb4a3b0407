package portfolio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/simaogato/fundfolio-backend/internal/usecase/ledger"
	"github.com/simaogato/fundfolio-backend/internal/usecase/snapshot"
	"github.com/simaogato/fundfolio-backend/internal/usecase/xirr"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// HoldingSummary is one row of the holdings table
type HoldingSummary struct {
	HoldingID    uuid.UUID
	Name         string
	Category     string
	Quantity     decimal.Decimal
	CostBasis    decimal.Decimal
	Price        decimal.Decimal
	PriceDate    time.Time
	Priced       bool
	CurrentValue decimal.Decimal
	AbsoluteGain decimal.Decimal
	RealizedGain decimal.Decimal
	XIRR         xirr.Result
	// AverageDaysHeld is the cost-weighted age of the open lots
	AverageDaysHeld float64
	// PortfolioShare is the percentage of the total current value
	PortfolioShare decimal.Decimal
	OpenLots       int
	// Error is set when the lots could not be matched; the row is then excluded from totals
	Error string
}

// Summary is the valuation of a user's or family's current holdings
type Summary struct {
	SubjectID       uuid.UUID
	Scope           domain.Scope
	AsOf            time.Time
	Holdings        []HoldingSummary
	TotalCost       decimal.Decimal
	TotalValue      decimal.Decimal
	TotalGain       decimal.Decimal
	RealizedGain    decimal.Decimal
	XIRR            xirr.Result
	AverageDaysHeld float64
}

// PortfolioService builds holding-level and portfolio-level summaries
type PortfolioService struct {
	TransactionRepo domain.TransactionRepository
	PriceRepo       domain.PriceRepository
	SubjectRepo     domain.SubjectRepository
	HoldingRepo     domain.HoldingRepository
	FallbackDays    int
	Logger          *zap.SugaredLogger
	Now             func() time.Time
}

// NewPortfolioService creates a new PortfolioService instance
func NewPortfolioService(
	transactionRepo domain.TransactionRepository,
	priceRepo domain.PriceRepository,
	subjectRepo domain.SubjectRepository,
	holdingRepo domain.HoldingRepository,
	logger *zap.SugaredLogger,
) *PortfolioService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PortfolioService{
		TransactionRepo: transactionRepo,
		PriceRepo:       priceRepo,
		SubjectRepo:     subjectRepo,
		HoldingRepo:     holdingRepo,
		FallbackDays:    snapshot.DefaultFallbackDays,
		Logger:          logger,
		Now:             time.Now,
	}
}

// PersonalSummary values a user's holdings.
// A zero asOf values at today with the latest known prices.
func (s *PortfolioService) PersonalSummary(ctx context.Context, userID uuid.UUID, asOf time.Time) (*Summary, error) {
	if _, err := s.SubjectRepo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.summarize(ctx, userID, domain.ScopePersonal, []uuid.UUID{userID}, asOf)
}

// FamilySummary values the merged holdings of every family member.
// Lots are matched across members, as in family snapshots.
func (s *PortfolioService) FamilySummary(ctx context.Context, familyID uuid.UUID, asOf time.Time) (*Summary, error) {
	if _, err := s.SubjectRepo.GetFamily(ctx, familyID); err != nil {
		return nil, err
	}
	members, err := s.SubjectRepo.ListFamilyMembers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}
	return s.summarize(ctx, familyID, domain.ScopeFamily, domain.UserIDs(members), asOf)
}

func (s *PortfolioService) summarize(ctx context.Context, subjectID uuid.UUID, scope domain.Scope, userIDs []uuid.UUID, asOf time.Time) (*Summary, error) {
	latest := asOf.IsZero()
	if latest {
		asOf = s.Now()
	}
	asOf = domain.Day(asOf)

	summary := &Summary{
		SubjectID:    subjectID,
		Scope:        scope,
		AsOf:         asOf,
		Holdings:     []HoldingSummary{},
		TotalCost:    decimal.Zero,
		TotalValue:   decimal.Zero,
		TotalGain:    decimal.Zero,
		RealizedGain: decimal.Zero,
	}
	if len(userIDs) == 0 {
		summary.XIRR = xirr.Result{Status: xirr.StatusDegenerate}
		return summary, nil
	}

	txns, err := s.TransactionRepo.ListByUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var (
		flows          []domain.CashFlow
		weightedDays   = decimal.Zero
		weightedCost   = decimal.Zero
		consistentRows []int
	)

	byHolding := domain.GroupByHolding(txns)
	holdingIDs := make([]uuid.UUID, 0, len(byHolding))
	for id := range byHolding {
		holdingIDs = append(holdingIDs, id)
	}
	sort.Slice(holdingIDs, func(i, j int) bool {
		return bytes.Compare(holdingIDs[i][:], holdingIDs[j][:]) < 0
	})

	for _, holdingID := range holdingIDs {
		holdingTxns := byHolding[holdingID]
		row := HoldingSummary{HoldingID: holdingID}

		holding, err := s.HoldingRepo.GetByID(ctx, holdingID)
		switch {
		case err == nil:
			row.Name = holding.Name
			row.Category = holding.Category
		case errors.Is(err, domain.ErrNotFound):
			s.Logger.Warnw("holding metadata missing", "holding_id", holdingID)
		default:
			return nil, fmt.Errorf("failed to get holding %s: %w", holdingID, err)
		}

		priceAt, err := s.priceFunc(ctx, holdingID, latest, &row)
		if err != nil {
			return nil, err
		}

		res, err := ledger.ComputeLots(holdingTxns, asOf, priceAt)
		if err != nil {
			if !errors.Is(err, domain.ErrInsufficientLots) {
				return nil, err
			}
			s.Logger.Warnw("holding has inconsistent lots", "holding_id", holdingID, "error", err)
			row.Error = err.Error()
			summary.Holdings = append(summary.Holdings, row)
			continue
		}

		summary.RealizedGain = summary.RealizedGain.Add(res.RealizedGain)
		// Exited holdings carry only realized flows; an open one adds its single terminal flow
		flows = append(flows, res.CashFlows...)
		// Only current holdings are listed
		if !res.IsOpen() {
			continue
		}

		row.Quantity = res.RemainingQuantity
		row.CostBasis = res.RemainingCostBasis.Round(2)
		row.Priced = res.Priced
		row.Price = res.Price
		row.CurrentValue = res.CurrentValue.Round(2)
		row.AbsoluteGain = res.AbsoluteGain.Round(2)
		row.RealizedGain = res.RealizedGain.Round(2)
		row.XIRR = res.Rate()
		row.AverageDaysHeld = res.HoldingPeriodYears * 365
		row.OpenLots = len(res.OpenLots)

		summary.TotalCost = summary.TotalCost.Add(res.RemainingCostBasis)
		summary.TotalValue = summary.TotalValue.Add(res.CurrentValue)
		weightedDays = weightedDays.Add(res.WeightedDays)
		weightedCost = weightedCost.Add(res.RemainingCostBasis)

		consistentRows = append(consistentRows, len(summary.Holdings))
		summary.Holdings = append(summary.Holdings, row)
	}

	if summary.TotalValue.IsPositive() {
		for _, i := range consistentRows {
			row := &summary.Holdings[i]
			row.PortfolioShare = row.CurrentValue.Div(summary.TotalValue).Mul(hundred).Round(2)
		}
	}

	summary.TotalGain = summary.TotalValue.Sub(summary.TotalCost).Round(2)
	summary.TotalCost = summary.TotalCost.Round(2)
	summary.TotalValue = summary.TotalValue.Round(2)
	summary.RealizedGain = summary.RealizedGain.Round(2)
	summary.XIRR = xirr.Solve(flows)
	if weightedCost.IsPositive() {
		summary.AverageDaysHeld = weightedDays.Div(weightedCost).InexactFloat64()
	}

	sort.SliceStable(summary.Holdings, func(i, j int) bool {
		a, b := summary.Holdings[i], summary.Holdings[j]
		if !a.CurrentValue.Equal(b.CurrentValue) {
			return a.CurrentValue.GreaterThan(b.CurrentValue)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return bytes.Compare(a.HoldingID[:], b.HoldingID[:]) < 0
	})

	return summary, nil
}

// priceFunc returns the price lookup for a holding and records the price date on row
func (s *PortfolioService) priceFunc(ctx context.Context, holdingID uuid.UUID, latest bool, row *HoldingSummary) (ledger.PriceFunc, error) {
	if latest {
		p, err := s.PriceRepo.Latest(ctx, holdingID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get latest price of holding %s: %w", holdingID, err)
		}
		row.PriceDate = domain.Day(p.Date)
		return func(time.Time) (decimal.Decimal, bool) { return p.Price, true }, nil
	}

	points, err := s.PriceRepo.ListByHolding(ctx, holdingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices of holding %s: %w", holdingID, err)
	}
	series := snapshot.NewPriceSeries(points)
	return func(date time.Time) (decimal.Decimal, bool) {
		p, ok := series.Lookup(date, s.FallbackDays)
		if !ok {
			return decimal.Zero, false
		}
		row.PriceDate = p.Date
		return p.Price, true
	}, nil
}
