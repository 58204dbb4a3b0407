package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

var (
	alice = uuid.MustParse("00000000-0000-0000-0000-00000000a11c")
	bob   = uuid.MustParse("00000000-0000-0000-0000-000000000b0b")
)

func TestReconstruct_ValuesEachCutoff(t *testing.T) {
	ctx := context.Background()
	r := NewReconstructor(nil, 2)

	// Setup: one purchase, prices moving over two months
	txns := map[uuid.UUID][]domain.Transaction{
		fundA: {txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 10), "10", "1000")},
	}
	prices := NewPriceBook(DefaultFallbackDays)
	prices.Add(fundA, []domain.PricePoint{
		price(fundA, domain.NewDate(2024, 1, 10), "100"),
		price(fundA, domain.NewDate(2024, 1, 31), "110"),
		price(fundA, domain.NewDate(2024, 2, 14), "120.555"),
	})
	cutoffs := GenerateCutoffs(2024, domain.NewDate(2024, 2, 20))

	// Execute
	got, err := r.Reconstruct(ctx, alice, domain.ScopePersonal, txns, prices, cutoffs)

	// Assert
	require.NoError(t, err)
	snapshot := func(date time.Time, value string) domain.Snapshot {
		return domain.Snapshot{
			ID:             SnapshotID(alice, domain.ScopePersonal, date),
			SubjectID:      alice,
			Scope:          domain.ScopePersonal,
			AsOfDate:       date,
			AggregateValue: dec(value),
			HoldingsValued: 1,
		}
	}
	want := []domain.Snapshot{
		snapshot(domain.NewDate(2024, 1, 15), "1000"),
		snapshot(domain.NewDate(2024, 1, 31), "1100"),
		// 10 x 120.555 rounded to cents
		snapshot(domain.NewDate(2024, 2, 15), "1205.55"),
	}
	if diff := cmp.Diff(want, got, decimalComparer); diff != "" {
		t.Errorf("Reconstruct() mismatch (-want +got):\n%s", diff)
	}
}

func TestReconstruct_OnlyPositiveAggregates(t *testing.T) {
	ctx := context.Background()
	r := NewReconstructor(nil, 0)

	// Setup: bought and fully sold within January
	txns := map[uuid.UUID][]domain.Transaction{
		fundA: {
			txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 10), "10", "1000"),
			txn(alice, fundA, domain.TransactionKindSell, domain.NewDate(2024, 1, 20), "10", "1050"),
		},
	}
	prices := NewPriceBook(DefaultFallbackDays)
	prices.Add(fundA, []domain.PricePoint{price(fundA, domain.NewDate(2024, 1, 1), "100")})
	cutoffs := []time.Time{
		domain.NewDate(2023, 12, 31),
		domain.NewDate(2024, 1, 15),
		domain.NewDate(2024, 1, 31),
		domain.NewDate(2024, 2, 15),
	}

	got, err := r.Reconstruct(ctx, alice, domain.ScopePersonal, txns, prices, cutoffs)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.NewDate(2024, 1, 15), got[0].AsOfDate)
	assert.Equal(t, "1000", got[0].AggregateValue.String())
}

func TestReconstruct_MissingPriceMarksSnapshotIncomplete(t *testing.T) {
	ctx := context.Background()
	r := NewReconstructor(nil, 0)

	txns := map[uuid.UUID][]domain.Transaction{
		fundA: {txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 2), "10", "1000")},
		fundB: {txn(alice, fundB, domain.TransactionKindBuy, domain.NewDate(2024, 1, 3), "5", "500")},
	}
	prices := NewPriceBook(DefaultFallbackDays)
	prices.Add(fundA, []domain.PricePoint{price(fundA, domain.NewDate(2024, 1, 2), "101")})
	// fundB has no price at all

	got, err := r.Reconstruct(ctx, alice, domain.ScopePersonal, txns, prices, []time.Time{domain.NewDate(2024, 1, 15)})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1010", got[0].AggregateValue.String())
	assert.Equal(t, 1, got[0].HoldingsValued)
	assert.Equal(t, 1, got[0].HoldingsSkipped)
	assert.True(t, got[0].Incomplete())
}

func TestReconstruct_InsufficientLotsSkipsHolding(t *testing.T) {
	ctx := context.Background()
	r := NewReconstructor(nil, 0)

	txns := map[uuid.UUID][]domain.Transaction{
		fundA: {txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 2), "10", "1000")},
		// Disposal recorded without a matching acquisition
		fundB: {txn(alice, fundB, domain.TransactionKindSell, domain.NewDate(2024, 1, 3), "5", "500")},
	}
	prices := NewPriceBook(DefaultFallbackDays)
	prices.Add(fundA, []domain.PricePoint{price(fundA, domain.NewDate(2024, 1, 2), "100")})
	prices.Add(fundB, []domain.PricePoint{price(fundB, domain.NewDate(2024, 1, 2), "100")})

	got, err := r.Reconstruct(ctx, alice, domain.ScopePersonal, txns, prices, []time.Time{domain.NewDate(2024, 1, 15)})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1000", got[0].AggregateValue.String())
	assert.Equal(t, 1, got[0].HoldingsSkipped)
}

func TestReconstruct_FamilyMatchesLotsAcrossMembers(t *testing.T) {
	ctx := context.Background()
	r := NewReconstructor(nil, 0)

	// Bob sells units before buying any; only Alice's earlier lot can cover it
	aliceBuy := txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 5), "10", "1000")
	bobSell := txn(bob, fundA, domain.TransactionKindSell, domain.NewDate(2024, 1, 10), "10", "1000")
	bobBuy := txn(bob, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 20), "10", "1000")

	prices := NewPriceBook(DefaultFallbackDays)
	prices.Add(fundA, []domain.PricePoint{price(fundA, domain.NewDate(2024, 1, 1), "100")})
	cutoffs := []time.Time{domain.NewDate(2024, 1, 15), domain.NewDate(2024, 1, 31)}

	familyID := uuid.New()
	family, err := r.Reconstruct(ctx, familyID, domain.ScopeFamily, map[uuid.UUID][]domain.Transaction{
		fundA: {aliceBuy, bobSell, bobBuy},
	}, prices, cutoffs)
	require.NoError(t, err)

	personal, err := r.Reconstruct(ctx, bob, domain.ScopePersonal, map[uuid.UUID][]domain.Transaction{
		fundA: {bobSell, bobBuy},
	}, prices, cutoffs)
	require.NoError(t, err)

	// Family: nothing held on the 15th, ten units at month end
	require.Len(t, family, 1)
	assert.Equal(t, domain.NewDate(2024, 1, 31), family[0].AsOfDate)
	assert.Equal(t, "1000", family[0].AggregateValue.String())
	assert.Equal(t, domain.ScopeFamily, family[0].Scope)

	// Bob alone can never match his sale
	assert.Empty(t, personal)
}

func TestReconstruct_IsDeterministic(t *testing.T) {
	ctx := context.Background()
	r := NewReconstructor(nil, 4)

	txns := map[uuid.UUID][]domain.Transaction{
		fundA: {
			txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2023, 3, 1), "12.345", "1234.5"),
			txn(alice, fundA, domain.TransactionKindSell, domain.NewDate(2023, 9, 1), "2.1", "230"),
		},
		fundB: {txn(alice, fundB, domain.TransactionKindBuy, domain.NewDate(2023, 5, 1), "3", "300")},
	}
	prices := NewPriceBook(DefaultFallbackDays)
	prices.Add(fundA, []domain.PricePoint{
		price(fundA, domain.NewDate(2023, 3, 1), "100"),
		price(fundA, domain.NewDate(2023, 8, 1), "107.77"),
	})
	prices.Add(fundB, []domain.PricePoint{price(fundB, domain.NewDate(2023, 5, 1), "99.1")})
	cutoffs := GenerateCutoffs(2023, domain.NewDate(2023, 12, 31))

	first, err := r.Reconstruct(ctx, alice, domain.ScopePersonal, txns, prices, cutoffs)
	require.NoError(t, err)
	second, err := r.Reconstruct(ctx, alice, domain.ScopePersonal, txns, prices, cutoffs)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	if diff := cmp.Diff(first, second, decimalComparer); diff != "" {
		t.Errorf("replay differs (-first +second):\n%s", diff)
	}
}

func TestReconstruct_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewReconstructor(nil, 0)

	txns := map[uuid.UUID][]domain.Transaction{
		fundA: {txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 10), "10", "1000")},
	}

	_, err := r.Reconstruct(ctx, alice, domain.ScopePersonal, txns, NewPriceBook(0), []time.Time{domain.NewDate(2024, 1, 15)})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotID_IsStable(t *testing.T) {
	d := domain.NewDate(2024, 1, 15)

	assert.Equal(t, SnapshotID(alice, domain.ScopePersonal, d), SnapshotID(alice, domain.ScopePersonal, d.Add(5*time.Hour)))
	assert.NotEqual(t, SnapshotID(alice, domain.ScopePersonal, d), SnapshotID(alice, domain.ScopeFamily, d))
	assert.NotEqual(t, SnapshotID(alice, domain.ScopePersonal, d), SnapshotID(bob, domain.ScopePersonal, d))
}
