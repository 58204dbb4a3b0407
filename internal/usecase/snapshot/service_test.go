package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	txRepo       *MockTransactionRepository
	priceRepo    *MockPriceRepository
	snapshotRepo *MockSnapshotRepository
	subjectRepo  *MockSubjectRepository
	service      *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		txRepo:       new(MockTransactionRepository),
		priceRepo:    new(MockPriceRepository),
		snapshotRepo: new(MockSnapshotRepository),
		subjectRepo:  new(MockSubjectRepository),
	}
	f.service = NewService(f.txRepo, f.priceRepo, f.snapshotRepo, f.subjectRepo, DefaultConfig(), nil)
	f.service.Now = func() time.Time { return domain.NewDate(2024, 2, 20) }
	return f
}

func (f *serviceFixture) assertExpectations(t *testing.T) {
	f.txRepo.AssertExpectations(t)
	f.priceRepo.AssertExpectations(t)
	f.snapshotRepo.AssertExpectations(t)
	f.subjectRepo.AssertExpectations(t)
}

func TestRebuildPersonal_ReplacesSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	// Setup
	txns := []domain.Transaction{
		txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 10), "10", "1000"),
	}
	f.subjectRepo.On("GetUser", ctx, alice).Return(&domain.User{ID: alice}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{alice}).Return(txns, nil)
	f.priceRepo.On("ListByHolding", ctx, fundA).Return([]domain.PricePoint{
		price(fundA, domain.NewDate(2024, 1, 10), "100"),
	}, nil)
	f.snapshotRepo.On("ReplaceAll", ctx, alice, domain.ScopePersonal, mock.MatchedBy(func(s []domain.Snapshot) bool {
		// Jan 15, Jan 31, Feb 15
		return len(s) == 3
	})).Return(nil)

	// Execute
	snaps, err := f.service.RebuildPersonal(ctx, alice)

	// Assert
	require.NoError(t, err)
	assert.Len(t, snaps, 3)
	for _, s := range snaps {
		assert.Equal(t, "1000", s.AggregateValue.String())
		assert.NoError(t, s.Validate())
	}
	f.assertExpectations(t)
}

func TestRebuildPersonal_ConfiguredStartYear(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.service.Config.StartYear = 2023

	txns := []domain.Transaction{
		txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2023, 12, 20), "1", "100"),
	}
	f.subjectRepo.On("GetUser", ctx, alice).Return(&domain.User{ID: alice}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{alice}).Return(txns, nil)
	f.priceRepo.On("ListByHolding", ctx, fundA).Return([]domain.PricePoint{
		price(fundA, domain.NewDate(2023, 12, 20), "100"),
	}, nil)
	f.snapshotRepo.On("ReplaceAll", ctx, alice, domain.ScopePersonal, mock.Anything).Return(nil)

	snaps, err := f.service.RebuildPersonal(ctx, alice)

	require.NoError(t, err)
	// Dec 31, Jan 15, Jan 31, Feb 15
	require.Len(t, snaps, 4)
	assert.Equal(t, domain.NewDate(2023, 12, 31), snaps[0].AsOfDate)
}

func TestRebuildPersonal_FallbackDisabled(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.service.Config.FallbackDays = 0

	// Setup: the first price is published after the Jan 15 cutoff
	txns := []domain.Transaction{
		txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 10), "10", "1000"),
	}
	f.subjectRepo.On("GetUser", ctx, alice).Return(&domain.User{ID: alice}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{alice}).Return(txns, nil)
	f.priceRepo.On("ListByHolding", ctx, fundA).Return([]domain.PricePoint{
		price(fundA, domain.NewDate(2024, 1, 20), "110"),
	}, nil)
	f.snapshotRepo.On("ReplaceAll", ctx, alice, domain.ScopePersonal, mock.Anything).Return(nil)

	// Execute
	snaps, err := f.service.RebuildPersonal(ctx, alice)

	// Assert: Jan 15 borrows nothing, Jan 31 and Feb 15 are valued
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, domain.NewDate(2024, 1, 31), snaps[0].AsOfDate)
	assert.Equal(t, "1100", snaps[0].AggregateValue.String())
}

func TestRebuildPersonal_NoTransactionsClearsSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	f.subjectRepo.On("GetUser", ctx, alice).Return(&domain.User{ID: alice}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{alice}).Return([]domain.Transaction{}, nil)
	f.snapshotRepo.On("ReplaceAll", ctx, alice, domain.ScopePersonal, []domain.Snapshot{}).Return(nil)

	snaps, err := f.service.RebuildPersonal(ctx, alice)

	require.NoError(t, err)
	assert.Empty(t, snaps)
	f.assertExpectations(t)
}

func TestRebuildPersonal_UnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	f.subjectRepo.On("GetUser", ctx, alice).Return(nil, domain.ErrNotFound)

	_, err := f.service.RebuildPersonal(ctx, alice)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.txRepo.AssertNotCalled(t, "ListByUsers", mock.Anything, mock.Anything)
}

func TestRebuildPersonal_FailureKeepsPreviousSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	txns := []domain.Transaction{
		txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 10), "10", "1000"),
	}
	f.subjectRepo.On("GetUser", ctx, alice).Return(&domain.User{ID: alice}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{alice}).Return(txns, nil)
	f.priceRepo.On("ListByHolding", ctx, fundA).Return(nil, errors.New("connection reset"))

	_, err := f.service.RebuildPersonal(ctx, alice)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load prices")
	f.snapshotRepo.AssertNotCalled(t, "ReplaceAll", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRebuildFamily_MergesMembers(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	familyID := uuid.New()

	members := []*domain.User{{ID: alice}, {ID: bob}}
	txns := []domain.Transaction{
		txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 5), "10", "1000"),
		txn(bob, fundA, domain.TransactionKindSell, domain.NewDate(2024, 1, 10), "4", "400"),
	}
	f.subjectRepo.On("GetFamily", ctx, familyID).Return(&domain.Family{ID: familyID}, nil)
	f.subjectRepo.On("ListFamilyMembers", ctx, familyID).Return(members, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{alice, bob}).Return(txns, nil)
	f.priceRepo.On("ListByHolding", ctx, fundA).Return([]domain.PricePoint{
		price(fundA, domain.NewDate(2024, 1, 1), "100"),
	}, nil)
	f.snapshotRepo.On("ReplaceAll", ctx, familyID, domain.ScopeFamily, mock.Anything).Return(nil)

	snaps, err := f.service.RebuildFamily(ctx, familyID)

	require.NoError(t, err)
	require.NotEmpty(t, snaps)
	// Bob's sale consumed Alice's lot
	assert.Equal(t, "600", snaps[0].AggregateValue.String())
	assert.Equal(t, familyID, snaps[0].SubjectID)
	f.assertExpectations(t)
}

func TestRebuildAll_ContinuesPastFailures(t *testing.T) {
	f := newServiceFixture()
	broken := uuid.New()

	f.subjectRepo.On("ListUsers", mock.Anything).Return([]*domain.User{{ID: alice}, {ID: broken}}, nil)
	f.subjectRepo.On("ListFamilies", mock.Anything).Return([]*domain.Family{}, nil)
	f.txRepo.On("ListByUsers", mock.Anything, []uuid.UUID{alice}).Return([]domain.Transaction{
		txn(alice, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 10), "10", "1000"),
	}, nil)
	f.txRepo.On("ListByUsers", mock.Anything, []uuid.UUID{broken}).Return(nil, errors.New("timeout"))
	f.priceRepo.On("ListByHolding", mock.Anything, fundA).Return([]domain.PricePoint{
		price(fundA, domain.NewDate(2024, 1, 10), "100"),
	}, nil)
	f.snapshotRepo.On("ReplaceAll", mock.Anything, alice, domain.ScopePersonal, mock.Anything).Return(nil)

	report, err := f.service.RebuildAll(context.Background())

	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.PersonalRebuilt)
	assert.Equal(t, 3, report.Snapshots)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, broken, report.Failures[0].SubjectID)
	f.assertExpectations(t)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	f.snapshotRepo.On("List", ctx, alice, domain.ScopePersonal).Return(series("100", "110"), nil)

	history, err := f.service.History(ctx, alice, domain.ScopePersonal)

	require.NoError(t, err)
	assert.Len(t, history.Snapshots, 2)
	require.NotNil(t, history.Summary)
	assert.InDelta(t, 0.1, history.Summary.MeanChange, 1e-9)
}

func TestHistory_Empty(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	f.snapshotRepo.On("List", ctx, alice, domain.ScopeFamily).Return([]domain.Snapshot{}, nil)

	history, err := f.service.History(ctx, alice, domain.ScopeFamily)

	require.NoError(t, err)
	assert.Empty(t, history.Snapshots)
	assert.Nil(t, history.Summary)
}
