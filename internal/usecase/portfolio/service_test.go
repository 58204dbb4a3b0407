package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/simaogato/fundfolio-backend/internal/usecase/xirr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTransactionRepository is a mock implementation of TransactionRepository for testing
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) CreateBatch(ctx context.Context, txns []domain.Transaction) (int, error) {
	args := m.Called(ctx, txns)
	return args.Int(0), args.Error(1)
}

func (m *MockTransactionRepository) ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]domain.Transaction, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListSells(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

// MockPriceRepository is a mock implementation of PriceRepository for testing
type MockPriceRepository struct {
	mock.Mock
}

func (m *MockPriceRepository) ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]domain.PricePoint, error) {
	args := m.Called(ctx, holdingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PricePoint), args.Error(1)
}

func (m *MockPriceRepository) Latest(ctx context.Context, holdingID uuid.UUID) (*domain.PricePoint, error) {
	args := m.Called(ctx, holdingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricePoint), args.Error(1)
}

// MockSubjectRepository is a mock implementation of SubjectRepository for testing
type MockSubjectRepository struct {
	mock.Mock
}

func (m *MockSubjectRepository) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockSubjectRepository) ListUsers(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockSubjectRepository) GetFamily(ctx context.Context, id uuid.UUID) (*domain.Family, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Family), args.Error(1)
}

func (m *MockSubjectRepository) ListFamilies(ctx context.Context) ([]*domain.Family, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Family), args.Error(1)
}

func (m *MockSubjectRepository) ListFamilyMembers(ctx context.Context, familyID uuid.UUID) ([]*domain.User, error) {
	args := m.Called(ctx, familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

// MockHoldingRepository is a mock implementation of HoldingRepository for testing
type MockHoldingRepository struct {
	mock.Mock
}

func (m *MockHoldingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Holding, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Holding), args.Error(1)
}

func (m *MockHoldingRepository) Create(ctx context.Context, holding *domain.Holding) error {
	args := m.Called(ctx, holding)
	return args.Error(0)
}

func (m *MockHoldingRepository) List(ctx context.Context) ([]*domain.Holding, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Holding), args.Error(1)
}

var (
	userA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	userB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	fundA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	fundB = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
	fundC = uuid.MustParse("cccccccc-0000-0000-0000-000000000003")
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func txn(userID, holdingID uuid.UUID, kind domain.TransactionKind, date time.Time, qty, amount string) domain.Transaction {
	return domain.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		HoldingID:   holdingID,
		Date:        date,
		Kind:        kind,
		Quantity:    dec(qty),
		GrossAmount: dec(amount),
	}
}

type fixture struct {
	txRepo      *MockTransactionRepository
	priceRepo   *MockPriceRepository
	subjectRepo *MockSubjectRepository
	holdingRepo *MockHoldingRepository
	service     *PortfolioService
}

func newFixture() *fixture {
	f := &fixture{
		txRepo:      new(MockTransactionRepository),
		priceRepo:   new(MockPriceRepository),
		subjectRepo: new(MockSubjectRepository),
		holdingRepo: new(MockHoldingRepository),
	}
	f.service = NewPortfolioService(f.txRepo, f.priceRepo, f.subjectRepo, f.holdingRepo, nil)
	f.service.Now = func() time.Time { return domain.NewDate(2024, 12, 31) }
	return f
}

func TestPersonalSummary_AsOfDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	asOf := domain.NewDate(2024, 12, 31)

	// Setup: two consistent holdings and one with a sale that has no purchase
	txns := []domain.Transaction{
		txn(userA, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 1), "10", "1000"),
		txn(userA, fundB, domain.TransactionKindBuy, domain.NewDate(2024, 6, 1), "5", "500"),
		txn(userA, fundC, domain.TransactionKindSell, domain.NewDate(2024, 3, 1), "1", "10"),
	}
	f.subjectRepo.On("GetUser", ctx, userA).Return(&domain.User{ID: userA}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{userA}).Return(txns, nil)
	f.holdingRepo.On("GetByID", ctx, fundA).Return(&domain.Holding{ID: fundA, Name: "Alpha Fund"}, nil)
	f.holdingRepo.On("GetByID", ctx, fundB).Return(&domain.Holding{ID: fundB, Name: "Beta Fund"}, nil)
	f.holdingRepo.On("GetByID", ctx, fundC).Return(nil, domain.ErrNotFound)
	f.priceRepo.On("ListByHolding", ctx, fundA).Return([]domain.PricePoint{
		{HoldingID: fundA, Date: domain.NewDate(2024, 12, 30), Price: dec("120")},
	}, nil)
	f.priceRepo.On("ListByHolding", ctx, fundB).Return([]domain.PricePoint{
		{HoldingID: fundB, Date: domain.NewDate(2024, 6, 1), Price: dec("100")},
	}, nil)
	f.priceRepo.On("ListByHolding", ctx, fundC).Return([]domain.PricePoint{}, nil)

	// Execute
	summary, err := f.service.PersonalSummary(ctx, userA, asOf)

	// Assert
	require.NoError(t, err)
	require.Len(t, summary.Holdings, 3)

	alpha := summary.Holdings[0]
	assert.Equal(t, "Alpha Fund", alpha.Name)
	assert.Equal(t, "1200", alpha.CurrentValue.String())
	assert.Equal(t, "200", alpha.AbsoluteGain.String())
	assert.Equal(t, domain.NewDate(2024, 12, 30), alpha.PriceDate)
	assert.Equal(t, "70.59", alpha.PortfolioShare.String())
	assert.Equal(t, xirr.StatusConverged, alpha.XIRR.Status)
	// 365 days from Jan 1 to Dec 31 of a leap year
	assert.InDelta(t, 0.2, alpha.XIRR.Rate, 1e-6)

	beta := summary.Holdings[1]
	assert.Equal(t, "Beta Fund", beta.Name)
	assert.Equal(t, "29.41", beta.PortfolioShare.String())

	broken := summary.Holdings[2]
	assert.Equal(t, fundC, broken.HoldingID)
	assert.NotEmpty(t, broken.Error)

	assert.Equal(t, "1500", summary.TotalCost.String())
	assert.Equal(t, "1700", summary.TotalValue.String())
	assert.Equal(t, "200", summary.TotalGain.String())
	assert.True(t, summary.XIRR.Determinate())
	assert.InDelta(t, (365.0*1000+213.0*500)/1500, summary.AverageDaysHeld, 1e-6)
}

func TestPersonalSummary_LatestPrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	txns := []domain.Transaction{
		txn(userA, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 1), "10", "1000"),
		txn(userA, fundA, domain.TransactionKindSell, domain.NewDate(2024, 7, 1), "4", "480"),
		txn(userA, fundB, domain.TransactionKindBuy, domain.NewDate(2024, 6, 1), "5", "500"),
	}
	f.subjectRepo.On("GetUser", ctx, userA).Return(&domain.User{ID: userA}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{userA}).Return(txns, nil)
	f.holdingRepo.On("GetByID", ctx, mock.Anything).Return(&domain.Holding{Name: "Fund"}, nil)
	f.priceRepo.On("Latest", ctx, fundA).Return(&domain.PricePoint{HoldingID: fundA, Date: domain.NewDate(2024, 12, 27), Price: dec("125")}, nil)
	f.priceRepo.On("Latest", ctx, fundB).Return(nil, domain.ErrNotFound)

	summary, err := f.service.PersonalSummary(ctx, userA, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2024, 12, 31), summary.AsOf)
	require.Len(t, summary.Holdings, 2)

	priced := summary.Holdings[0]
	assert.Equal(t, fundA, priced.HoldingID)
	assert.True(t, priced.Priced)
	assert.Equal(t, "750", priced.CurrentValue.String())
	assert.Equal(t, "600", priced.CostBasis.String())
	assert.Equal(t, "80", priced.RealizedGain.String())

	unpriced := summary.Holdings[1]
	assert.False(t, unpriced.Priced)
	assert.True(t, unpriced.CurrentValue.IsZero())

	assert.Equal(t, "80", summary.RealizedGain.String())
	f.priceRepo.AssertNotCalled(t, "ListByHolding", mock.Anything, mock.Anything)
}

func TestFamilySummary_MatchesLotsAcrossMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	familyID := uuid.New()
	asOf := domain.NewDate(2024, 12, 31)

	txns := []domain.Transaction{
		txn(userA, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 1), "10", "1000"),
		txn(userB, fundA, domain.TransactionKindSell, domain.NewDate(2024, 2, 1), "4", "400"),
	}
	f.subjectRepo.On("GetFamily", ctx, familyID).Return(&domain.Family{ID: familyID}, nil)
	f.subjectRepo.On("ListFamilyMembers", ctx, familyID).Return([]*domain.User{{ID: userA}, {ID: userB}}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{userA, userB}).Return(txns, nil)
	f.holdingRepo.On("GetByID", ctx, fundA).Return(&domain.Holding{ID: fundA, Name: "Alpha Fund"}, nil)
	f.priceRepo.On("ListByHolding", ctx, fundA).Return([]domain.PricePoint{
		{HoldingID: fundA, Date: domain.NewDate(2024, 1, 1), Price: dec("100")},
	}, nil)

	summary, err := f.service.FamilySummary(ctx, familyID, asOf)

	require.NoError(t, err)
	assert.Equal(t, domain.ScopeFamily, summary.Scope)
	require.Len(t, summary.Holdings, 1)
	assert.Equal(t, "6", summary.Holdings[0].Quantity.String())
	assert.Equal(t, "100", summary.Holdings[0].PortfolioShare.String())
	f.txRepo.AssertExpectations(t)
}

func TestFamilySummary_NoMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	familyID := uuid.New()

	f.subjectRepo.On("GetFamily", ctx, familyID).Return(&domain.Family{ID: familyID}, nil)
	f.subjectRepo.On("ListFamilyMembers", ctx, familyID).Return([]*domain.User{}, nil)

	summary, err := f.service.FamilySummary(ctx, familyID, time.Time{})

	require.NoError(t, err)
	assert.Empty(t, summary.Holdings)
	assert.False(t, summary.XIRR.Determinate())
	f.txRepo.AssertNotCalled(t, "ListByUsers", mock.Anything, mock.Anything)
}

func TestPersonalSummary_UnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.subjectRepo.On("GetUser", ctx, userA).Return(nil, domain.ErrNotFound)

	_, err := f.service.PersonalSummary(ctx, userA, time.Time{})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPersonalSummary_ExitedHoldingKeepsRealizedFlows(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	asOf := domain.NewDate(2024, 12, 31)

	// Setup: fund A fully sold at a profit, fund B still held at cost
	txns := []domain.Transaction{
		txn(userA, fundA, domain.TransactionKindBuy, domain.NewDate(2024, 1, 1), "10", "1000"),
		txn(userA, fundA, domain.TransactionKindSell, domain.NewDate(2024, 7, 1), "10", "2000"),
		txn(userA, fundB, domain.TransactionKindBuy, domain.NewDate(2024, 1, 1), "10", "1000"),
	}
	f.subjectRepo.On("GetUser", ctx, userA).Return(&domain.User{ID: userA}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{userA}).Return(txns, nil)
	f.holdingRepo.On("GetByID", ctx, mock.Anything).Return(&domain.Holding{Name: "Fund"}, nil)
	f.priceRepo.On("ListByHolding", ctx, fundA).Return([]domain.PricePoint{}, nil)
	f.priceRepo.On("ListByHolding", ctx, fundB).Return([]domain.PricePoint{
		{HoldingID: fundB, Date: domain.NewDate(2024, 12, 31), Price: dec("100")},
	}, nil)

	// Execute
	summary, err := f.service.PersonalSummary(ctx, userA, asOf)

	// Assert: only the open holding is listed, but the exit still drives the rate
	require.NoError(t, err)
	require.Len(t, summary.Holdings, 1)
	assert.Equal(t, fundB, summary.Holdings[0].HoldingID)
	assert.Equal(t, "1000", summary.RealizedGain.String())

	want := xirr.Solve([]domain.CashFlow{
		{Date: domain.NewDate(2024, 1, 1), Amount: dec("-1000")},
		{Date: domain.NewDate(2024, 7, 1), Amount: dec("2000")},
		{Date: domain.NewDate(2024, 1, 1), Amount: dec("-1000")},
		{Date: asOf, Amount: dec("1000"), Terminal: true},
	})
	require.True(t, summary.XIRR.Determinate())
	assert.Greater(t, summary.XIRR.Rate, 0.5)
	assert.InDelta(t, want.Rate, summary.XIRR.Rate, 1e-9)
}

func TestPersonalSummary_RepeatedRunsAgree(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	asOf := domain.NewDate(2024, 12, 31)

	// Setup: many holdings bought on the same day so flows tie on date
	var txns []domain.Transaction
	for i := 1; i <= 12; i++ {
		holdingID := uuid.New()
		qty := decimal.NewFromInt(int64(i))
		amount := decimal.NewFromInt(int64(i*97 + 13))
		txns = append(txns, txn(userA, holdingID, domain.TransactionKindBuy, domain.NewDate(2024, 3, 7), qty.String(), amount.String()))
	}
	f.subjectRepo.On("GetUser", ctx, userA).Return(&domain.User{ID: userA}, nil)
	f.txRepo.On("ListByUsers", ctx, []uuid.UUID{userA}).Return(txns, nil)
	f.holdingRepo.On("GetByID", ctx, mock.Anything).Return(&domain.Holding{Name: "Fund"}, nil)
	f.priceRepo.On("ListByHolding", ctx, mock.Anything).Return([]domain.PricePoint{
		{Date: domain.NewDate(2024, 12, 30), Price: dec("113.37")},
	}, nil)

	// Execute
	first, err := f.service.PersonalSummary(ctx, userA, asOf)
	require.NoError(t, err)

	// Assert
	for run := 0; run < 50; run++ {
		again, err := f.service.PersonalSummary(ctx, userA, asOf)
		require.NoError(t, err)
		assert.Equal(t, first.XIRR, again.XIRR)
		assert.Equal(t, first.Holdings, again.Holdings)
	}
}
