package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/stretchr/testify/mock"
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

// MockSnapshotRepository is a mock implementation of SnapshotRepository for testing
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) ReplaceAll(ctx context.Context, subjectID uuid.UUID, scope domain.Scope, snapshots []domain.Snapshot) error {
	args := m.Called(ctx, subjectID, scope, snapshots)
	return args.Error(0)
}

func (m *MockSnapshotRepository) List(ctx context.Context, subjectID uuid.UUID, scope domain.Scope) ([]domain.Snapshot, error) {
	args := m.Called(ctx, subjectID, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Snapshot), args.Error(1)
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

var (
	fundA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	fundB = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
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

func price(holdingID uuid.UUID, date time.Time, p string) domain.PricePoint {
	return domain.PricePoint{HoldingID: holdingID, Date: date, Price: dec(p)}
}
