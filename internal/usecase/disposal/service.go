package disposal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/simaogato/fundfolio-backend/internal/usecase/ledger"
	"go.uber.org/zap"
)

// DisposalService applies transactions to the persisted lot book
type DisposalService struct {
	LotRepo domain.LotRepository
	Logger  *zap.SugaredLogger

	mu    sync.Mutex
	locks map[holdingKey]*holdingLock
}

type holdingKey struct {
	userID    uuid.UUID
	holdingID uuid.UUID
}

// holdingLock is dropped from the map once no caller holds or waits on it
type holdingLock struct {
	sync.Mutex
	refs int
}

// NewDisposalService creates a new DisposalService instance
func NewDisposalService(lotRepo domain.LotRepository, logger *zap.SugaredLogger) *DisposalService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DisposalService{
		LotRepo: lotRepo,
		Logger:  logger,
		locks:   make(map[holdingKey]*holdingLock),
	}
}

// withHolding serializes work on one (user, holding) lot book inside this process,
// then inside the repository lock
func (s *DisposalService) withHolding(ctx context.Context, userID, holdingID uuid.UUID, fn func(tx domain.LotTx) error) error {
	key := holdingKey{userID, holdingID}
	lock := s.acquire(key)
	defer s.release(key, lock)

	return s.LotRepo.WithinHoldingLock(ctx, userID, holdingID, fn)
}

func (s *DisposalService) acquire(key holdingKey) *holdingLock {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[holdingKey]*holdingLock)
	}
	lock, ok := s.locks[key]
	if !ok {
		lock = &holdingLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.Lock()
	return lock
}

func (s *DisposalService) release(key holdingKey, lock *holdingLock) {
	lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, key)
	}
}

// RecordAcquisition opens a lot for a BUY transaction.
// Returns false when the lot already exists.
func (s *DisposalService) RecordAcquisition(ctx context.Context, tx domain.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}
	if !tx.IsBuy() {
		return false, fmt.Errorf("cannot open a lot from %s transaction %s", tx.Kind, tx.ID)
	}

	created := false
	err := s.withHolding(ctx, tx.UserID, tx.HoldingID, func(lt domain.LotTx) error {
		exists, err := lt.HasLot(ctx, tx.ID)
		if err != nil {
			return fmt.Errorf("failed to check lot: %w", err)
		}
		if exists {
			return nil
		}

		lot := domain.NewLotFromTransaction(tx)
		if err := lt.AddLot(ctx, &lot); err != nil {
			return fmt.Errorf("failed to add lot: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// ProcessSell consumes the open lots of the holding first-in first-out and records the disposal.
//
// A SELL already applied returns domain.ErrDisposalAlreadyApplied; a SELL larger than the
// open lots returns *domain.InsufficientLotsError. Neither changes the lot book.
func (s *DisposalService) ProcessSell(ctx context.Context, tx domain.Transaction) (*domain.Disposal, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if tx.Kind != domain.TransactionKindSell {
		return nil, fmt.Errorf("cannot dispose units with %s transaction %s", tx.Kind, tx.ID)
	}

	var disposal *domain.Disposal
	err := s.withHolding(ctx, tx.UserID, tx.HoldingID, func(lt domain.LotTx) error {
		applied, err := lt.HasDisposal(ctx, domain.DisposalKeyFor(tx))
		if err != nil {
			return fmt.Errorf("failed to check disposal: %w", err)
		}
		if applied {
			return domain.ErrDisposalAlreadyApplied
		}

		lots, err := lt.OpenLots(ctx)
		if err != nil {
			return fmt.Errorf("failed to load open lots: %w", err)
		}

		consumption, err := ledger.ConsumeFIFO(tx.HoldingID, lots, tx.Quantity)
		if err != nil {
			return err
		}

		if err := lt.UpdateLots(ctx, consumption.Touched); err != nil {
			return fmt.Errorf("failed to update lots: %w", err)
		}

		d := &domain.Disposal{
			ID:               tx.ID,
			UserID:           tx.UserID,
			HoldingID:        tx.HoldingID,
			Date:             domain.Day(tx.Date),
			Quantity:         tx.Quantity,
			Proceeds:         tx.GrossAmount,
			CostBasisRemoved: consumption.CostBasisRemoved,
			RealizedGain:     tx.GrossAmount.Sub(consumption.CostBasisRemoved),
			Consumptions:     consumption.Parts,
		}
		if err := lt.AddDisposal(ctx, d); err != nil {
			return fmt.Errorf("failed to record disposal: %w", err)
		}
		disposal = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("processed sell",
		"user_id", tx.UserID,
		"holding_id", tx.HoldingID,
		"quantity", tx.Quantity.String(),
		"cost_basis_removed", disposal.CostBasisRemoved.StringFixed(2),
		"lots_touched", len(disposal.Consumptions),
	)
	return disposal, nil
}

// DeferredSell is a SELL that could not be matched against open lots
type DeferredSell struct {
	Transaction domain.Transaction
	Err         error
}

// ReplayReport summarizes a Replay run
type ReplayReport struct {
	Acquired        int
	AlreadyAcquired int
	Applied         int
	AlreadyApplied  int
	Deferred        []DeferredSell
}

// Replay applies transactions to the lot book in date then arrival order.
// Replaying the same transactions again changes nothing.
// SELLs without enough open units are deferred and reported; any other error stops the replay.
func (s *DisposalService) Replay(ctx context.Context, txns []domain.Transaction) (*ReplayReport, error) {
	ordered := make([]domain.Transaction, len(txns))
	copy(ordered, txns)
	domain.SortTransactions(ordered)

	report := &ReplayReport{}
	for _, tx := range ordered {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if tx.IsBuy() {
			created, err := s.RecordAcquisition(ctx, tx)
			if err != nil {
				return report, fmt.Errorf("failed to record acquisition %s: %w", tx.ID, err)
			}
			if created {
				report.Acquired++
			} else {
				report.AlreadyAcquired++
			}
			continue
		}

		_, err := s.ProcessSell(ctx, tx)
		switch {
		case err == nil:
			report.Applied++
		case errors.Is(err, domain.ErrDisposalAlreadyApplied):
			report.AlreadyApplied++
		case errors.Is(err, domain.ErrInsufficientLots):
			s.Logger.Warnw("deferring sell without enough open units",
				"transaction_id", tx.ID,
				"user_id", tx.UserID,
				"holding_id", tx.HoldingID,
				"error", err,
			)
			report.Deferred = append(report.Deferred, DeferredSell{Transaction: tx, Err: err})
		default:
			return report, fmt.Errorf("failed to process sell %s: %w", tx.ID, err)
		}
	}

	s.Logger.Infow("replayed transactions",
		"acquired", report.Acquired,
		"applied", report.Applied,
		"already_applied", report.AlreadyApplied,
		"deferred", len(report.Deferred),
	)
	return report, nil
}
