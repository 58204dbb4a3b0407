package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config controls the cutoff calendar and rebuild fan-out
type Config struct {
	// StartYear is the first calendar year of cutoffs; 0 uses the year of the subject's earliest transaction
	StartYear          int
	// FallbackDays is how far after a cutoff a price may be borrowed; 0 disables the fallback
	FallbackDays       int
	HoldingParallelism int
	SubjectParallelism int
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		FallbackDays:       DefaultFallbackDays,
		HoldingParallelism: 4,
		SubjectParallelism: 4,
	}
}

// RebuildFailure records a subject whose rebuild failed; its previous snapshots are intact
type RebuildFailure struct {
	SubjectID uuid.UUID
	Scope     domain.Scope
	Err       error
}

// RebuildReport summarizes a RebuildAll run
type RebuildReport struct {
	PersonalRebuilt int
	FamilyRebuilt   int
	Snapshots       int
	Failures        []RebuildFailure
}

// History is a stored snapshot series with its summary statistics
type History struct {
	Snapshots []domain.Snapshot
	Summary   *SeriesSummary // nil when there are no snapshots
}

// Service rebuilds and serves portfolio snapshots
type Service struct {
	TransactionRepo domain.TransactionRepository
	PriceRepo       domain.PriceRepository
	SnapshotRepo    domain.SnapshotRepository
	SubjectRepo     domain.SubjectRepository
	Reconstructor   *Reconstructor
	Config          Config
	Logger          *zap.SugaredLogger
	Now             func() time.Time
}

// NewService creates a new snapshot Service instance
func NewService(
	transactionRepo domain.TransactionRepository,
	priceRepo domain.PriceRepository,
	snapshotRepo domain.SnapshotRepository,
	subjectRepo domain.SubjectRepository,
	cfg Config,
	logger *zap.SugaredLogger,
) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		TransactionRepo: transactionRepo,
		PriceRepo:       priceRepo,
		SnapshotRepo:    snapshotRepo,
		SubjectRepo:     subjectRepo,
		Reconstructor:   NewReconstructor(logger, cfg.HoldingParallelism),
		Config:          cfg,
		Logger:          logger,
		Now:             time.Now,
	}
}

// Rebuild regenerates the snapshots of a subject in the given scope
func (s *Service) Rebuild(ctx context.Context, subjectID uuid.UUID, scope domain.Scope) ([]domain.Snapshot, error) {
	switch scope {
	case domain.ScopePersonal:
		return s.RebuildPersonal(ctx, subjectID)
	case domain.ScopeFamily:
		return s.RebuildFamily(ctx, subjectID)
	default:
		return nil, fmt.Errorf("unsupported snapshot scope %q", scope)
	}
}

// RebuildPersonal regenerates every snapshot of a single user
func (s *Service) RebuildPersonal(ctx context.Context, userID uuid.UUID) ([]domain.Snapshot, error) {
	if _, err := s.SubjectRepo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.rebuild(ctx, userID, domain.ScopePersonal, []uuid.UUID{userID})
}

// RebuildFamily regenerates every snapshot of a family.
// Members' transactions are merged per holding before lot matching, so a family
// snapshot is not the sum of its members' personal snapshots.
func (s *Service) RebuildFamily(ctx context.Context, familyID uuid.UUID) ([]domain.Snapshot, error) {
	if _, err := s.SubjectRepo.GetFamily(ctx, familyID); err != nil {
		return nil, err
	}

	members, err := s.SubjectRepo.ListFamilyMembers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}
	if len(members) == 0 {
		s.Logger.Warnw("family has no members", "family_id", familyID)
	}

	return s.rebuild(ctx, familyID, domain.ScopeFamily, domain.UserIDs(members))
}

// rebuild computes the full snapshot set and swaps it in atomically.
// Any error before ReplaceAll leaves the stored snapshots untouched.
func (s *Service) rebuild(ctx context.Context, subjectID uuid.UUID, scope domain.Scope, userIDs []uuid.UUID) ([]domain.Snapshot, error) {
	started := time.Now()

	var txns []domain.Transaction
	if len(userIDs) > 0 {
		var err error
		txns, err = s.TransactionRepo.ListByUsers(ctx, userIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to list transactions: %w", err)
		}
	}

	snapshots := []domain.Snapshot{}
	if len(txns) > 0 {
		domain.SortTransactions(txns)
		byHolding := domain.GroupByHolding(txns)

		startYear := s.Config.StartYear
		if startYear == 0 {
			startYear = txns[0].Date.Year()
		}
		cutoffs := GenerateCutoffs(startYear, s.Now())

		prices := NewPriceBook(s.Config.FallbackDays)
		for holdingID := range byHolding {
			points, err := s.PriceRepo.ListByHolding(ctx, holdingID)
			if err != nil {
				return nil, fmt.Errorf("failed to load prices for holding %s: %w", holdingID, err)
			}
			prices.Add(holdingID, points)
		}

		var err error
		snapshots, err = s.Reconstructor.Reconstruct(ctx, subjectID, scope, byHolding, prices, cutoffs)
		if err != nil {
			return nil, err
		}
	}

	if err := s.SnapshotRepo.ReplaceAll(ctx, subjectID, scope, snapshots); err != nil {
		return nil, fmt.Errorf("failed to replace snapshots: %w", err)
	}

	s.Logger.Infow("rebuilt snapshots",
		"subject_id", subjectID,
		"scope", scope,
		"transactions", len(txns),
		"snapshots", len(snapshots),
		"elapsed", time.Since(started),
	)

	return snapshots, nil
}

// RebuildAll regenerates personal snapshots of every user and family snapshots of every family.
// Subjects are rebuilt concurrently; a failing subject does not stop the others.
// The returned error joins every per-subject failure.
func (s *Service) RebuildAll(ctx context.Context) (*RebuildReport, error) {
	users, err := s.SubjectRepo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	families, err := s.SubjectRepo.ListFamilies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}

	s.Logger.Infow("rebuilding all snapshots", "users", len(users), "families", len(families))

	report := &RebuildReport{}
	var mu sync.Mutex
	record := func(subjectID uuid.UUID, scope domain.Scope, snapshots []domain.Snapshot, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			s.Logger.Errorw("snapshot rebuild failed", "subject_id", subjectID, "scope", scope, "error", err)
			report.Failures = append(report.Failures, RebuildFailure{SubjectID: subjectID, Scope: scope, Err: err})
			return
		}
		if scope == domain.ScopePersonal {
			report.PersonalRebuilt++
		} else {
			report.FamilyRebuilt++
		}
		report.Snapshots += len(snapshots)
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.Config.SubjectParallelism > 0 {
		g.SetLimit(s.Config.SubjectParallelism)
	}
	for _, u := range users {
		g.Go(func() error {
			snaps, err := s.rebuild(gctx, u.ID, domain.ScopePersonal, []uuid.UUID{u.ID})
			record(u.ID, domain.ScopePersonal, snaps, err)
			return nil
		})
	}
	for _, f := range families {
		g.Go(func() error {
			snaps, err := s.RebuildFamily(gctx, f.ID)
			record(f.ID, domain.ScopeFamily, snaps, err)
			return nil
		})
	}
	_ = g.Wait()

	errs := make([]error, 0, len(report.Failures))
	for _, f := range report.Failures {
		errs = append(errs, fmt.Errorf("%s %s: %w", f.Scope, f.SubjectID, f.Err))
	}
	return report, errors.Join(errs...)
}

// History returns the stored snapshots of a subject with summary statistics
func (s *Service) History(ctx context.Context, subjectID uuid.UUID, scope domain.Scope) (*History, error) {
	snapshots, err := s.SnapshotRepo.List(ctx, subjectID, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	history := &History{Snapshots: snapshots}
	if len(snapshots) == 0 {
		return history, nil
	}

	summary, err := Summarize(snapshots)
	if err != nil {
		return nil, err
	}
	history.Summary = summary
	return history, nil
}
