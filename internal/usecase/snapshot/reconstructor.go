package snapshot

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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// snapshotNamespace seeds deterministic snapshot IDs
var snapshotNamespace = uuid.MustParse("6f1c2a0e-3b7d-4c59-9a8e-2d4f5b6c7e80")

// SnapshotID derives a stable ID from subject, scope and date, so replaying
// unchanged inputs produces identical snapshots
func SnapshotID(subjectID uuid.UUID, scope domain.Scope, date time.Time) uuid.UUID {
	name := fmt.Sprintf("%s/%s/%s", subjectID, scope, domain.Day(date).Format(time.DateOnly))
	return uuid.NewSHA1(snapshotNamespace, []byte(name))
}

// holdingValue is one holding's contribution at one cutoff
type holdingValue struct {
	value   decimal.Decimal
	valued  bool
	skipped bool
}

// Reconstructor replays the lot ledger at every cutoff to value a subject's portfolio over time
type Reconstructor struct {
	Logger *zap.SugaredLogger
	// Parallelism bounds how many holdings are replayed concurrently; <= 0 means unbounded
	Parallelism int
}

// NewReconstructor creates a Reconstructor
func NewReconstructor(logger *zap.SugaredLogger, parallelism int) *Reconstructor {
	return &Reconstructor{
		Logger:      logger,
		Parallelism: parallelism,
	}
}

// Reconstruct values the subject's holdings at each cutoff and returns one snapshot
// per cutoff with a strictly positive aggregate value.
//
// Every cutoff is recomputed from scratch from the full transaction history; holdings
// run in parallel, cutoffs of one holding run in ascending order. For family scope the
// caller passes the members' transactions merged per holding, so lots are matched jointly.
func (r *Reconstructor) Reconstruct(
	ctx context.Context,
	subjectID uuid.UUID,
	scope domain.Scope,
	txnsByHolding map[uuid.UUID][]domain.Transaction,
	prices PriceSource,
	cutoffs []time.Time,
) ([]domain.Snapshot, error) {
	if len(cutoffs) == 0 || len(txnsByHolding) == 0 {
		return []domain.Snapshot{}, nil
	}

	ordered := make([]time.Time, len(cutoffs))
	for i, c := range cutoffs {
		ordered[i] = domain.Day(c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	holdingIDs := make([]uuid.UUID, 0, len(txnsByHolding))
	for id := range txnsByHolding {
		holdingIDs = append(holdingIDs, id)
	}
	// Fixed holding order keeps the sums reproducible
	sort.Slice(holdingIDs, func(i, j int) bool {
		return bytes.Compare(holdingIDs[i][:], holdingIDs[j][:]) < 0
	})

	values := make([][]holdingValue, len(holdingIDs))

	g, gctx := errgroup.WithContext(ctx)
	if r.Parallelism > 0 {
		g.SetLimit(r.Parallelism)
	}
	for i, holdingID := range holdingIDs {
		g.Go(func() error {
			series, err := r.replayHolding(gctx, holdingID, txnsByHolding[holdingID], prices, ordered)
			if err != nil {
				return err
			}
			values[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshots := make([]domain.Snapshot, 0, len(ordered))
	for c, cutoff := range ordered {
		total := decimal.Zero
		valued, skipped := 0, 0
		for h := range holdingIDs {
			hv := values[h][c]
			if hv.valued {
				total = total.Add(hv.value)
				valued++
			}
			if hv.skipped {
				skipped++
			}
		}

		total = total.Round(2)
		// Zero or negative means no position yet
		if !total.IsPositive() {
			continue
		}

		snapshots = append(snapshots, domain.Snapshot{
			ID:              SnapshotID(subjectID, scope, cutoff),
			SubjectID:       subjectID,
			Scope:           scope,
			AsOfDate:        cutoff,
			AggregateValue:  total,
			HoldingsValued:  valued,
			HoldingsSkipped: skipped,
		})
	}

	return snapshots, nil
}

// replayHolding computes one holding's value at every cutoff, ascending
func (r *Reconstructor) replayHolding(
	ctx context.Context,
	holdingID uuid.UUID,
	txns []domain.Transaction,
	prices PriceSource,
	cutoffs []time.Time,
) ([]holdingValue, error) {
	out := make([]holdingValue, len(cutoffs))
	if len(txns) == 0 {
		return out, nil
	}

	ordered := make([]domain.Transaction, len(txns))
	copy(ordered, txns)
	domain.SortTransactions(ordered)
	firstDate := domain.Day(ordered[0].Date)
	priceAt := PriceFunc(prices, holdingID)

	for i, cutoff := range cutoffs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// No transaction on or before the cutoff: holding not yet owned
		if cutoff.Before(firstDate) {
			continue
		}

		res, err := ledger.ComputeLots(ordered, cutoff, priceAt)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientLots) {
				r.logger().Warnw("skipping holding with inconsistent lots",
					"holding_id", holdingID,
					"cutoff", cutoff.Format(time.DateOnly),
					"error", err,
				)
				out[i] = holdingValue{skipped: true}
				continue
			}
			return nil, fmt.Errorf("failed to compute lots for holding %s at %s: %w",
				holdingID, cutoff.Format(time.DateOnly), err)
		}

		if !res.Priced {
			if res.IsOpen() {
				r.logger().Debugw("no price for held holding",
					"holding_id", holdingID,
					"cutoff", cutoff.Format(time.DateOnly),
				)
				out[i] = holdingValue{skipped: true}
			}
			continue
		}

		out[i] = holdingValue{value: res.CurrentValue, valued: res.IsOpen()}
	}

	return out, nil
}

func (r *Reconstructor) logger() *zap.SugaredLogger {
	if r.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return r.Logger
}
