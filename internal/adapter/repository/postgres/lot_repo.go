package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// lotRepository implements domain.LotRepository
type lotRepository struct {
	db *DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *DB) domain.LotRepository {
	return &lotRepository{db: db}
}

// WithinHoldingLock runs fn in a database transaction holding an advisory lock on the
// (user, holding) pair. Concurrent disposals of the same holding queue on the lock;
// the lock is released on commit or rollback.
func (r *lotRepository) WithinHoldingLock(ctx context.Context, userID, holdingID uuid.UUID, fn func(tx domain.LotTx) error) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	lockKey := userID.String() + ":" + holdingID.String()
	if _, err := dbTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return fmt.Errorf("failed to lock holding: %w", err)
	}

	if err := fn(&lotTx{tx: dbTx, userID: userID, holdingID: holdingID}); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// lotTx implements domain.LotTx on an open database transaction
type lotTx struct {
	tx        *sql.Tx
	userID    uuid.UUID
	holdingID uuid.UUID
}

// OpenLots returns the lots with remaining units, oldest first, locked for update
func (t *lotTx) OpenLots(ctx context.Context) ([]domain.Lot, error) {
	query := `
		SELECT id, user_id, holding_id, open_date, quantity, remaining_quantity, remaining_cost_basis
		FROM lots
		WHERE user_id = $1 AND holding_id = $2 AND remaining_quantity > $3
		ORDER BY open_date ASC, seq ASC
		FOR UPDATE
	`

	rows, err := t.tx.QueryContext(ctx, query, t.userID, t.holdingID, domain.QuantityDust.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query open lots: %w", err)
	}
	defer rows.Close()

	lots := []domain.Lot{}
	for rows.Next() {
		var lot domain.Lot
		var quantityStr, remainingStr, costStr string

		if err := rows.Scan(
			&lot.ID,
			&lot.UserID,
			&lot.HoldingID,
			&lot.OpenDate,
			&quantityStr,
			&remainingStr,
			&costStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}

		if lot.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		if lot.RemainingQuantity, err = decimal.NewFromString(remainingStr); err != nil {
			return nil, fmt.Errorf("failed to parse remaining_quantity: %w", err)
		}
		if lot.RemainingCostBasis, err = decimal.NewFromString(costStr); err != nil {
			return nil, fmt.Errorf("failed to parse remaining_cost_basis: %w", err)
		}

		lots = append(lots, lot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	return lots, nil
}

// HasLot reports whether the lot opened by a source transaction exists
func (t *lotTx) HasLot(ctx context.Context, lotID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM lots WHERE id = $1)`, lotID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check lot: %w", err)
	}
	return exists, nil
}

// AddLot inserts a newly opened lot
func (t *lotTx) AddLot(ctx context.Context, lot *domain.Lot) error {
	query := `
		INSERT INTO lots (id, user_id, holding_id, open_date, quantity, remaining_quantity, remaining_cost_basis)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := t.tx.ExecContext(ctx, query,
		lot.ID,
		lot.UserID,
		lot.HoldingID,
		domain.Day(lot.OpenDate),
		lot.Quantity.String(),
		lot.RemainingQuantity.String(),
		lot.RemainingCostBasis.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lot: %w", err)
	}

	return nil
}

// UpdateLots persists the remaining quantity and cost basis of the given lots
func (t *lotTx) UpdateLots(ctx context.Context, lots []domain.Lot) error {
	query := `
		UPDATE lots
		SET remaining_quantity = $2, remaining_cost_basis = $3
		WHERE id = $1
	`

	for _, lot := range lots {
		res, err := t.tx.ExecContext(ctx, query,
			lot.ID,
			lot.RemainingQuantity.String(),
			lot.RemainingCostBasis.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update lot %s: %w", lot.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("lot %s: %w", lot.ID, domain.ErrNotFound)
		}
	}

	return nil
}

// HasDisposal reports whether a disposal with the same key was recorded
func (t *lotTx) HasDisposal(ctx context.Context, key domain.DisposalKey) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM disposals
			WHERE user_id = $1 AND holding_id = $2 AND disposal_date = $3 AND quantity = $4::numeric
		)
	`

	var exists bool
	err := t.tx.QueryRowContext(ctx, query, key.UserID, key.HoldingID, key.Date, key.Quantity).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check disposal: %w", err)
	}
	return exists, nil
}

// AddDisposal inserts a disposal and the lot consumptions behind it
func (t *lotTx) AddDisposal(ctx context.Context, d *domain.Disposal) error {
	query := `
		INSERT INTO disposals (id, user_id, holding_id, disposal_date, quantity, proceeds, cost_basis_removed, realized_gain)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := t.tx.ExecContext(ctx, query,
		d.ID,
		d.UserID,
		d.HoldingID,
		domain.Day(d.Date),
		d.Quantity.String(),
		d.Proceeds.String(),
		d.CostBasisRemoved.String(),
		d.RealizedGain.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert disposal: %w", err)
	}

	consumptionQuery := `
		INSERT INTO lot_consumptions (disposal_id, lot_id, quantity, cost_basis)
		VALUES ($1, $2, $3, $4)
	`
	for _, c := range d.Consumptions {
		_, err := t.tx.ExecContext(ctx, consumptionQuery,
			d.ID,
			c.LotID,
			c.Quantity.String(),
			c.CostBasis.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert lot consumption: %w", err)
		}
	}

	return nil
}
