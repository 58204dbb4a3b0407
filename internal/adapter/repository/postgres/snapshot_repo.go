package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// snapshotRepository implements domain.SnapshotRepository
type snapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *DB) domain.SnapshotRepository {
	return &snapshotRepository{db: db}
}

// ReplaceAll deletes every snapshot of the subject/scope and inserts the new set
// in one database transaction
func (r *snapshotRepository) ReplaceAll(ctx context.Context, subjectID uuid.UUID, scope domain.Scope, snapshots []domain.Snapshot) error {
	for i := range snapshots {
		if snapshots[i].SubjectID != subjectID || snapshots[i].Scope != scope {
			return fmt.Errorf("snapshot %s does not belong to %s %s", snapshots[i].ID, scope, subjectID)
		}
		if err := snapshots[i].Validate(); err != nil {
			return fmt.Errorf("invalid snapshot for %s: %w", snapshots[i].AsOfDate.Format("2006-01-02"), err)
		}
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	deleteQuery := `DELETE FROM snapshots WHERE subject_id = $1 AND scope = $2`
	if _, err := dbTx.ExecContext(ctx, deleteQuery, subjectID, string(scope)); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}

	insertQuery := `
		INSERT INTO snapshots (id, subject_id, scope, as_of_date, aggregate_value, holdings_valued, holdings_skipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	stmt, err := dbTx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snapshots {
		_, err := stmt.ExecContext(ctx,
			s.ID,
			s.SubjectID,
			string(s.Scope),
			domain.Day(s.AsOfDate),
			s.AggregateValue.StringFixed(2),
			s.HoldingsValued,
			s.HoldingsSkipped,
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// List retrieves the snapshots of a subject/scope ordered by date
func (r *snapshotRepository) List(ctx context.Context, subjectID uuid.UUID, scope domain.Scope) ([]domain.Snapshot, error) {
	query := `
		SELECT id, subject_id, scope, as_of_date, aggregate_value, holdings_valued, holdings_skipped, created_at
		FROM snapshots
		WHERE subject_id = $1 AND scope = $2
		ORDER BY as_of_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, subjectID, string(scope))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []domain.Snapshot{}
	for rows.Next() {
		var s domain.Snapshot
		var scopeStr, valueStr string

		if err := rows.Scan(
			&s.ID,
			&s.SubjectID,
			&scopeStr,
			&s.AsOfDate,
			&valueStr,
			&s.HoldingsValued,
			&s.HoldingsSkipped,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Scope = domain.Scope(scopeStr)

		if s.AggregateValue, err = decimal.NewFromString(valueStr); err != nil {
			return nil, fmt.Errorf("failed to parse aggregate_value: %w", err)
		}

		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}
