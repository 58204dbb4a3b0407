package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// holdingRepository implements domain.HoldingRepository
type holdingRepository struct {
	db *DB
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *DB) domain.HoldingRepository {
	return &holdingRepository{db: db}
}

// GetByID retrieves a holding by its ID
func (r *holdingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Holding, error) {
	query := `
		SELECT id, name, isin, scheme_code, category
		FROM holdings
		WHERE id = $1
	`

	var h domain.Holding
	err := r.db.QueryRowContext(ctx, query, id).Scan(&h.ID, &h.Name, &h.ISIN, &h.SchemeCode, &h.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("holding %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get holding by ID: %w", err)
	}

	return &h, nil
}

// Create creates a new holding
func (r *holdingRepository) Create(ctx context.Context, holding *domain.Holding) error {
	query := `
		INSERT INTO holdings (id, name, isin, scheme_code, category)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		holding.ID,
		holding.Name,
		holding.ISIN,
		holding.SchemeCode,
		holding.Category,
	)
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}

	return nil
}

// List retrieves every holding ordered by name
func (r *holdingRepository) List(ctx context.Context) ([]*domain.Holding, error) {
	query := `
		SELECT id, name, isin, scheme_code, category
		FROM holdings
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []*domain.Holding{}
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.ID, &h.Name, &h.ISIN, &h.SchemeCode, &h.Category); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}
