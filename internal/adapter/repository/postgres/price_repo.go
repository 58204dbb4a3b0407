package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// priceRepository implements domain.PriceRepository
type priceRepository struct {
	db *DB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *DB) domain.PriceRepository {
	return &priceRepository{db: db}
}

// ListByHolding retrieves the price history of a holding, oldest first
func (r *priceRepository) ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]domain.PricePoint, error) {
	query := `
		SELECT holding_id, price_date, price
		FROM prices
		WHERE holding_id = $1
		ORDER BY price_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, holdingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	points := []domain.PricePoint{}
	for rows.Next() {
		var p domain.PricePoint
		var priceStr string
		if err := rows.Scan(&p.HoldingID, &p.Date, &priceStr); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		if p.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return points, nil
}

// Latest retrieves the most recent price of a holding
func (r *priceRepository) Latest(ctx context.Context, holdingID uuid.UUID) (*domain.PricePoint, error) {
	query := `
		SELECT holding_id, price_date, price
		FROM prices
		WHERE holding_id = $1
		ORDER BY price_date DESC
		LIMIT 1
	`

	var p domain.PricePoint
	var priceStr string

	err := r.db.QueryRowContext(ctx, query, holdingID).Scan(&p.HoldingID, &p.Date, &priceStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no price found for holding %s: %w", holdingID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	p.Price = price

	return &p, nil
}
