package postgres

import (
	"context"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// PriceImporter bulk-loads price history with COPY.
// It uses its own pgx pool since database/sql has no COPY support.
type PriceImporter struct {
	pool *pgxpool.Pool
}

// NewPriceImporter connects to the database given as a URL or key=value string
func NewPriceImporter(ctx context.Context, connString string) (*PriceImporter, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PriceImporter{pool: pool}, nil
}

// Import upserts price points keyed by (holding, date) and returns how many rows were written.
// On duplicate keys within the batch the last point wins.
func (p *PriceImporter) Import(ctx context.Context, points []domain.PricePoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE price_staging (
			ord        BIGINT NOT NULL,
			holding_id UUID NOT NULL,
			price_date DATE NOT NULL,
			price      NUMERIC(20, 6) NOT NULL
		) ON COMMIT DROP
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"price_staging"},
		[]string{"ord", "holding_id", "price_date", "price"},
		pgx.CopyFromSlice(len(points), func(i int) ([]any, error) {
			pt := points[i]
			if !pt.Price.IsPositive() {
				return nil, fmt.Errorf("price for holding %s on %s must be positive", pt.HoldingID, pt.Date.Format("2006-01-02"))
			}
			return []any{int64(i), pt.HoldingID, domain.Day(pt.Date), pt.Price}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy prices: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO prices (holding_id, price_date, price)
		SELECT DISTINCT ON (holding_id, price_date) holding_id, price_date, price
		FROM price_staging
		ORDER BY holding_id, price_date, ord DESC
		ON CONFLICT (holding_id, price_date) DO UPDATE SET price = EXCLUDED.price
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert prices: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Close releases the pool
func (p *PriceImporter) Close() {
	p.pool.Close()
}
