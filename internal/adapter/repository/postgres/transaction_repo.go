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

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// Create inserts a transaction; the database assigns its arrival sequence
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (id, user_id, holding_id, txn_date, kind, quantity, gross_amount, price_per_unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`

	err := r.db.QueryRowContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.HoldingID,
		domain.Day(tx.Date),
		string(tx.Kind),
		tx.Quantity.String(),
		tx.GrossAmount.String(),
		tx.PricePerUnit.String(),
	).Scan(&tx.Sequence)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// CreateBatch inserts the transactions in one database transaction.
// Rows whose ID is already stored keep their original sequence.
func (r *transactionRepository) CreateBatch(ctx context.Context, txns []domain.Transaction) (int, error) {
	for i := range txns {
		if err := txns[i].Validate(); err != nil {
			return 0, fmt.Errorf("invalid transaction %s: %w", txns[i].ID, err)
		}
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	insertQuery := `
		INSERT INTO transactions (id, user_id, holding_id, txn_date, kind, quantity, gross_amount, price_per_unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
		RETURNING seq
	`
	insert, err := dbTx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare transaction insert: %w", err)
	}
	defer insert.Close()

	created := 0
	for i := range txns {
		tx := &txns[i]
		err := insert.QueryRowContext(ctx,
			tx.ID,
			tx.UserID,
			tx.HoldingID,
			domain.Day(tx.Date),
			string(tx.Kind),
			tx.Quantity.String(),
			tx.GrossAmount.String(),
			tx.PricePerUnit.String(),
		).Scan(&tx.Sequence)
		switch {
		case err == nil:
			created++
		case errors.Is(err, sql.ErrNoRows):
			if err := dbTx.QueryRowContext(ctx, `SELECT seq FROM transactions WHERE id = $1`, tx.ID).Scan(&tx.Sequence); err != nil {
				return 0, fmt.Errorf("failed to read stored transaction %s: %w", tx.ID, err)
			}
		default:
			return 0, fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

const transactionColumns = `id, user_id, holding_id, txn_date, kind, quantity, gross_amount, price_per_unit, seq`

// ListByUsers retrieves every transaction of the given users in date then arrival order
func (r *transactionRepository) ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ANY($1::uuid[])
		ORDER BY txn_date ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, uuidArray(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListSells retrieves the SELL transactions of a user in date then arrival order
func (r *transactionRepository) ListSells(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND kind = 'SELL'
		ORDER BY txn_date ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sells: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	txns := []domain.Transaction{}
	for rows.Next() {
		var tx domain.Transaction
		var kind, quantityStr, grossStr, priceStr string

		if err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.HoldingID,
			&tx.Date,
			&kind,
			&quantityStr,
			&grossStr,
			&priceStr,
			&tx.Sequence,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Kind = domain.TransactionKind(kind)

		var err error
		if tx.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		if tx.GrossAmount, err = decimal.NewFromString(grossStr); err != nil {
			return nil, fmt.Errorf("failed to parse gross_amount: %w", err)
		}
		if tx.PricePerUnit, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price_per_unit: %w", err)
		}

		txns = append(txns, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}
