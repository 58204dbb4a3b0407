// Package csvimport reads normalized price, holding and transaction files.
package csvimport

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// PriceRow is one line of a price history file
type PriceRow struct {
	HoldingID string `csv:"holding_id"`
	Date      string `csv:"date"`
	Price     string `csv:"price"`
}

// HoldingRow is one line of a holding catalog file
type HoldingRow struct {
	ID         string `csv:"id"`
	Name       string `csv:"name"`
	ISIN       string `csv:"isin"`
	SchemeCode string `csv:"scheme_code"`
	Category   string `csv:"category"`
}

// TransactionRow is one line of a transaction file
type TransactionRow struct {
	ID           string `csv:"id"`
	UserID       string `csv:"user_id"`
	HoldingID    string `csv:"holding_id"`
	Date         string `csv:"date"`
	Kind         string `csv:"kind"`
	Quantity     string `csv:"quantity"`
	GrossAmount  string `csv:"gross_amount"`
	PricePerUnit string `csv:"price_per_unit"`
}

// lineError points at the offending line; line 1 is the header
func lineError(i int, err error) error {
	return fmt.Errorf("line %d: %w", i+2, err)
}

// ReadPrices parses a holding_id,date,price file
func ReadPrices(r io.Reader) ([]domain.PricePoint, error) {
	rows := []PriceRow{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to read price csv: %w", err)
	}

	points := make([]domain.PricePoint, 0, len(rows))
	for i, row := range rows {
		holdingID, err := uuid.Parse(strings.TrimSpace(row.HoldingID))
		if err != nil {
			return nil, lineError(i, fmt.Errorf("invalid holding_id: %w", err))
		}
		date, err := domain.ParseDate(strings.TrimSpace(row.Date))
		if err != nil {
			return nil, lineError(i, err)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(row.Price))
		if err != nil {
			return nil, lineError(i, fmt.Errorf("invalid price: %w", err))
		}
		if !price.IsPositive() {
			return nil, lineError(i, fmt.Errorf("price must be positive, got %s", price))
		}

		points = append(points, domain.PricePoint{HoldingID: holdingID, Date: date, Price: price})
	}

	return points, nil
}

// ReadHoldings parses an id,name,isin,scheme_code,category file
func ReadHoldings(r io.Reader) ([]domain.Holding, error) {
	rows := []HoldingRow{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to read holding csv: %w", err)
	}

	holdings := make([]domain.Holding, 0, len(rows))
	for i, row := range rows {
		id, err := uuid.Parse(strings.TrimSpace(row.ID))
		if err != nil {
			return nil, lineError(i, fmt.Errorf("invalid id: %w", err))
		}
		h := domain.Holding{
			ID:         id,
			Name:       strings.TrimSpace(row.Name),
			ISIN:       strings.TrimSpace(row.ISIN),
			SchemeCode: strings.TrimSpace(row.SchemeCode),
			Category:   strings.TrimSpace(row.Category),
		}
		if err := h.Validate(); err != nil {
			return nil, lineError(i, err)
		}
		holdings = append(holdings, h)
	}

	return holdings, nil
}

// ReadTransactions parses a transaction file. Quantities and amounts are magnitudes;
// the kind column carries the direction. Rows keep their file order as arrival order.
func ReadTransactions(r io.Reader) ([]domain.Transaction, error) {
	rows := []TransactionRow{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to read transaction csv: %w", err)
	}

	txns := make([]domain.Transaction, 0, len(rows))
	for i, row := range rows {
		tx, err := parseTransaction(row)
		if err != nil {
			return nil, lineError(i, err)
		}
		tx.Sequence = int64(i + 1)
		txns = append(txns, tx)
	}

	return txns, nil
}

func parseTransaction(row TransactionRow) (domain.Transaction, error) {
	var tx domain.Transaction
	var err error

	if id := strings.TrimSpace(row.ID); id != "" {
		if tx.ID, err = uuid.Parse(id); err != nil {
			return tx, fmt.Errorf("invalid id: %w", err)
		}
	} else {
		tx.ID = uuid.New()
	}
	if tx.UserID, err = uuid.Parse(strings.TrimSpace(row.UserID)); err != nil {
		return tx, fmt.Errorf("invalid user_id: %w", err)
	}
	if tx.HoldingID, err = uuid.Parse(strings.TrimSpace(row.HoldingID)); err != nil {
		return tx, fmt.Errorf("invalid holding_id: %w", err)
	}
	if tx.Date, err = domain.ParseDate(strings.TrimSpace(row.Date)); err != nil {
		return tx, err
	}
	tx.Kind = domain.TransactionKind(strings.ToUpper(strings.TrimSpace(row.Kind)))
	if tx.Quantity, err = decimal.NewFromString(strings.TrimSpace(row.Quantity)); err != nil {
		return tx, fmt.Errorf("invalid quantity: %w", err)
	}
	if tx.GrossAmount, err = decimal.NewFromString(strings.TrimSpace(row.GrossAmount)); err != nil {
		return tx, fmt.Errorf("invalid gross_amount: %w", err)
	}
	tx.PricePerUnit = decimal.Zero
	if p := strings.TrimSpace(row.PricePerUnit); p != "" {
		if tx.PricePerUnit, err = decimal.NewFromString(p); err != nil {
			return tx, fmt.Errorf("invalid price_per_unit: %w", err)
		}
	}
	// Signed exports are accepted; direction comes from kind
	tx.Quantity = tx.Quantity.Abs()
	tx.GrossAmount = tx.GrossAmount.Abs()

	if err := tx.Validate(); err != nil {
		return tx, err
	}
	return tx, nil
}
