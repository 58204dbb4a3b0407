package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// SeedReport counts what a Seed call did
type SeedReport struct {
	Created  int
	Existing int
}

// HoldingSeeder registers catalog holdings that are not stored yet
type HoldingSeeder struct {
	repo domain.HoldingRepository
}

// NewHoldingSeeder creates a new HoldingSeeder instance
func NewHoldingSeeder(repo domain.HoldingRepository) *HoldingSeeder {
	return &HoldingSeeder{
		repo: repo,
	}
}

// Seed ensures every given holding exists.
// Existing holdings are left as they are; seeding the same catalog twice is a no-op.
func (s *HoldingSeeder) Seed(ctx context.Context, holdings []domain.Holding) (*SeedReport, error) {
	report := &SeedReport{}

	for i := range holdings {
		h := holdings[i]

		_, err := s.repo.GetByID(ctx, h.ID)
		if err == nil {
			report.Existing++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return report, fmt.Errorf("failed to look up holding %s: %w", h.ID, err)
		}

		// Validate before creating
		if err := h.Validate(); err != nil {
			return report, err
		}

		if err := s.repo.Create(ctx, &h); err != nil {
			return report, err
		}
		report.Created++
	}

	return report, nil
}
