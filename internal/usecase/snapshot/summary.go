package snapshot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// ErrNoSnapshots is returned when summarizing an empty series
var ErrNoSnapshots = errors.New("no snapshots to summarize")

// SeriesSummary describes a snapshot series
type SeriesSummary struct {
	Points int
	First  domain.Snapshot
	Last   domain.Snapshot
	Peak   domain.Snapshot
	Trough domain.Snapshot
	// MaxDrawdown is the largest peak-to-trough decline as a fraction of the peak
	MaxDrawdown float64
	// MeanChange and StdDevChange describe the fractional change between consecutive snapshots
	MeanChange   float64
	StdDevChange float64
}

// Summarize computes summary statistics over snapshots in date order
func Summarize(snapshots []domain.Snapshot) (*SeriesSummary, error) {
	if len(snapshots) == 0 {
		return nil, ErrNoSnapshots
	}

	ordered := make([]domain.Snapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].AsOfDate.Before(ordered[j].AsOfDate)
	})

	values := make(stats.Float64Data, len(ordered))
	for i, s := range ordered {
		values[i] = s.AggregateValue.InexactFloat64()
	}

	peak, err := stats.Max(values)
	if err != nil {
		return nil, fmt.Errorf("failed to compute peak: %w", err)
	}
	trough, err := stats.Min(values)
	if err != nil {
		return nil, fmt.Errorf("failed to compute trough: %w", err)
	}

	summary := &SeriesSummary{
		Points: len(ordered),
		First:  ordered[0],
		Last:   ordered[len(ordered)-1],
	}
	peakSet, troughSet := false, false
	for i, v := range values {
		if !peakSet && v == peak {
			summary.Peak = ordered[i]
			peakSet = true
		}
		if !troughSet && v == trough {
			summary.Trough = ordered[i]
			troughSet = true
		}
	}

	runningMax := values[0]
	for _, v := range values {
		if v > runningMax {
			runningMax = v
		}
		if drawdown := (runningMax - v) / runningMax; drawdown > summary.MaxDrawdown {
			summary.MaxDrawdown = drawdown
		}
	}

	changes := make(stats.Float64Data, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		changes = append(changes, values[i]/values[i-1]-1)
	}
	if len(changes) > 0 {
		if summary.MeanChange, err = stats.Mean(changes); err != nil {
			return nil, fmt.Errorf("failed to compute mean change: %w", err)
		}
	}
	// The sample deviation needs at least two observations
	if len(changes) > 1 {
		if summary.StdDevChange, err = stats.StandardDeviationSample(changes); err != nil {
			return nil, fmt.Errorf("failed to compute change deviation: %w", err)
		}
	}

	return summary, nil
}
