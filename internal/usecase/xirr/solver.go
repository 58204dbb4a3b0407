package xirr

import (
	"math"
	"sort"

	"github.com/simaogato/fundfolio-backend/internal/domain"
)

const (
	DefaultTolerance     = 1e-7
	DefaultMaxIterations = 100

	minGuess        = -0.9
	maxGuess        = 5.0
	maxStep         = 1.0
	minDerivative   = 1e-12
	rateFloor       = -0.999999
	minYears        = 1e-6
	maxStepHalvings = 60
)

// Status tells how the solver reached its result
type Status int

const (
	StatusConverged Status = iota
	// StatusDegenerate means the flows lack an outflow or an inflow
	StatusDegenerate
	// StatusNotConverged means the iteration budget ran out or the derivative vanished
	StatusNotConverged
	// StatusSignInconsistent means the root contradicts the net gain or loss of the flows
	StatusSignInconsistent
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusDegenerate:
		return "degenerate"
	case StatusNotConverged:
		return "not_converged"
	case StatusSignInconsistent:
		return "sign_inconsistent"
	default:
		return "unknown"
	}
}

// Result is an annualized rate, e.g. 0.234 for 23.4%
type Result struct {
	Rate       float64
	Status     Status
	Iterations int
}

// Determinate reports whether Rate is a real figure.
// A zero rate from an indeterminate result must not be shown as 0%.
func (r Result) Determinate() bool {
	return r.Status == StatusConverged
}

// Solver finds the rate that zeroes the net present value of dated cash flows
// using Newton-Raphson with damped steps.
type Solver struct {
	Tolerance     float64
	MaxIterations int
}

// NewSolver creates a Solver with the default tolerance and iteration budget
func NewSolver() *Solver {
	return &Solver{
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

// Solve computes the annualized rate with the default solver
func Solve(flows []domain.CashFlow) Result {
	return NewSolver().Solve(flows)
}

// Rate returns only the annualized rate, zero when indeterminate
func Rate(flows []domain.CashFlow) float64 {
	return Solve(flows).Rate
}

type point struct {
	years  float64
	amount float64
}

// Solve computes the annualized rate of flows. It never fails: degenerate or
// ill-conditioned inputs yield a zero rate with a non-converged Status.
func (s *Solver) Solve(flows []domain.CashFlow) Result {
	points, totalIn, totalOut := normalize(flows)
	if totalIn <= 0 || totalOut <= 0 {
		return Result{Status: StatusDegenerate}
	}

	span := math.Max(points[len(points)-1].years, minYears)
	rate := (math.Pow(totalIn/totalOut, 1.0/span)) - 1.0
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = 0.1
	}
	rate = math.Max(math.Min(rate, maxGuess), minGuess)

	converged := false
	iterations := 0
	for iterations < s.MaxIterations {
		iterations++

		f, df := npv(points, rate)
		if math.Abs(df) < minDerivative || math.IsNaN(df) {
			break
		}

		step := -f / df
		if math.Abs(step) > maxStep {
			step = math.Copysign(maxStep, step)
		}
		// Damp steps that would leave the domain r > -1
		for i := 0; rate+step <= rateFloor && i < maxStepHalvings; i++ {
			step /= 2
		}
		if rate+step <= rateFloor {
			break
		}

		rate += step
		if math.Abs(step) < s.Tolerance {
			converged = true
			break
		}
	}

	if !converged || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return Result{Status: StatusNotConverged, Iterations: iterations}
	}

	// The root must agree with the economic outcome of the flows
	netGain := totalIn - totalOut
	if (netGain > 0 && rate < 0) || (netGain < 0 && rate > 0) {
		return Result{Status: StatusSignInconsistent, Iterations: iterations}
	}

	return Result{Rate: rate, Status: StatusConverged, Iterations: iterations}
}

// NPV evaluates the net present value of flows at rate, discounting to the first flow's date
func NPV(flows []domain.CashFlow, rate float64) float64 {
	points, _, _ := normalize(flows)
	f, _ := npv(points, rate)
	return f
}

func npv(points []point, rate float64) (f, df float64) {
	base := 1.0 + rate
	for _, p := range points {
		discount := math.Pow(base, p.years)
		f += p.amount / discount
		df += -p.years * p.amount / (discount * base)
	}
	return f, df
}

func normalize(flows []domain.CashFlow) ([]point, float64, float64) {
	if len(flows) == 0 {
		return nil, 0, 0
	}

	sorted := make([]domain.CashFlow, len(flows))
	copy(sorted, flows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	first := sorted[0].Date
	points := make([]point, 0, len(sorted))
	var totalIn, totalOut float64
	for _, cf := range sorted {
		amount := cf.Amount.InexactFloat64()
		if amount > 0 {
			totalIn += amount
		} else {
			totalOut -= amount
		}
		points = append(points, point{
			years:  float64(domain.DaysBetween(first, cf.Date)) / 365.0,
			amount: amount,
		})
	}
	return points, totalIn, totalOut
}
