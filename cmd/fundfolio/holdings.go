package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/simaogato/fundfolio-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/simaogato/fundfolio-backend/internal/report"
	"github.com/simaogato/fundfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/fundfolio-backend/internal/usecase/xirr"
)

func newHoldingsCmd(a *app) *cobra.Command {
	var (
		subject subjectFlags
		render  renderFlags
		asOf    string
	)
	cmd := &cobra.Command{
		Use:   "holdings",
		Short: "Show current holdings with cost, value, gain and XIRR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, scope, err := subject.resolve()
			if err != nil {
				return err
			}
			var on time.Time
			if asOf != "" {
				if on, err = domain.ParseDate(asOf); err != nil {
					return err
				}
			}

			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			svc := portfolio.NewPortfolioService(
				postgres.NewTransactionRepository(db),
				postgres.NewPriceRepository(db),
				postgres.NewSubjectRepository(db),
				postgres.NewHoldingRepository(db),
				a.log,
			)
			svc.FallbackDays = a.cfg.Snapshot.FallbackDays

			var summary *portfolio.Summary
			if scope == domain.ScopeFamily {
				summary, err = svc.FamilySummary(cmd.Context(), id, on)
			} else {
				summary, err = svc.PersonalSummary(cmd.Context(), id, on)
			}
			if err != nil {
				return err
			}
			return render.print(cmd, report.HoldingsMarkdown(summary, render.currency))
		},
	}
	subject.register(cmd)
	render.register(cmd)
	cmd.Flags().StringVar(&asOf, "as-of", "", "valuation date YYYY-MM-DD (default: today with latest prices)")
	return cmd
}

func newXIRRCmd() *cobra.Command {
	var flows []string
	cmd := &cobra.Command{
		Use:   "xirr",
		Short: "Solve the annualized rate of dated cash flows",
		Long: `Solve the annualized rate of dated cash flows.

Each --flow is DATE:AMOUNT. Money paid in is negative, money received is positive:

  fundfolio xirr --flow 2024-01-01:-1000 --flow 2025-01-01:1100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseFlows(flows)
			if err != nil {
				return err
			}
			res := xirr.Solve(parsed)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s after %d iterations)\n",
				report.FormatRate(res), res.Status, res.Iterations)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&flows, "flow", nil, "cash flow as DATE:AMOUNT, repeatable")
	_ = cmd.MarkFlagRequired("flow")
	return cmd
}

func parseFlows(raw []string) ([]domain.CashFlow, error) {
	flows := make([]domain.CashFlow, 0, len(raw))
	for _, r := range raw {
		datePart, amountPart, ok := strings.Cut(r, ":")
		if !ok {
			return nil, fmt.Errorf("invalid flow %q, expected DATE:AMOUNT", r)
		}
		date, err := domain.ParseDate(datePart)
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(amountPart))
		if err != nil {
			return nil, fmt.Errorf("invalid amount in flow %q: %w", r, err)
		}
		flows = append(flows, domain.CashFlow{Date: date, Amount: amount})
	}
	return flows, nil
}
