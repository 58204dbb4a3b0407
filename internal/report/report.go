// Package report renders portfolio summaries and snapshot histories as markdown.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"

	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/simaogato/fundfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/fundfolio-backend/internal/usecase/snapshot"
	"github.com/simaogato/fundfolio-backend/internal/usecase/xirr"
)

// FormatMoney displays amount in the currency's own notation, e.g. ₹1,234.50.
// Unknown currency codes fall back to "1234.50 XYZ".
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), currency)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// FormatRate shows an annualized rate as a signed percentage, or "n/a" when indeterminate
func FormatRate(r xirr.Result) string {
	if !r.Determinate() {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", r.Rate*100)
}

// HoldingsMarkdown renders a portfolio summary
func HoldingsMarkdown(s *portfolio.Summary, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("%s portfolio on %s", scopeLabel(s.Scope), s.AsOf.Format(time.DateOnly)))

	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
		},
		Header: []string{"Holding", "Units", "Cost", "Price", "Value", "Gain", "XIRR", "Share"},
		Rows:   [][]string{},
	}

	var broken []string
	for _, h := range s.Holdings {
		name := h.Name
		if name == "" {
			name = h.HoldingID.String()
		}
		if h.Error != "" {
			broken = append(broken, fmt.Sprintf("%s: %s", name, h.Error))
			continue
		}

		price := "missing"
		if h.Priced {
			price = fmt.Sprintf("%s (%s)", h.Price.String(), h.PriceDate.Format(time.DateOnly))
		}
		table.Rows = append(table.Rows, []string{
			name,
			h.Quantity.StringFixed(3),
			FormatMoney(h.CostBasis, currency),
			price,
			FormatMoney(h.CurrentValue, currency),
			FormatMoney(h.AbsoluteGain, currency),
			FormatRate(h.XIRR),
			h.PortfolioShare.StringFixed(2) + "%",
		})
	}
	table.Rows = append(table.Rows, []string{
		md.Bold("Total"),
		"",
		md.Bold(FormatMoney(s.TotalCost, currency)),
		"",
		md.Bold(FormatMoney(s.TotalValue, currency)),
		md.Bold(FormatMoney(s.TotalGain, currency)),
		md.Bold(FormatRate(s.XIRR)),
		"",
	})
	doc.Table(table)

	doc.PlainText(fmt.Sprintf("Realized gain: %s. Average holding period: %.0f days.",
		FormatMoney(s.RealizedGain, currency), s.AverageDaysHeld))

	if len(broken) > 0 {
		doc.H2("Holdings with inconsistent lots")
		doc.BulletList(broken...)
	}

	return doc.String()
}

// HistoryMarkdown renders a snapshot series and its summary
func HistoryMarkdown(subjectID string, scope domain.Scope, h *snapshot.History, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("%s history for %s", scopeLabel(scope), subjectID))

	if len(h.Snapshots) == 0 {
		doc.PlainText("No snapshots.")
		return doc.String()
	}

	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignRight,
			md.AlignRight,
		},
		Header: []string{"Date", "Value", "Skipped"},
		Rows:   [][]string{},
	}
	for _, snap := range h.Snapshots {
		skipped := ""
		if snap.Incomplete() {
			skipped = fmt.Sprintf("%d", snap.HoldingsSkipped)
		}
		table.Rows = append(table.Rows, []string{
			snap.AsOfDate.Format(time.DateOnly),
			FormatMoney(snap.AggregateValue, currency),
			skipped,
		})
	}
	doc.Table(table)

	if sum := h.Summary; sum != nil {
		doc.H2("Summary")
		doc.BulletList(
			fmt.Sprintf("Peak: %s on %s", FormatMoney(sum.Peak.AggregateValue, currency), sum.Peak.AsOfDate.Format(time.DateOnly)),
			fmt.Sprintf("Trough: %s on %s", FormatMoney(sum.Trough.AggregateValue, currency), sum.Trough.AsOfDate.Format(time.DateOnly)),
			fmt.Sprintf("Max drawdown: %.2f%%", sum.MaxDrawdown*100),
			fmt.Sprintf("Mean change per cutoff: %.2f%%", sum.MeanChange*100),
		)
	}

	return doc.String()
}

func scopeLabel(scope domain.Scope) string {
	if scope == domain.ScopeFamily {
		return "Family"
	}
	return "Personal"
}
