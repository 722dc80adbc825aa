// Package report renders scan reports for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#C9A227", Dark: "#F2C94C"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true)

	metaStyle    = lipgloss.NewStyle().Foreground(subtle)
	sectionStyle = lipgloss.NewStyle().Foreground(special).Bold(true).MarginTop(1)
	infoStyle    = lipgloss.NewStyle().Foreground(warning).MarginTop(1)
	headerCell   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell         = lipgloss.NewStyle().Padding(0, 1)
)

const undefined = "n/a"

// Render writes a human-readable report: one row per matching symbol, then the unavailable symbols.
func Render(w io.Writer, r *domain.Report) error {
	if r == nil {
		return nil
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("BREAKOUT SCANNER"))
	b.WriteString("\n")
	b.WriteString(metaStyle.Render(fmt.Sprintf("Updated: %s  interval %s  rules %s",
		r.FinishedAt.Format("2006-01-02 15:04:05"), r.Interval, ruleTitles(r.Rules))))
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Results: %d of %d tickers matched", r.Matched(), r.Scanned)))
	b.WriteString("\n")

	if r.Matched() == 0 {
		b.WriteString(infoStyle.Render("No setups detected in current list."))
		b.WriteString("\n")
	} else {
		b.WriteString(resultsTable(r).Render())
		b.WriteString("\n")
	}

	if len(r.Unavailable) > 0 {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Unavailable: %d", len(r.Unavailable))))
		b.WriteString("\n")
		for _, u := range r.Unavailable {
			b.WriteString(metaStyle.Render(fmt.Sprintf("  %-8s %s", u.Symbol, u.Reason)))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func resultsTable(r *domain.Report) *table.Table {
	oscHeader := "Osc"
	if len(r.Results) > 0 && r.Results[0].Indicators != nil {
		oscHeader = strings.ToUpper(r.Results[0].Indicators.OscillatorName)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(highlight)).
		Headers("Ticker", "Signals", "Close", "EMA 8", "EMA 21", "BB Upper", "VWAP", "Vol Avg", oscHeader, "Trend").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return cell
		})

	for _, res := range r.Results {
		s := res.Summary()
		t.Row(
			res.Symbol,
			ruleTitles(res.Rules),
			s.Close.StringFixed(2),
			fixed(s.EMAFast),
			fixed(s.EMASlow),
			fixed(s.BandUpper),
			fixed(s.VWAP),
			fixed(s.VolumeAvg),
			fixed(s.Oscillator),
			s.Trend.Title(),
		)
	}
	return t
}

func fixed(d *decimal.Decimal) string {
	if d == nil {
		return undefined
	}
	return d.StringFixed(2)
}

func ruleTitles(rules []domain.RuleName) string {
	titles := make([]string, len(rules))
	for i, r := range rules {
		titles[i] = r.Title()
	}
	return strings.Join(titles, ", ")
}
