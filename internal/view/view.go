// Package view renders ledger state for a terminal.
package view

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"budget/internal/core"
)

// EmptySummary is shown instead of a breakdown when nothing is recorded.
const EmptySummary = "No expenses recorded yet."

const barWidth = 30

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatMoney renders an amount as dollars with thousands separators ($1,234.56).
func FormatMoney(m core.Money) string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%s.%02d", sign, printer.Sprintf("%d", cents/100), cents%100)
}

// FormatPercent renders a share to one decimal place.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

// RenderList writes the expenses as a table in the order given.
func RenderList(w io.Writer, expenses []core.Expense) error {
	if len(expenses) == 0 {
		_, err := fmt.Fprintln(w, EmptySummary)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Date", "Category", "Description", "Amount"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, e := range expenses {
		table.Append([]string{
			strconv.FormatInt(e.ID, 10),
			e.Date.String(),
			e.Category,
			e.Description,
			FormatMoney(e.Amount),
		})
	}
	table.Render()
	return nil
}

// RenderSummary writes the total followed by one line per category with its
// subtotal, share and a bar proportional to the share.
func RenderSummary(w io.Writer, s core.Summary) error {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().Bold(true)
	name := r.NewStyle().Width(longestName(s) + 2)
	amount := r.NewStyle().Width(14).Align(lipgloss.Right)
	pct := r.NewStyle().Width(8).Align(lipgloss.Right)
	bar := r.NewStyle().Foreground(lipgloss.Color("6"))

	var b strings.Builder
	b.WriteString(title.Render("Total: " + FormatMoney(s.Total)))
	b.WriteString("\n")
	if len(s.ByCategory) == 0 {
		b.WriteString(EmptySummary)
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("\n")
	for _, c := range s.ByCategory {
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			name.Render(c.Name),
			amount.Render(FormatMoney(c.Amount)),
			pct.Render(FormatPercent(c.Percent)),
			"  ",
			bar.Render(Bar(c.Percent, barWidth)),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderCategories writes one category per line.
func RenderCategories(w io.Writer, cats []string) error {
	for _, c := range cats {
		if _, err := fmt.Fprintln(w, c); err != nil {
			return err
		}
	}
	return nil
}

// Bar returns a run of block characters whose length is pct% of width.
// Any non-zero share gets at least one block.
func Bar(pct float64, width int) string {
	if pct <= 0 || width <= 0 {
		return ""
	}
	n := int(math.Round(pct / 100 * float64(width)))
	if n < 1 {
		n = 1
	}
	if n > width {
		n = width
	}
	return strings.Repeat("█", n)
}

func longestName(s core.Summary) int {
	n := 0
	for _, c := range s.ByCategory {
		if l := lipgloss.Width(c.Name); l > n {
			n = l
		}
	}
	return n
}
