package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/noah-isme/donkicalc-api/internal/calculator"
)

var (
	colorAccent = lipgloss.Color("#3AA99F")
	colorMuted  = lipgloss.Color("#878580")
	colorGreen  = lipgloss.Color("#879A39")
	colorOrange = lipgloss.Color("#DA702C")
	colorBorder = lipgloss.Color("#575653")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	labelStyle  = lipgloss.NewStyle().Foreground(colorMuted).Width(14)
	valueStyle  = lipgloss.NewStyle().Bold(true)
	finalStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	onStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	offStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	hintStyle   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 2)
	gaugeFill   = lipgloss.NewStyle().Foreground(colorGreen)
	gaugeRemain = lipgloss.NewStyle().Foreground(colorOrange)
)

// Yen formats a JPY amount with grouping.
func Yen(v float64) string {
	return "¥" + humanize.Comma(int64(math.Round(v)))
}

// Won formats a KRW amount with grouping.
func Won(v int64) string {
	return "₩" + humanize.Comma(v)
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func toggle(on bool) string {
	if on {
		return onStyle.Render("ON")
	}
	return offStyle.Render("off")
}

// gaugeBar draws a fixed-width bar for the tax-free progress.
func gaugeBar(g calculator.TaxFreeProgress, width int) string {
	filled := int(math.Round(g.ProgressPercent / 100 * float64(width)))
	if filled > width {
		filled = width
	}
	return gaugeFill.Render(strings.Repeat("█", filled)) + gaugeRemain.Render(strings.Repeat("░", width-filled))
}

func gaugeLine(g calculator.TaxFreeProgress) string {
	status := fmt.Sprintf("%s to go", Yen(g.RemainingForeign))
	if g.IsAchieved {
		status = "tax-free eligible"
	}
	return fmt.Sprintf("%s %3.0f%%  %s", gaugeBar(g, 20), g.ProgressPercent, status)
}

// RenderQuote lays out a calculation result and its threshold gauge.
func RenderQuote(res calculator.Result, g calculator.TaxFreeProgress, taxFree, coupon bool) string {
	lines := []string{
		titleStyle.Render("DONKI CALCULATOR"),
		"",
		row("Amount", valueStyle.Render(Yen(res.AmountForeign))),
		row("Rate", fmt.Sprintf("%.2f KRW/JPY", res.Rate)),
		row("Base", Won(int64(math.Round(res.BaseAmountLocal)))),
		row("Tax-free", toggle(taxFree)+dim(res.TaxFreeDiscountAmount)),
		row("Coupon", toggle(coupon)+dim(res.CouponDiscountAmount)),
		row("You pay", finalStyle.Render(Won(res.FinalAmountLocal))),
		row("Saved", fmt.Sprintf("%s%%", humanize.CommafWithDigits(res.TotalDiscountPercent, 1))),
		"",
		row("Tax-free min", gaugeLine(g)),
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func dim(discount float64) string {
	if discount <= 0 {
		return ""
	}
	return hintStyle.Render("  -" + Won(int64(math.Round(discount))))
}
