package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/noah-isme/donkicalc-api/internal/calculator"
)

func newKeypadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "keypad",
		Short: "Interactive keypad calculator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rate, source := opts.resolveRate(cmd.Context())
			pad := calculator.NewKeypad(
				calculator.WithRate(rate),
				calculator.WithThreshold(opts.threshold),
				calculator.WithMaxDigits(opts.maxDigits),
				calculator.WithPolicy(opts.policy()),
			)
			p := tea.NewProgram(newKeypadModel(pad, source),
				tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("keypad: %w", err)
			}
			return nil
		},
	}
}

// keypadModel adapts calculator.Keypad to a bubbletea program.
type keypadModel struct {
	pad        *calculator.Keypad
	rateSource string
}

func newKeypadModel(pad *calculator.Keypad, rateSource string) keypadModel {
	return keypadModel{pad: pad, rateSource: rateSource}
}

func (m keypadModel) Init() tea.Cmd { return nil }

func (m keypadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch k := key.String(); k {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "backspace", "delete":
		m.pad.Backspace()
	case "c":
		m.pad.Clear()
	case "t":
		m.pad.ToggleTaxFree()
	case "k":
		m.pad.ToggleCoupon()
	default:
		if len(k) == 1 && k[0] >= '0' && k[0] <= '9' {
			m.pad.AppendDigit(k)
		}
	}
	return m, nil
}

func (m keypadModel) View() string {
	res, gauge := m.pad.Snapshot()
	var b strings.Builder
	b.WriteString(RenderQuote(res, gauge, m.pad.TaxFree(), m.pad.Coupon()))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(fmt.Sprintf("input %s  rate source %s", m.pad.Input(), m.rateSource)))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("0-9 type  ⌫ delete  c clear  t tax-free  k coupon  q quit"))
	b.WriteString("\n")
	return b.String()
}
