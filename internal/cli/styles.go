package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Styles for terminal output, disabled when stdout is not a TTY so piped
// output stays plain.
var (
	stylePass  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleFail  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func styled() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func passMark(s string) string {
	if !styled() {
		return "ok    " + s
	}
	return stylePass.Render("✓") + " " + s
}

func failMark(s string) string {
	if !styled() {
		return "error " + s
	}
	return styleFail.Render("✗") + " " + s
}

func warnMark(s string) string {
	if !styled() {
		return "warn  " + s
	}
	return styleWarn.Render("!") + " " + s
}

func muted(s string) string {
	if !styled() {
		return s
	}
	return styleMuted.Render(s)
}
