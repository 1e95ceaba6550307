package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(16)

	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// row renders one "label  value" line.
func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// box frames a titled block of rows.
func box(title string, rows ...string) string {
	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{titleStyle.Render(title), ""}, rows...)...)
	return boxStyle.Render(body)
}

func onOff(on bool, yes, no string) string {
	if on {
		return okStyle.Render(yes)
	}
	return mutedStyle.Render(no)
}

func printTitle(title string) {
	fmt.Println(titleStyle.Render(title))
}

func printList(items []string) {
	for _, item := range items {
		fmt.Println("  " + mutedStyle.Render("-") + " " + item)
	}
}

func printWarn(format string, args ...any) {
	fmt.Println(warnStyle.Render("!") + " " + fmt.Sprintf(format, args...))
}

func printOK(format string, args ...any) {
	fmt.Println(okStyle.Render("✓") + " " + fmt.Sprintf(format, args...))
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
