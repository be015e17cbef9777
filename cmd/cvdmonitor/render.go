package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	subtle      = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight   = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	headerStyle = lipgloss.NewStyle().Foreground(highlight).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func renderTable(w io.Writer, title string, headers []string, rows [][]string) {
	if title != "" {
		fmt.Fprintln(w, titleStyle.Render(title))
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

func renderNote(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, noteStyle.Render(fmt.Sprintf(format, args...)))
}

func renderJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func num(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func signed(v float64) string {
	return fmt.Sprintf("%+.4f", v)
}
