package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joelklabo/bangbot/internal/check"
	"github.com/joelklabo/bangbot/internal/config"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func printBanner(w io.Writer, cfg *config.Config, ver string) {
	transports := make([]string, 0, len(cfg.Transports))
	for _, t := range cfg.Transports {
		transports = append(transports, t.ID+" ("+t.Type+")")
	}
	admin := "off"
	if cfg.Admin.Enable {
		admin = "on @ " + cfg.Admin.Addr
	}
	metricsAddr := "off"
	if cfg.Metrics.Listen != "" {
		metricsAddr = cfg.Metrics.Listen
	}
	lines := []string{
		titleStyle.Render("bangbot " + ver),
		row("prefix", cfg.Prefixes.Command),
		row("transports", strings.Join(transports, ", ")),
		row("storage", cfg.Storage.Path),
		row("admin", admin),
		row("metrics", metricsAddr),
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
	fmt.Fprintf(w, "Tip: send %shelp to see every command.\n", cfg.Prefixes.Command)
}

// printResults prints check results. Passing checks only show when verbose.
func printResults(w io.Writer, results []check.Result, verbose bool) {
	for _, r := range results {
		var mark string
		switch r.Status {
		case check.StatusOK:
			if !verbose {
				continue
			}
			mark = okStyle.Render("ok  ")
		case check.StatusWarn:
			mark = warnStyle.Render("warn")
		default:
			mark = badStyle.Render("miss")
		}
		fmt.Fprintf(w, "%s %s (%s): %s\n", mark, r.Name, r.Type, r.Details)
	}
}
