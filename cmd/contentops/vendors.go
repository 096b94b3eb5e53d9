package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"contentops/internal/infra/config"
)

// fallbackModes describes what each binding does without credentials.
var fallbackModes = map[string]string{
	"youtube":     "mock channels and videos",
	"serpapi":     "mock trends",
	"socialblade": "mock stats",
	"openai":      "Anthropic failover",
	"anthropic":   "error result",
	"heygen":      "error result",
	"elevenlabs":  "error result",
	"gcs":         "inline data URL",
	"slack":       "notifications dropped",
}

func newVendorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vendors",
		Short: "Report which vendor bindings are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			renderVendors(cmd.OutOrStdout(), config.VendorReport(cfg))
			return nil
		},
	}
}

func renderVendors(w io.Writer, report []config.VendorStatus) {
	live := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	rows := make([][]string, 0, len(report))
	for _, v := range report {
		status, mode := "missing", fallbackModes[v.Name]
		if v.Configured {
			status, mode = live.Render("configured"), "live"
		}
		rows = append(rows, []string{v.Name, status, mode})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("VENDOR", "CREDENTIALS", "MODE").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.String())
}
