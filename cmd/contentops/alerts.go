package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"contentops/internal/domain"
	"contentops/internal/usecase/alerting"
)

// quietNotifier swallows alerts for dry runs.
type quietNotifier struct{}

func (quietNotifier) SendAlert(context.Context, domain.Alert) bool { return false }
func (quietNotifier) Available() bool                             { return false }

func newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Inspect the alert rules",
	}
	var dryRun bool
	check := &cobra.Command{
		Use:   "check [rule...]",
		Short: "Evaluate alert rules once, notifying on crossings unless --dry-run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var n domain.Notifier = a.notifier
			if dryRun {
				n = quietNotifier{}
			}
			engine := alerting.New(cfg.Alerting, n, a.metrics, a.log)

			var results []alerting.Result
			if len(args) == 0 {
				results = engine.CheckAll(cmd.Context())
			}
			for _, name := range args {
				r, err := engine.Check(cmd.Context(), name)
				if err != nil {
					return err
				}
				results = append(results, r)
			}
			renderResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	check.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate without sending notifications")
	cmd.AddCommand(check)
	return cmd
}

func renderResults(w io.Writer, results []alerting.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No alert rules enabled.")
		return
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		value := "-"
		if r.Status != alerting.StatusNoData && r.Status != alerting.StatusFailed && r.Status != alerting.StatusNotDue {
			value = strconv.FormatFloat(r.Value, 'f', 1, 64)
		}
		level, sent := string(r.Level), ""
		if level == "" {
			level = "-"
		}
		if r.Status == alerting.StatusFiring {
			sent = strconv.FormatBool(r.Sent)
		}
		note := ""
		if r.Err != nil {
			note = r.Err.Error()
		}
		rows = append(rows, []string{r.Rule, string(r.Status), value, level, sent, note})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RULE", "STATUS", "VALUE", "LEVEL", "SENT", "NOTE").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.String())
}
