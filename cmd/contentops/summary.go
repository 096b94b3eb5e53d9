package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"contentops/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	stateColors = map[domain.AgentState]lipgloss.Color{
		domain.AgentIdle:     lipgloss.Color("2"),
		domain.AgentRunning:  lipgloss.Color("4"),
		domain.AgentDisabled: lipgloss.Color("8"),
		domain.AgentError:    lipgloss.Color("1"),
	}
)

func newSummaryCmd() *cobra.Command {
	var (
		knowledgeID string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show agent states and counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.orch.GetAgentSummary(cmd.Context(), knowledgeID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			renderSummary(cmd.OutOrStdout(), s, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVarP(&knowledgeID, "knowledge", "k", "", "only agents scoped to this knowledge bundle")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func renderSummary(w io.Writer, s domain.Summary, now time.Time) {
	rate := 0.0
	if s.TotalTasks > 0 {
		rate = float64(s.Successes) / float64(s.TotalTasks) * 100
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d agents, %d enabled, %d running", s.TotalAgents, s.EnabledAgents, s.RunningAgents)))
	fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("%d tasks, %d succeeded, %d failed (%.1f%%)", s.TotalTasks, s.Successes, s.Failures, rate)))
	if len(s.Agents) == 0 {
		fmt.Fprintln(w, "No agents yet. Run one with: contentops run <agent-type>")
		return
	}

	rows := make([][]string, 0, len(s.Agents))
	states := make([]domain.AgentState, 0, len(s.Agents))
	for _, a := range s.Agents {
		enabled := "yes"
		if !a.Enabled {
			enabled = "no"
		}
		rows = append(rows, []string{
			a.Name,
			string(a.Type),
			string(a.State),
			enabled,
			lastRun(a.LastRunAt, now),
			strconv.FormatFloat(a.SuccessRate*100, 'f', 0, 64) + "%",
		})
		states = append(states, a.State)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("NAME", "TYPE", "STATE", "ENABLED", "LAST RUN", "SUCCESS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(states) {
				if c, ok := stateColors[states[row]]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.String())
}

func lastRun(at *time.Time, now time.Time) string {
	if at == nil {
		return "never"
	}
	d := now.Sub(*at).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String() + " ago"
}
