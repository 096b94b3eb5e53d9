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

var taskStateColors = map[domain.TaskState]lipgloss.Color{
	domain.TaskCompleted: lipgloss.Color("2"),
	domain.TaskRunning:   lipgloss.Color("4"),
	domain.TaskFailed:    lipgloss.Color("1"),
	domain.TaskCancelled: lipgloss.Color("8"),
}

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect and toggle agent records",
	}
	cmd.AddCommand(
		newAgentToggleCmd("enable", "Allow dispatches to an agent again"),
		newAgentToggleCmd("disable", "Block dispatches to an agent"),
		newAgentTasksCmd(),
		newAgentLogsCmd(),
	)
	return cmd
}

func newAgentToggleCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <agent-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
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

			toggle := a.orch.EnableAgent
			if verb == "disable" {
				toggle = a.orch.DisableAgent
			}
			agent, err := toggle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", agent.Name, agent.State, agent.ID)
			return nil
		},
	}
}

func newAgentTasksCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "tasks <agent-id>",
		Short: "List an agent's recent tasks",
		Args:  cobra.ExactArgs(1),
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

			tasks, err := a.orch.ListTasks(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			renderTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newAgentLogsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs <agent-id>",
		Short: "Print an agent's recent log rows",
		Args:  cobra.ExactArgs(1),
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

			logs, err := a.orch.ListLogs(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			renderLogs(cmd.OutOrStdout(), logs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of rows")
	return cmd
}

func renderTasks(w io.Writer, tasks []*domain.AgentTask) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks recorded.")
		return
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		started := "-"
		if t.StartedAt != nil {
			started = t.StartedAt.UTC().Format(time.DateTime)
		}
		rows = append(rows, []string{
			t.ID,
			string(t.State),
			string(t.Priority),
			started,
			t.Duration.Round(time.Millisecond).String(),
			t.ErrorMessage,
		})
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("TASK", "STATE", "PRIORITY", "STARTED", "DURATION", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(tasks) {
				if c, ok := taskStateColors[tasks[row].State]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})
	fmt.Fprintln(w, tbl.String())
	fmt.Fprintln(w, faintStyle.Render(strconv.Itoa(len(tasks))+" tasks"))
}

func renderLogs(w io.Writer, logs []*domain.AgentLog) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No log rows recorded.")
		return
	}
	for _, l := range logs {
		line := fmt.Sprintf("%s %-5s %s", l.CreatedAt.UTC().Format(time.RFC3339), l.Level, l.Message)
		if l.TaskID != "" {
			line += faintStyle.Render(" task=" + l.TaskID)
		}
		fmt.Fprintln(w, line)
	}
}
