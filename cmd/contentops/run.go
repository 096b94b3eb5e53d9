package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"contentops/internal/domain"
	"contentops/internal/usecase/orchestrator"
)

func newRunCmd() *cobra.Command {
	var (
		knowledgeID string
		input       string
		priority    string
	)
	cmd := &cobra.Command{
		Use:   "run <agent-type>",
		Short: "Execute one agent synchronously and print the result as JSON",
		Long: "Execute one agent synchronously. agent-type is one of " +
			strings.Join(agentTypeNames(), ", ") + " (case-insensitive).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDispatch(args[0], knowledgeID, input, priority)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.orch.Execute(ctx, d)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("%s failed: %s", d.Type, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&knowledgeID, "knowledge", "k", "", "knowledge bundle id to scope the agent to")
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON object passed to the agent; @file reads it from a file")
	cmd.Flags().StringVar(&priority, "priority", string(domain.PriorityNormal), "task priority: LOW, NORMAL, HIGH or CRITICAL")
	return cmd
}

func agentTypeNames() []string {
	out := make([]string, len(domain.AllAgentTypes))
	for i, t := range domain.AllAgentTypes {
		out[i] = string(t)
	}
	return out
}

// buildDispatch validates the command arguments before anything is opened.
func buildDispatch(agentType, knowledgeID, input, priority string) (orchestrator.Dispatch, error) {
	t, err := domain.ParseAgentType(agentType)
	if err != nil {
		return orchestrator.Dispatch{}, err
	}
	p := domain.TaskPriority(strings.ToUpper(priority))
	switch p {
	case domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh, domain.PriorityCritical:
	default:
		return orchestrator.Dispatch{}, fmt.Errorf("unknown priority %q", priority)
	}

	d := orchestrator.Dispatch{Type: t, KnowledgeID: knowledgeID, Priority: p}
	input, err = readArg(strings.TrimSpace(input))
	if err != nil {
		return orchestrator.Dispatch{}, err
	}
	if input != "" {
		if !json.Valid([]byte(input)) {
			return orchestrator.Dispatch{}, fmt.Errorf("input is not valid JSON")
		}
		d.Input = json.RawMessage(input)
	}
	return d, nil
}
