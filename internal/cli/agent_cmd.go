package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/linegpt/internal/agent"
	"github.com/soyeahso/linegpt/internal/config"
	"github.com/soyeahso/linegpt/internal/tools"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect the configured agent",
	}

	cmd.AddCommand(newAgentInfoCmd())
	cmd.AddCommand(newAgentPromptCmd())
	return cmd
}

func newAgentInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the model, tools and limits the agent runs with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider:  %s\n", cfg.LLM.Provider)
			fmt.Fprintf(out, "Model:     %s\n", cfg.LLM.Model)
			fmt.Fprintf(out, "Temp:      %.2f\n", cfg.LLM.Temperature)
			fmt.Fprintf(out, "MaxSteps:  %d\n", cfg.LLM.MaxSteps)
			fmt.Fprintf(out, "Timeout:   %ds\n", cfg.LLM.TimeoutSeconds)

			reg, err := tools.Build(toolsConfig(cfg))
			if err != nil {
				fmt.Fprintf(out, "Tools:     unavailable (%v)\n", err)
			} else {
				fmt.Fprintf(out, "Tools:     %s\n", strings.Join(reg.Names(), ", "))
			}
			fmt.Fprintf(out, "Window:    %d turns (%s)\n", cfg.Memory.WindowSize, cfg.Memory.Store)
			return nil
		},
	}
}

func newAgentPromptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Print the effective system prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), agent.BuildSystemPrompt(cfg.Agent.SystemPrompt, cfg.Agent.ExtraPrompt))
			return nil
		},
	}
}
