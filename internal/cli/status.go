package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soyeahso/linegpt/internal/config"
	"github.com/soyeahso/linegpt/internal/gateway"
	"github.com/soyeahso/linegpt/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show linegpt status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "linegpt %s (commit %s)\n\n", version.Version, version.Short())

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:  not found (defaults + environment)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Server:  %s%s\n", cfg.Server.Addr(), gateway.CallbackPath)
			fmt.Fprintf(out, "LINE:    secret=%s token=%s api=%s\n",
				setOrMissing(cfg.LINE.ChannelSecret), setOrMissing(cfg.LINE.ChannelAccessToken), cfg.LINE.APIBase)
			fmt.Fprintf(out, "LLM:     provider=%s model=%s key=%s\n",
				cfg.LLM.Provider, cfg.LLM.Model, setOrMissing(cfg.LLM.APIKey))
			fmt.Fprintf(out, "Search:  %s\n", cfg.Tools.Search.Provider)

			switch cfg.Memory.Store {
			case "sqlite":
				fmt.Fprintf(out, "Memory:  sqlite %s window=%d\n", paths.DatabasePath(&cfg), cfg.Memory.WindowSize)
			case "firestore":
				fmt.Fprintf(out, "Memory:  firestore collection=%s window=%d\n", cfg.Memory.Collection, cfg.Memory.WindowSize)
			default:
				fmt.Fprintf(out, "Memory:  %s window=%d\n", cfg.Memory.Store, cfg.Memory.WindowSize)
			}
			fmt.Fprintf(out, "Audit:   %s\n", cfg.Audit.Sink)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func setOrMissing(s string) string {
	if s == "" {
		return "(missing)"
	}
	return "set"
}
