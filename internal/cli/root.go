// Package cli implements the linegpt command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/soyeahso/linegpt/internal/config"
	"github.com/soyeahso/linegpt/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	envFile  string

	// loaded at init time
	paths     config.Paths
	log       *logging.Logger
	logCloser io.Closer

	stdout io.Writer = os.Stdout
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linegpt",
		Short: "linegpt: LINE chatbot backed by a tool-using GPT agent",
		Long: "linegpt answers LINE messages with an OpenAI chat model that can search the web, " +
			"PubMed and arXiv and do arithmetic, remembering each conversation for the day.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			if err := loadEnvFiles(envFile, ".env", paths.Env); err != nil {
				return err
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser == nil {
				return nil
			}
			err := logCloser.Close()
			logCloser = nil
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.linegpt/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "extra .env file to load before the config")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newSignCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadEnvFiles loads each existing file into the environment. Variables
// already set are kept; an explicitly named file must exist.
func loadEnvFiles(explicit string, candidates ...string) error {
	if explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return fmt.Errorf("loading %s: %w", explicit, err)
		}
	}
	for _, f := range candidates {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
