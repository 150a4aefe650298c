package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/soyeahso/linegpt/internal/config"
	"github.com/soyeahso/linegpt/internal/line"
)

func newSignCmd() *cobra.Command {
	var verify string

	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Print the X-Line-Signature for a webhook body",
		Long:  "Signs a body (file or stdin) with the channel secret, or checks a signature with --verify.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if cfg.LINE.ChannelSecret == "" {
				return fmt.Errorf("line.channelSecret is not set (or set LINE_CHANNEL_SECRET)")
			}

			var body []byte
			if len(args) == 0 || args[0] == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			v := line.NewVerifier(cfg.LINE.ChannelSecret)
			if verify != "" {
				if err := v.Verify(body, verify); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "signature ok")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Sign(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&verify, "verify", "", "signature to check instead of printing one")
	return cmd
}
