package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/linegpt/internal/gateway"
	"github.com/soyeahso/linegpt/internal/line"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the LINE webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			router := a.router(line.NewClient(cfg.LINE.ChannelAccessToken, cfg.LINE.APIBase))
			srv := gateway.New(gateway.Options{
				Addr:         cfg.Server.Addr(),
				ReadTimeout:  seconds(cfg.Server.ReadTimeoutSeconds),
				WriteTimeout: seconds(cfg.Server.WriteTimeoutSeconds),
			}, line.NewVerifier(cfg.LINE.ChannelSecret), router, a.metrics, log)

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&host, "host", "", "override listen host")

	return cmd
}
