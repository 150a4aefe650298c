package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soyeahso/linegpt/internal/domain"
)

// terminalReplier prints replies instead of sending them to LINE.
type terminalReplier struct {
	w io.Writer
}

func (t terminalReplier) Reply(_ context.Context, _ string, text string) error {
	_, err := fmt.Fprintln(t.w, text)
	return err
}

func newAskCmd() *cobra.Command {
	var (
		session string
		group   bool
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one message through the pipeline and print the reply",
		Long: "Runs a message through the same memory, agent and audit path as the webhook, " +
			"printing the reply instead of sending it. Repeated asks with the same --session " +
			"share the day's conversation.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("line.")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			src := domain.Source{Kind: domain.SourceUser, UserID: session}
			if group {
				src = domain.Source{Kind: domain.SourceGroup, GroupID: session, UserID: "cli"}
			}

			out := a.router(terminalReplier{w: cmd.OutOrStdout()}).HandleEvent(ctx, domain.InboundEvent{
				ID:         uuid.NewString(),
				Source:     src,
				Text:       strings.Join(args, " "),
				ReplyToken: "cli",
				Timestamp:  time.Now(),
			})

			fmt.Fprintf(cmd.ErrOrStderr(), "\n[session=%s outcome=%s]\n", out.SessionID, out.Kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "cli", "user (or group) id the conversation is kept under")
	cmd.Flags().BoolVar(&group, "group", false, "treat --session as a group id")

	return cmd
}
