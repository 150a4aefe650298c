package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/linegpt/internal/config"
	"github.com/soyeahso/linegpt/internal/line"
	"github.com/soyeahso/linegpt/internal/store"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the SQLite audit log",
	}
	cmd.AddCommand(newAuditListCmd())
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		user  string
		limit int
		width int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent request/response pairs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			db, err := store.Open(paths.DatabasePath(&cfg), log)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := store.NewAuditStore(db).List(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no audit entries")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tUSER\tMESSAGE\tRESPONSE")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					r.CreatedAt.Local().Format(time.DateTime), r.UserID,
					oneLine(r.Message, width), oneLine(r.Response, width))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "only entries for this user id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	cmd.Flags().IntVar(&width, "width", 40, "truncate message and response to this many characters")
	return cmd
}

// oneLine flattens newlines and truncates s to n characters.
func oneLine(s string, n int) string {
	flat := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		flat = append(flat, r)
	}
	if n > 0 {
		return line.Truncate(string(flat), n)
	}
	return string(flat)
}
