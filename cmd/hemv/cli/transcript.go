package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTranscriptCmd(opts *options) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "transcript <session-id>",
		Short: "Show the tool calls an ask session made",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			sess, err := e.store.GetSession(args[0])
			if err != nil {
				return err
			}
			turns, err := e.store.ListTurns(sess.ID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Session:  %s (%s)\n", sess.ID, sess.Status)
			fmt.Fprintf(w, "Started:  %s\n", sess.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "Question: %s\n", sess.Question)
			if sess.Answer != "" {
				fmt.Fprintf(w, "Answer:   %s\n", sess.Answer)
			}
			for _, t := range turns {
				fmt.Fprintf(w, "\n[%d] %s %s\n", t.Step, t.Tool, t.Args)
				if full {
					fmt.Fprintln(w, t.Output)
				} else {
					fmt.Fprintln(w, firstLine(t.Output))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Print complete tool outputs")
	return cmd
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
