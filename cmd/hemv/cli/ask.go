package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hemv/internal/guard"
	"github.com/felixgeelhaar/hemv/internal/provider"
	"github.com/felixgeelhaar/hemv/internal/runtime"
	"github.com/felixgeelhaar/hemv/internal/ui"
	"github.com/felixgeelhaar/hemv/internal/ui/tui"
)

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

func newAskCmd(opts *options) *cobra.Command {
	var (
		providerName string
		model        string
		interactive  bool
		format       string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Let a model answer a question by browsing the history",
		Example: `  hemv ask -H kitchen.yaml "Where did I put the red cup?"
  hemv ask -H kitchen.yaml --provider ollama --model llama3.1 -i "What did we cook?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (use text or json)", format)
			}

			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			api, path, closeEmb, err := e.newAPI(ctx, nil)
			if err != nil {
				return err
			}
			defer closeEmb()

			p, closeP, err := provider.New(ctx, e.providerSettings(providerName, model))
			if err != nil {
				return fmt.Errorf("failed to initialize provider: %w", err)
			}
			defer closeP()

			rt := runtime.New(e.store, guard.New(e.cfg.Guard), e.obs, p)
			if opts.verbose {
				rt.Events().Subscribe(func(ev runtime.Event) {
					e.obs.Log().Debug().
						Str("sessionID", ev.SessionID).
						Int("step", ev.Step).
						Str("tool", ev.Tool).
						Str("text", ev.Text).
						Msg(string(ev.Type))
				}, runtime.EventToolCallEnd, runtime.EventHint, runtime.EventGuardViolation)
			}
			question := joinArgs(args)
			metadata := map[string]string{"history": path, "provider": p.Name()}

			var res *runtime.Result
			if interactive {
				res, err = askInteractive(ctx, rt, api, question, metadata, e.cfg.Guard.MaxSteps)
			} else {
				if format == "text" {
					rt.SetUI(ui.NewConsole(cmd.ErrOrStderr()))
				}
				res, err = rt.Ask(ctx, api, question, metadata)
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "Model provider: "+strings.Join(provider.Names, ", "))
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name (default depends on provider)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Show progress in a full-screen view")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")
	return cmd
}

func askInteractive(ctx context.Context, rt *runtime.Runtime, api *runtime.API, question string, metadata map[string]string, maxSteps int) (*runtime.Result, error) {
	program := tea.NewProgram(tui.NewModel("hemv ask", maxSteps), tea.WithContext(ctx))
	rt.SetUI(tui.NewTUI(program))

	var (
		res    *runtime.Result
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, runErr = rt.Ask(ctx, api, question, metadata)
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return nil, fmt.Errorf("progress view failed: %w", err)
	}
	<-done
	return res, runErr
}

func printResult(w io.Writer, res *runtime.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if !res.Answered {
		fmt.Fprintln(w, "No answer.")
		return nil
	}
	fmt.Fprintf(w, "Answer: %s\n", res.Answer.Text)
	if res.Answer.Reasoning != "" {
		fmt.Fprintf(w, "Reasoning: %s\n", res.Answer.Reasoning)
	}
	fmt.Fprintf(w, "(%d steps, %d tokens, session %s)\n", res.Steps, res.Usage.TotalTokens, res.SessionID)
	return nil
}
