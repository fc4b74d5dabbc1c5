package cli

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hemv/internal/history"
	"github.com/felixgeelhaar/hemv/internal/runtime"
	"github.com/felixgeelhaar/hemv/internal/ui/tui"
)

func newBrowseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse a history interactively",
		Long: `Opens a full-screen view of the history. Type commands such as
"expand @0 1", "collapse 2024-01-02", "search! red cup" or "history outline";
esc or q quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			tools := runtime.NewToolRegistry()
			if err := api.Register(tools); err != nil {
				return err
			}
			b := tui.NewBrowser(ctx, filepath.Base(path), tools)
			if _, err := tea.NewProgram(b, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("browser failed: %w", err)
			}
			return nil
		},
	}
}

func newRenderCmd(opts *options) *cobra.Command {
	var (
		pathFlag string
		expand   []string
		style    string
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print a history view",
		Example: `  hemv render -H kitchen.yaml
  hemv render -H kitchen.yaml --path 0 --expand 0 --expand 2 --style outline
  hemv render -H kitchen.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := parsePath(pathFlag)
			if err != nil {
				return err
			}
			var filter any
			if len(expand) > 0 {
				if filter, err = filterArg(expand); err != nil {
					return err
				}
			}

			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			renderOnce := func() error {
				api, _, closeEmb, err := e.newAPI(ctx, nil)
				if err != nil {
					return err
				}
				defer closeEmb()

				if filter != nil {
					if _, err := callTool(ctx, api, runtime.ToolExpand, map[string]any{"path": path, "filter": filter}); err != nil {
						return err
					}
				}
				out, err := callTool(ctx, api, runtime.ToolHistory, map[string]any{"path": path, "style": style})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}

			if err := renderOnce(); err != nil || !watch {
				return err
			}

			file, err := e.historyFile()
			if err != nil {
				return err
			}
			changes, err := history.Watch(ctx, file, history.DefaultDebounce, func(err error) {
				e.obs.Log().Warn().Str("history", file).Err(err).Msg("file watcher error")
			})
			if err != nil {
				return err
			}
			for range changes {
				fmt.Fprintln(cmd.OutOrStdout(), "---")
				if err := renderOnce(); err != nil {
					e.obs.Log().Error().Str("history", file).Err(err).Msg("failed to render changed history")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Node to show, as child indices separated by slashes (e.g. 0/-1)")
	cmd.Flags().StringArrayVarP(&expand, "expand", "e", nil, "Expand the children selected by an index, date or timestamp; give twice for a range")
	cmd.Flags().StringVarP(&style, "style", "s", "default", "Layout: default, verbose or outline")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Render again whenever the history file changes")
	return cmd
}

func newSearchCmd(opts *options) *cobra.Command {
	var (
		pathFlag   string
		closeMatch bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Expand the parts of a history relevant to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := parsePath(pathFlag)
			if err != nil {
				return err
			}

			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			api, _, closeEmb, err := e.newAPI(ctx, nil)
			if err != nil {
				return err
			}
			defer closeEmb()

			out, err := callTool(ctx, api, runtime.ToolSearch, map[string]any{
				"path":        path,
				"query":       joinArgs(args),
				"close_match": closeMatch,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Node to search below, as child indices separated by slashes")
	cmd.Flags().BoolVar(&closeMatch, "close-match", false, "Only report genuinely close matches")
	return cmd
}
