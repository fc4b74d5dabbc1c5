package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// options holds the flags shared by every command.
type options struct {
	configPath  string
	historyPath string
	hierarchy   string
	verbose     bool
	jsonLogs    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "hemv",
		Short: "Browse hierarchical episodic memory",
		Long: `hemv shows a hierarchy of event summaries as an expandable text view.
People browse it interactively; language models browse it through tools
to answer questions about what happened.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file (default ./hemv.yaml or ~/.hemv/hemv.yaml)")
	pf.StringVarP(&opts.historyPath, "history", "H", "", "History file (.yaml or .json); overrides the configured one")
	pf.StringVar(&opts.hierarchy, "hierarchy", "", "Hierarchy level: deep, predefined, predefined+ or none")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&opts.jsonLogs, "json", false, "Log as JSON")

	root.AddCommand(
		newBrowseCmd(opts),
		newRenderCmd(opts),
		newSearchCmd(opts),
		newAskCmd(opts),
		newTranscriptCmd(opts),
		newConfigCmd(opts),
		newEmbedPluginCmd(),
	)
	return root
}

// Execute runs the command line; an interrupt cancels the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
