package cli

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hemv/internal/embed"
)

// newEmbedPluginCmd serves the hashing embedder over the plugin protocol,
// so the plugin backend works out of the box: embedder.plugin can point at
// the hemv binary itself with args ["embed-plugin"].
func newEmbedPluginCmd() *cobra.Command {
	var dim int
	cmd := &cobra.Command{
		Use:    "embed-plugin",
		Short:  "Serve the built-in embedder as a plugin",
		Hidden: true,
		Args:   cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			embed.ServePlugin(embed.NewHashing(dim))
		},
	}
	cmd.Flags().IntVar(&dim, "dim", embed.DefaultHashingDim, "Vector dimension")
	return cmd
}
