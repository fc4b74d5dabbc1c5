package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hemv/internal/credential"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stored settings such as API keys",
	}

	setCmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a value; keys ending in api_key, token or secret are encrypted",
		Long: `Stores a value in the hemv database. Without a value on the command
line it is asked for, hidden when the key holds a secret.`,
		Example: "  hemv config set openai.api_key sk-...\n  hemv config set gemini.api_key",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			var value string
			if len(args) == 2 {
				value = args[1]
			} else if err := promptValue(key, &value); err != nil {
				return err
			}

			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.vault.Set(key, value); err != nil {
				return fmt.Errorf("failed to set config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", key)
			return nil
		},
	}

	var reveal bool
	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()

			val, err := e.vault.Get(args[0])
			if err != nil {
				return err
			}
			switch {
			case val == "":
				fmt.Fprintln(cmd.OutOrStdout(), "(not set)")
			case credential.IsSecretKey(args[0]) && !reveal:
				fmt.Fprintln(cmd.OutOrStdout(), credential.MaskSecret(val))
			default:
				fmt.Fprintln(cmd.OutOrStdout(), val)
			}
			return nil
		},
	}
	getCmd.Flags().BoolVar(&reveal, "reveal", false, "Print secrets in full")

	cmd.AddCommand(setCmd, getCmd)
	return cmd
}

func promptValue(key string, value *string) error {
	input := huh.NewInput().
		Title(key).
		Value(value).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("a value is required")
			}
			return nil
		})
	if credential.IsSecretKey(key) {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if err := input.Run(); err != nil {
		return fmt.Errorf("failed to read value for %s: %w", key, err)
	}
	return nil
}
