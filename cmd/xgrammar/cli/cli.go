// Package cli assembles the xgrammar command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ricohasgit/xgrammar/convert"
)

// NewCLI builds the root xgrammar command.
func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xgrammar",
		Short: "Convert structural tag JSON documents into CFG grammars",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}

	var maxDepth int
	convertCmd := &cobra.Command{
		Use:   "convert <file.json>",
		Short: "Convert a structural tag JSON document into a grammar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			g, err := convert.StructuralTagToGrammarWithOptions(string(data), convert.Options{
				MaxRecursionDepth: maxDepth,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), g.String())
			return nil
		},
	}
	convertCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum recursion depth (0 selects the default)")

	rootCmd.AddCommand(convertCmd)
	return rootCmd
}
