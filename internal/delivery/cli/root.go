// Package cli is the command-line front end: it runs one search against the
// provider and prints the result.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the pricescout command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pricescout",
		Short: "PriceScout - compare product offers within a KSH price range",
		Long: `PriceScout queries a product search provider, converts USD prices to
Kenyan Shillings, keeps the offers inside your price range and can pick
the best one for you.`,
		SilenceUsage: true,
	}

	root.AddCommand(newSearchCommand())
	root.AddCommand(newVersionCommand())

	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
