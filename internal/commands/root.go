package commands

import (
	"github.com/spf13/cobra"

	"branch-ledger/internal/config"
)

type rootOptions struct {
	configPath string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Branch-scoped account ledger service",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newMigrateCommand(opts))
	rootCmd.AddCommand(newSeedCommand(opts))
	rootCmd.AddCommand(newReconcileCommand(opts))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}
