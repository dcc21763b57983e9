package main

import (
	"github.com/spf13/cobra"
	"github.com/valinor-ai/skillgate/internal/platform/config"
)

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "skillgatectl",
		Short:         "Operator tooling for the skillgate verification gateway",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the gateway config file")

	root.AddCommand(
		newVerifyCmd(opts),
		newTokenCmd(opts),
		newCacheCmd(opts),
	)
	return root
}
