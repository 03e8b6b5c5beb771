package main

import (
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List registered lead sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := buildSources(cfg)
		return printJSON(cmd.OutOrStdout(), mgr.Statistics())
	},
}

var sourcesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every registered source",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := buildSources(cfg)
		health := mgr.HealthCheckAll(cmd.Context())
		return printJSON(cmd.OutOrStdout(), health)
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesCheckCmd)
	rootCmd.AddCommand(sourcesCmd)
}
