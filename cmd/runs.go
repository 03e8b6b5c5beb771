package main

import (
	"github.com/spf13/cobra"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/store"
)

var (
	runsSearchID string
	runsStatus   string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{
			SearchID: runsSearchID,
			Status:   model.RunStatus(runsStatus),
			Limit:    runsLimit,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), runs)
	},
}

var searchesCmd = &cobra.Command{
	Use:   "searches",
	Short: "List stored searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		searches, err := st.ListSearches(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), searches)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsSearchID, "search-id", "", "only runs for this search")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "only runs with this status")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 0, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(searchesCmd)
}
