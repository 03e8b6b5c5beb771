package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runSearchID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline for a stored search",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Runner.Run(ctx, runSearchID)
		if err != nil {
			return err
		}

		zap.L().Info("run complete",
			zap.String("run_id", run.ID),
			zap.Int("delivered", run.Result.LeadsDelivered),
		)
		return printJSON(cmd.OutOrStdout(), run)
	},
}

func init() {
	runCmd.Flags().StringVar(&runSearchID, "search-id", "", "search to execute")
	runCmd.MarkFlagRequired("search-id")
	rootCmd.AddCommand(runCmd)
}
