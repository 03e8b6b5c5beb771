package main

import (
	"github.com/spf13/cobra"

	"github.com/leadforge/leadgen-cli/internal/quality"
)

var (
	estimateTarget   int
	estimateTier     string
	estimateCountry  string
	estimateCategory string
	estimateCity     string
	estimateRegion   string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate volume, time and cost for a search before running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		tier := estimateTier
		if tier == "" {
			tier = cfg.Pipeline.DefaultTier
		}
		country := estimateCountry
		if country == "" {
			country = cfg.Sources.DefaultCountry
		}

		est := quality.EstimateSearch(quality.EstimateRequest{
			TargetCount: estimateTarget,
			Tier:        quality.Tier(tier),
			Country:     country,
			Category:    estimateCategory,
			City:        estimateCity,
			Region:      estimateRegion,
		})
		return printJSON(cmd.OutOrStdout(), est)
	},
}

func init() {
	estimateCmd.Flags().IntVar(&estimateTarget, "target", 20, "number of leads wanted")
	estimateCmd.Flags().StringVar(&estimateTier, "tier", "", "quality tier: basic, standard or premium")
	estimateCmd.Flags().StringVar(&estimateCountry, "country", "", "ISO country code (default from config)")
	estimateCmd.Flags().StringVar(&estimateCategory, "category", "", "business category")
	estimateCmd.Flags().StringVar(&estimateCity, "city", "", "city to search")
	estimateCmd.Flags().StringVar(&estimateRegion, "region", "", "region to search")
	rootCmd.AddCommand(estimateCmd)
}
