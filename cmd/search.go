package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/leadforge/leadgen-cli/internal/model"
)

var (
	searchName       string
	searchCategories []string
	searchCountry    string
	searchRegions    []string
	searchCities     []string
	searchKeywords   []string
	searchExclude    []string
	searchTarget     int
	searchTier       string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Create a search and run the pipeline in one shot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(searchCategories) == 0 {
			return eris.New("at least one --category is required")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.RunRequest{
			Categories:      searchCategories,
			Country:         searchCountry,
			Regions:         searchRegions,
			Cities:          searchCities,
			TargetLeads:     searchTarget,
			Tier:            searchTier,
			KeywordsInclude: searchKeywords,
			KeywordsExclude: searchExclude,
		}
		if req.Country == "" {
			req.Country = cfg.Sources.DefaultCountry
		}
		if req.Tier == "" {
			req.Tier = cfg.Pipeline.DefaultTier
		}

		name := searchName
		if name == "" {
			name = strings.Join(searchCategories, ", ") + " in " + req.Country
		}

		search, err := env.Store.CreateSearch(ctx, name, req)
		if err != nil {
			return eris.Wrap(err, "create search")
		}

		run, err := env.Runner.Run(ctx, search.ID)
		if err != nil {
			return err
		}

		companies, err := env.Store.TopCompanies(ctx, search.ID, run.Result.LeadsDelivered)
		if err != nil {
			return eris.Wrap(err, "load companies")
		}

		return printJSON(cmd.OutOrStdout(), struct {
			Search    *model.Search `json:"search"`
			Run       *model.Run    `json:"run"`
			Companies []model.Lead  `json:"companies"`
		}{search, run, companies})
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchName, "name", "", "search name (defaults to categories + country)")
	searchCmd.Flags().StringSliceVar(&searchCategories, "category", nil, "business category to search (repeatable)")
	searchCmd.Flags().StringVar(&searchCountry, "country", "", "ISO country code (default from config)")
	searchCmd.Flags().StringSliceVar(&searchRegions, "region", nil, "region to search (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchCities, "city", nil, "city to search (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchKeywords, "keyword", nil, "keyword a lead should match (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchExclude, "exclude-keyword", nil, "keyword that disqualifies a lead (repeatable)")
	searchCmd.Flags().IntVar(&searchTarget, "target", 20, "number of leads to deliver")
	searchCmd.Flags().StringVar(&searchTier, "tier", "", "quality tier: basic, standard or premium")
	rootCmd.AddCommand(searchCmd)
}
