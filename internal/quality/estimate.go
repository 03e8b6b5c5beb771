package quality

import (
	"fmt"
	"math"
	"strings"
)

// marketSizes holds approximate business counts per country and
// category, used to bound estimates for a search.
var marketSizes = map[string]map[string]int{
	// Germany, ~3.7M businesses
	"DE": {
		"dentist": 65000, "dental clinic": 65000,
		"doctor": 150000, "medical practice": 150000,
		"pharmacy": 19000, "restaurant": 220000, "hotel": 50000,
		"lawyer": 165000, "law firm": 165000, "accountant": 95000,
		"architect": 45000, "hairdresser": 80000,
		"gym": 10000, "fitness center": 10000,
		"plumber": 50000, "electrician": 55000,
		"default": 50000,
	},
	// Austria, ~600K businesses
	"AT": {
		"dentist": 5500, "dental clinic": 5500,
		"doctor": 18000, "medical practice": 18000,
		"pharmacy": 1400, "restaurant": 35000, "hotel": 15000,
		"lawyer": 6500, "law firm": 6500, "accountant": 8500,
		"architect": 4000, "hairdresser": 8000, "gym": 1500,
		"plumber": 5000, "electrician": 6000,
		"default": 5000,
	},
	// Switzerland, ~600K businesses
	"CH": {
		"dentist": 4500, "dental clinic": 4500,
		"doctor": 20000, "medical practice": 20000,
		"pharmacy": 1800, "restaurant": 25000, "hotel": 5500,
		"lawyer": 11000, "law firm": 11000, "accountant": 7000,
		"architect": 3500, "hairdresser": 6000, "gym": 1200,
		"plumber": 4000, "electrician": 5000,
		"default": 4000,
	},
	// Italy, ~4.4M businesses
	"IT": {
		"dentist": 60000, "dental clinic": 60000,
		"doctor": 240000, "medical practice": 240000,
		"pharmacy": 19000, "restaurant": 330000, "hotel": 33000,
		"lawyer": 250000, "law firm": 250000, "accountant": 120000,
		"architect": 155000, "hairdresser": 95000, "gym": 7000,
		"plumber": 35000, "electrician": 45000,
		"default": 50000,
	},
	// France, ~4.5M businesses
	"FR": {
		"dentist": 43000, "dental clinic": 43000,
		"doctor": 230000, "medical practice": 230000,
		"pharmacy": 21000, "restaurant": 175000, "hotel": 30000,
		"lawyer": 70000, "law firm": 70000, "accountant": 21000,
		"architect": 30000, "hairdresser": 85000, "gym": 4500,
		"plumber": 40000, "electrician": 50000,
		"default": 40000,
	},
	"default": {
		"dentist": 10000, "dental clinic": 10000,
		"doctor": 50000, "restaurant": 50000, "hotel": 10000,
		"lawyer": 20000,
		"default": 10000,
	},
}

// majorCities get a larger share of their country's market when a
// search is scoped to a single city.
var majorCities = map[string]struct{}{
	"berlin": {}, "hamburg": {}, "münchen": {}, "köln": {}, "frankfurt": {},
	"wien": {}, "zürich": {}, "genf": {}, "basel": {}, "milano": {},
	"roma": {}, "paris": {}, "lyon": {}, "marseille": {},
}

// EstimateRequest describes the search to estimate.
type EstimateRequest struct {
	TargetCount int
	Tier        Tier
	Country     string
	Countries   []string
	Category    string
	City        string
	Region      string
}

// Estimate is what a search is expected to return and cost.
type Estimate struct {
	TargetCount        int     `json:"target_count"`
	Tier               Tier    `json:"tier"`
	EstimatedResults   int     `json:"estimated_results"`
	EstimatedAvailable int     `json:"estimated_available"`
	EstimatedSeconds   int     `json:"estimated_time_seconds"`
	TimeDisplay        string  `json:"estimated_time_display"`
	EstimatedCost      float64 `json:"estimated_cost_credits"`
	CostPerLead        float64 `json:"cost_per_lead"`
	SourcesToUse       int     `json:"sources_to_use"`
}

// EstimateSearch predicts lead volume, runtime and cost for a search
// before running it. The tier's time multiplier and per-lead cost
// drive the numbers; market size caps how many leads can come back.
func EstimateSearch(req EstimateRequest) Estimate {
	cfg := ConfigForTier(req.Tier)

	available := estimateMarketSize(req)
	collect := req.TargetCount
	if collect > available {
		collect = available
	}

	sources := cfg.MaxSources
	if sources == 0 {
		sources = 5
	}

	// One minute per hundred leads at the basic tier.
	seconds := float64(collect) / 100 * 60 * cfg.TimeMultiplier
	if seconds < 30 {
		seconds = 30
	}

	cost := math.Round(float64(collect)*cfg.CostPerLead*100) / 100

	return Estimate{
		TargetCount:        req.TargetCount,
		Tier:               cfg.Tier,
		EstimatedResults:   collect,
		EstimatedAvailable: available,
		EstimatedSeconds:   int(seconds),
		TimeDisplay:        formatDuration(int(seconds)),
		EstimatedCost:      cost,
		CostPerLead:        cfg.CostPerLead,
		SourcesToUse:       sources,
	}
}

func estimateMarketSize(req EstimateRequest) int {
	countries := append([]string{}, req.Countries...)
	if req.Country != "" && !containsString(countries, req.Country) {
		countries = append(countries, req.Country)
	}
	if len(countries) == 0 {
		countries = []string{"IT"}
	}

	total := 0
	for _, country := range countries {
		countryData, ok := marketSizes[country]
		if !ok {
			countryData = marketSizes["default"]
		}
		count := countryData["default"]
		if req.Category != "" {
			if n, ok := countryData[strings.ToLower(req.Category)]; ok {
				count = n
			}
		}
		if count == 0 {
			count = 10000
		}
		total += count
	}

	switch {
	case req.City != "":
		if _, major := majorCities[strings.ToLower(req.City)]; major {
			total = int(float64(total) * 0.08)
		} else {
			total = int(float64(total) * 0.02)
		}
	case req.Region != "":
		total = int(float64(total) * 0.10)
	}

	if total < 100 {
		total = 100
	}
	return total
}

func formatDuration(seconds int) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%d secondi", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%d minuti", seconds/60)
	default:
		return fmt.Sprintf("%d ore %d minuti", seconds/3600, (seconds%3600)/60)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
