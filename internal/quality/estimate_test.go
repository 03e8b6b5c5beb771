package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateSearch_Basic(t *testing.T) {
	est := EstimateSearch(EstimateRequest{
		TargetCount: 500,
		Tier:        TierBasic,
		Country:     "IT",
		Category:    "dentist",
	})

	assert.Equal(t, 500, est.EstimatedResults)
	assert.Equal(t, 60000, est.EstimatedAvailable)
	assert.Equal(t, 25.0, est.EstimatedCost) // 500 * 0.05
	assert.Equal(t, 300, est.EstimatedSeconds)
	assert.Equal(t, "5 minuti", est.TimeDisplay)
}

func TestEstimateSearch_PremiumCostsMore(t *testing.T) {
	basic := EstimateSearch(EstimateRequest{TargetCount: 100, Tier: TierBasic, Country: "IT"})
	premium := EstimateSearch(EstimateRequest{TargetCount: 100, Tier: TierPremium, Country: "IT"})

	assert.Greater(t, premium.EstimatedCost, basic.EstimatedCost)
	assert.Greater(t, premium.EstimatedSeconds, basic.EstimatedSeconds)
}

func TestEstimateSearch_CappedByMarket(t *testing.T) {
	est := EstimateSearch(EstimateRequest{
		TargetCount: 10000,
		Tier:        TierBasic,
		Country:     "AT",
		Category:    "pharmacy",
	})

	assert.Equal(t, 1400, est.EstimatedAvailable)
	assert.Equal(t, 1400, est.EstimatedResults)
}

func TestEstimateSearch_MinimumTime(t *testing.T) {
	est := EstimateSearch(EstimateRequest{TargetCount: 10, Tier: TierBasic, Country: "IT"})
	assert.Equal(t, 30, est.EstimatedSeconds)
	assert.Equal(t, "30 secondi", est.TimeDisplay)
}

func TestEstimateMarketSize_GeoFilters(t *testing.T) {
	country := estimateMarketSize(EstimateRequest{Country: "IT", Category: "restaurant"})
	major := estimateMarketSize(EstimateRequest{Country: "IT", Category: "restaurant", City: "Milano"})
	minor := estimateMarketSize(EstimateRequest{Country: "IT", Category: "restaurant", City: "Cuneo"})
	region := estimateMarketSize(EstimateRequest{Country: "IT", Category: "restaurant", Region: "Lombardia"})

	assert.Equal(t, 330000, country)
	assert.Equal(t, int(330000*0.08), major)
	assert.Equal(t, int(330000*0.02), minor)
	assert.Equal(t, 33000, region)
	assert.Greater(t, major, minor)
}

func TestEstimateMarketSize_Floor(t *testing.T) {
	got := estimateMarketSize(EstimateRequest{Country: "CH", Category: "gym", City: "Lugano"})
	assert.Equal(t, 100, got)
}

func TestEstimateMarketSize_MultiCountry(t *testing.T) {
	got := estimateMarketSize(EstimateRequest{
		Countries: []string{"DE", "AT"},
		Category:  "dentist",
	})
	assert.Equal(t, 65000+5500, got)
}

func TestEstimateMarketSize_UnknownCountryAndCategory(t *testing.T) {
	got := estimateMarketSize(EstimateRequest{Country: "US", Category: "space travel"})
	assert.Equal(t, 10000, got)
}
