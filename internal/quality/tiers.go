// Package quality scores leads, assigns them to delivery tiers and
// estimates what a search will cost.
package quality

// Tier is a delivery quality level for lead data.
type Tier string

const (
	TierBasic    Tier = "basic"    // format-validated data
	TierStandard Tier = "standard" // MX and website verified
	TierPremium  Tier = "premium"  // fully verified, enriched
)

// TierFromScore maps a quality score in [0, 1] to its tier. Premium
// starts at 0.8, standard at 0.6, anything below is basic.
func TierFromScore(score float64) Tier {
	switch {
	case score >= 0.8:
		return TierPremium
	case score >= 0.6:
		return TierStandard
	default:
		return TierBasic
	}
}

// TierConfig describes the guarantees and cost profile of one tier.
type TierConfig struct {
	Tier     Tier    `json:"tier"`
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`

	// MinSources and MaxSources bound cross-source enrichment.
	// MaxSources 0 means use every available source.
	MinSources int `json:"min_sources"`
	MaxSources int `json:"max_sources"`

	ValidatePhoneFormat  bool `json:"validate_phone_format"`
	ValidatePhoneCarrier bool `json:"validate_phone_carrier"`
	ValidateEmailFormat  bool `json:"validate_email_format"`
	ValidateEmailMX      bool `json:"validate_email_mx"`
	ValidateEmailSMTP    bool `json:"validate_email_smtp"`
	ValidateWebsite      bool `json:"validate_website"`
	EnrichFromWebsite    bool `json:"enrich_from_website"`

	TimeMultiplier float64 `json:"time_multiplier"`
	CostPerLead    float64 `json:"cost_per_lead"` // EUR

	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

var tierConfigs = map[Tier]TierConfig{
	TierBasic: {
		Tier:                TierBasic,
		MinScore:            0.4,
		MaxScore:            0.59,
		MinSources:          1,
		MaxSources:          2,
		ValidatePhoneFormat: true,
		ValidateEmailFormat: true,
		TimeMultiplier:      1.0,
		CostPerLead:         0.05,
		DisplayName:         "Basic",
		Description:         "Dati base con validazione formato. Ideale per campagne di volume.",
	},
	TierStandard: {
		Tier:                TierStandard,
		MinScore:            0.6,
		MaxScore:            0.79,
		MinSources:          2,
		MaxSources:          4,
		ValidatePhoneFormat: true,
		ValidateEmailFormat: true,
		ValidateEmailMX:     true,
		ValidateWebsite:     true,
		EnrichFromWebsite:   true,
		TimeMultiplier:      2.0,
		CostPerLead:         0.12,
		DisplayName:         "Standard",
		Description:         "Dati verificati con controllo telefono e sito web. Qualità garantita.",
	},
	TierPremium: {
		Tier:                 TierPremium,
		MinScore:             0.8,
		MaxScore:             1.0,
		MinSources:           3,
		MaxSources:           0,
		ValidatePhoneFormat:  true,
		ValidatePhoneCarrier: true,
		ValidateEmailFormat:  true,
		ValidateEmailMX:      true,
		ValidateEmailSMTP:    true,
		ValidateWebsite:      true,
		EnrichFromWebsite:    true,
		TimeMultiplier:       4.0,
		CostPerLead:          0.25,
		DisplayName:          "Premium",
		Description:          "Dati completamente verificati con analisi sito web. Massima qualità.",
	},
}

// ConfigForTier returns the configuration of a tier. Unknown tiers
// fall back to basic.
func ConfigForTier(tier Tier) TierConfig {
	if cfg, ok := tierConfigs[tier]; ok {
		return cfg
	}
	return tierConfigs[TierBasic]
}

// ConfigForScore returns the tier configuration matching a quality
// score.
func ConfigForScore(score float64) TierConfig {
	return tierConfigs[TierFromScore(score)]
}

// AllTiers lists the tiers from cheapest to most thorough.
func AllTiers() []Tier {
	return []Tier{TierBasic, TierStandard, TierPremium}
}
