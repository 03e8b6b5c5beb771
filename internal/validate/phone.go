package validate

import (
	"github.com/nyaruka/phonenumbers"
)

// PhoneValidator validates phone numbers. Format checks are free;
// carrier lookup leans on the embedded numbering metadata.
type PhoneValidator struct {
	DefaultCountry string
}

// NewPhoneValidator returns a validator parsing bare numbers against
// the given country, defaulting to IT.
func NewPhoneValidator(country string) *PhoneValidator {
	if country == "" {
		country = "IT"
	}
	return &PhoneValidator{DefaultCountry: country}
}

// ValidateFormat parses and checks a phone number. A fully valid
// number scores 0.9, a merely possible one 0.5, anything else 0.1.
func (v *PhoneValidator) ValidateFormat(phone, country string) Result {
	if country == "" {
		country = v.DefaultCountry
	}
	parsed, err := phonenumbers.Parse(phone, country)
	if err != nil {
		return Result{Details: map[string]any{}, Error: err.Error()}
	}

	isValid := phonenumbers.IsValidNumber(parsed)
	isPossible := phonenumbers.IsPossibleNumber(parsed)

	confidence := 0.1
	if isValid {
		confidence = 0.9
	} else if isPossible {
		confidence = 0.5
	}

	return Result{
		IsValid:    isValid,
		Confidence: confidence,
		Details: map[string]any{
			"e164":          phonenumbers.Format(parsed, phonenumbers.E164),
			"international": phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL),
			"national":      phonenumbers.Format(parsed, phonenumbers.NATIONAL),
			"country_code":  int(parsed.GetCountryCode()),
			"number_type":   typeName(phonenumbers.GetNumberType(parsed)),
			"carrier":       carrierName(parsed),
			"is_possible":   isPossible,
		},
	}
}

// ValidateCarrier runs the format check and then confirms the number
// against carrier metadata. Carrier-verified numbers score 0.95,
// valid numbers without a known carrier 0.8.
func (v *PhoneValidator) ValidateCarrier(phone, country string) Result {
	result := v.ValidateFormat(phone, country)
	if !result.IsValid {
		return result
	}

	name, _ := result.Details["carrier"].(string)
	verified := name != ""
	result.Details["carrier_verified"] = verified

	if verified {
		result.Confidence = 0.95
	} else {
		result.Confidence = 0.8
	}
	return result
}

func carrierName(num *phonenumbers.PhoneNumber) string {
	name, err := phonenumbers.GetCarrierForNumber(num, "en")
	if err != nil {
		return ""
	}
	return name
}

func typeName(t phonenumbers.PhoneNumberType) string {
	switch t {
	case phonenumbers.FIXED_LINE:
		return "landline"
	case phonenumbers.MOBILE:
		return "mobile"
	case phonenumbers.FIXED_LINE_OR_MOBILE:
		return "landline_or_mobile"
	case phonenumbers.TOLL_FREE:
		return "toll_free"
	case phonenumbers.PREMIUM_RATE:
		return "premium_rate"
	case phonenumbers.SHARED_COST:
		return "shared_cost"
	case phonenumbers.VOIP:
		return "voip"
	case phonenumbers.PERSONAL_NUMBER:
		return "personal"
	case phonenumbers.PAGER:
		return "pager"
	case phonenumbers.UAN:
		return "uan"
	case phonenumbers.VOICEMAIL:
		return "voicemail"
	default:
		return "unknown"
	}
}
