package extract

import (
	"regexp"

	"github.com/nyaruka/phonenumbers"
)

// phonePatterns covers Italian mobile and landline formats plus
// generic international numbers with common separators.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+?39[\s\-]?3\d{2}[\s\-]?\d{6,7}`),
	regexp.MustCompile(`\+?39[\s\-]?0\d{1,3}[\s\-]?\d{6,8}`),
	regexp.MustCompile(`\+\d{1,3}[\s\-]?\d{2,4}[\s\-]?\d{6,10}`),
	regexp.MustCompile(`\d{2,4}[\s\-./]\d{6,10}`),
	regexp.MustCompile(`\(\d{2,4}\)[\s\-]?\d{6,10}`),
}

var phoneSeparators = regexp.MustCompile(`[\s\-.()/]`)

// PhoneExtractor extracts and normalizes phone numbers. Numbers
// without a country prefix are parsed against the default region.
type PhoneExtractor struct {
	DefaultRegion string
}

// NewPhoneExtractor returns an extractor for the given ISO region
// code, defaulting to IT when empty.
func NewPhoneExtractor(region string) *PhoneExtractor {
	if region == "" {
		region = "IT"
	}
	return &PhoneExtractor{DefaultRegion: region}
}

// ExtractFromText returns all valid phone numbers found in text, in
// E.164 format with duplicates removed.
func (p *PhoneExtractor) ExtractFromText(text string) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var phones []string
	for _, pattern := range phonePatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			normalized, ok := p.Normalize(match)
			if !ok {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			phones = append(phones, normalized)
		}
	}
	return phones
}

// Normalize parses a raw phone string and returns it in E.164 format.
// The second return value is false when the number does not parse or
// is not valid for its region.
func (p *PhoneExtractor) Normalize(phone string) (string, bool) {
	if phone == "" {
		return "", false
	}
	cleaned := phoneSeparators.ReplaceAllString(phone, "")
	parsed, err := phonenumbers.Parse(cleaned, p.DefaultRegion)
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", false
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), true
}

// IsValid reports whether phone normalizes to a valid number.
func (p *PhoneExtractor) IsValid(phone string) bool {
	_, ok := p.Normalize(phone)
	return ok
}

// NumberType classifies a phone number as mobile, fixed_line,
// fixed_or_mobile, toll_free, voip or unknown.
func (p *PhoneExtractor) NumberType(phone string) string {
	parsed, err := phonenumbers.Parse(phone, p.DefaultRegion)
	if err != nil {
		return ""
	}
	switch phonenumbers.GetNumberType(parsed) {
	case phonenumbers.MOBILE:
		return "mobile"
	case phonenumbers.FIXED_LINE:
		return "fixed_line"
	case phonenumbers.FIXED_LINE_OR_MOBILE:
		return "fixed_or_mobile"
	case phonenumbers.TOLL_FREE:
		return "toll_free"
	case phonenumbers.VOIP:
		return "voip"
	default:
		return "unknown"
	}
}
