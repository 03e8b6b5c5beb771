package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var postalCodePattern = regexp.MustCompile(`\b\d{5}\b`)

var majorItalianCities = map[string]struct{}{
	"milano": {}, "roma": {}, "torino": {}, "napoli": {}, "palermo": {},
	"genova": {}, "bologna": {}, "firenze": {}, "bari": {}, "catania": {},
	"venezia": {}, "verona": {}, "messina": {}, "padova": {}, "trieste": {},
	"brescia": {}, "parma": {}, "modena": {}, "reggio emilia": {}, "perugia": {},
}

var streetPrefixes = map[string]struct{}{
	"via": {}, "viale": {}, "corso": {}, "piazza": {},
}

var titleCaser = cases.Title(language.Und)

// Address is a parsed street address.
type Address struct {
	Line       string `json:"line,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country,omitempty"`
}

// AddressExtractor parses free-form address text.
type AddressExtractor struct {
	DefaultCountry string
}

// NewAddressExtractor returns an extractor that fills in country for
// addresses that do not carry one, defaulting to IT when empty.
func NewAddressExtractor(country string) *AddressExtractor {
	if country == "" {
		country = "IT"
	}
	return &AddressExtractor{DefaultCountry: country}
}

// ParseAddress extracts what it can from free-form address text.
func (a *AddressExtractor) ParseAddress(text string) Address {
	addr := Address{Country: a.DefaultCountry}
	if text == "" {
		return addr
	}
	addr.PostalCode = ExtractPostalCode(text)
	addr.City = a.ExtractCity(text)
	addr.Line = NormalizeAddress(text)
	return addr
}

// ExtractPostalCode returns the first five-digit postal code in text.
func ExtractPostalCode(text string) string {
	return postalCodePattern.FindString(text)
}

// ExtractCity finds a city name in text, preferring known major
// cities, then falling back to the first capitalized word that is not
// a street prefix.
func (a *AddressExtractor) ExtractCity(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for city := range majorItalianCities {
		if strings.Contains(lower, city) {
			return titleCaser.String(city)
		}
	}
	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		if len(runes) <= 3 || !isUpper(runes[0]) {
			continue
		}
		if _, skip := streetPrefixes[strings.ToLower(word)]; skip {
			continue
		}
		return word
	}
	return ""
}

// NormalizeAddress collapses whitespace and title-cases an address.
func NormalizeAddress(address string) string {
	if address == "" {
		return ""
	}
	return titleCaser.String(strings.Join(strings.Fields(address), " "))
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z' || r >= 'À' && r <= 'Þ'
}
