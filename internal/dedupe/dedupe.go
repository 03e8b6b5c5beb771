// Package dedupe detects and merges duplicate leads coming back from
// multiple sources.
package dedupe

import (
	"sort"
	"strings"

	"github.com/leadforge/leadgen-cli/internal/extract"
	"github.com/leadforge/leadgen-cli/internal/model"
	"go.uber.org/zap"
)

// DefaultSourcePriority resolves merge conflicts. Earlier sources win.
var DefaultSourcePriority = []string{
	"google_places",
	"official_website",
	"business_directory",
	"nominatim",
}

// Deduplicator detects and merges duplicate lead records.
type Deduplicator struct {
	// SourcePriority overrides DefaultSourcePriority when non-empty.
	SourcePriority []string
}

// New returns a deduplicator with the default source priority.
func New() *Deduplicator {
	return &Deduplicator{}
}

// AreDuplicates reports whether two leads describe the same business.
// Any one signal suffices: same website domain, same phone, or same
// normalized name in the same city. The check is symmetric.
func (d *Deduplicator) AreDuplicates(a, b *model.Lead) bool {
	if a.Website != "" && b.Website != "" {
		domainA := extract.Domain(a.Website)
		domainB := extract.Domain(b.Website)
		if domainA != "" && domainA == domainB {
			return true
		}
	}

	if a.Phone != "" && a.Phone == b.Phone {
		return true
	}

	if a.Name != "" && b.Name != "" && a.City != "" && b.City != "" {
		normA := extract.NormalizeCompanyName(a.Name)
		normB := extract.NormalizeCompanyName(b.Name)
		if normA != "" && normA == normB && strings.EqualFold(a.City, b.City) {
			return true
		}
	}

	return false
}

// Merge folds other into base and returns the combined lead. Base
// values win unless they are empty or other comes from a higher
// priority source. Scores take the max of each side; keywords are the
// sorted union; both source names are kept in provenance.
func (d *Deduplicator) Merge(base, other *model.Lead) model.Lead {
	merged := *base
	merged.Keywords = append([]string(nil), base.Keywords...)
	merged.Sources = append([]string(nil), base.Sources...)

	useOther := d.priorityIndex(other.Source) < d.priorityIndex(base.Source)

	mergeField(&merged.Name, other.Name, useOther)
	mergeField(&merged.Website, other.Website, useOther)
	mergeField(&merged.Phone, other.Phone, useOther)
	mergeField(&merged.Email, other.Email, useOther)
	mergeField(&merged.Address, other.Address, useOther)
	mergeField(&merged.PostalCode, other.PostalCode, useOther)
	mergeField(&merged.City, other.City, useOther)
	mergeField(&merged.Region, other.Region, useOther)
	mergeField(&merged.Country, other.Country, useOther)
	mergeField(&merged.Category, other.Category, useOther)
	mergeField(&merged.Description, other.Description, useOther)

	if merged.Latitude == 0 && merged.Longitude == 0 {
		merged.Latitude = other.Latitude
		merged.Longitude = other.Longitude
	}

	merged.Keywords = unionKeywords(base.Keywords, other.Keywords)

	if other.Scores.Match > merged.Scores.Match {
		merged.Scores.Match = other.Scores.Match
	}
	if other.Scores.Confidence > merged.Scores.Confidence {
		merged.Scores.Confidence = other.Scores.Confidence
	}
	if other.Scores.Quality > merged.Scores.Quality {
		merged.Scores.Quality = other.Scores.Quality
	}

	merged.AddSource(base.Source)
	merged.AddSource(other.Source)
	for _, s := range other.Sources {
		merged.AddSource(s)
	}

	return merged
}

// Batch deduplicates a slice of leads, merging every duplicate pair.
// Duplicates are transitive through merged fields: once a record
// absorbs a phone number, later records with that phone fold into it
// too. Idempotent over its own output.
func (d *Deduplicator) Batch(leads []model.Lead) []model.Lead {
	if len(leads) == 0 {
		return nil
	}

	out := make([]model.Lead, 0, len(leads))
	absorbed := make([]bool, len(leads))

	for i := range leads {
		if absorbed[i] {
			continue
		}
		merged := leads[i]
		for j := i + 1; j < len(leads); j++ {
			if absorbed[j] {
				continue
			}
			if d.AreDuplicates(&merged, &leads[j]) {
				merged = d.Merge(&merged, &leads[j])
				absorbed[j] = true
			}
		}
		out = append(out, merged)
	}

	zap.L().Info("batch deduplicated",
		zap.Int("original", len(leads)),
		zap.Int("unique", len(out)),
		zap.Int("removed", len(leads)-len(out)))

	return out
}

func (d *Deduplicator) priorityIndex(source string) int {
	priority := d.SourcePriority
	if len(priority) == 0 {
		priority = DefaultSourcePriority
	}
	for i, s := range priority {
		if s == source {
			return i
		}
	}
	return len(priority) + 1
}

func mergeField(base *string, other string, useOther bool) {
	if *base == "" && other != "" {
		*base = other
		return
	}
	if *base != "" && other != "" && useOther {
		*base = other
	}
}

func unionKeywords(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, kw := range a {
		if kw != "" {
			set[kw] = struct{}{}
		}
	}
	for _, kw := range b {
		if kw != "" {
			set[kw] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for kw := range set {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}
