package search

import (
	"regexp"
	"strings"

	"github.com/quang1403/ecommerce-backend/internal/models"
)

// appleNamePattern covers the short forms catalog names use for the Apple
// family, since a product may be listed as "Apple iPhone 15", "iPhone 15" or
// "iP 15".
const appleNamePattern = `(?:apple|iphone|ip)`

// escapeFragment is the single escaping point for user-derived text embedded
// in catalog patterns. Every criteria-building path must route fragments
// through it; composing a pattern from raw query text is a correctness and
// safety bug.
func escapeFragment(s string) string {
	return regexp.QuoteMeta(s)
}

// brandToken returns the pattern fragment used to match a brand inside a
// product name.
func brandToken(brand string) string {
	if strings.EqualFold(brand, "apple") {
		return appleNamePattern
	}
	return escapeFragment(strings.ToLower(brand))
}

// BuildCriteria turns extracted info into the catalog predicate for one
// strategy attempt: name clauses joined by OR, plus the storage equality as a
// hard AND constraint. Empty criteria signal "do not run a query".
func BuildCriteria(info *models.ExtractedInfo) *models.SearchCriteria {
	criteria := &models.SearchCriteria{}
	if info == nil {
		return criteria
	}

	switch {
	case info.Brand != "" && info.Model != "":
		b := brandToken(info.Brand)
		m := escapeFragment(strings.ToLower(info.Model))
		criteria.Or = append(criteria.Or,
			models.PatternClause{Field: "name", Pattern: b + `.*` + m},
			models.PatternClause{Field: "name", Pattern: m + `.*` + b},
			models.PatternClause{Field: "name", Pattern: `\b` + m + `\b`},
		)
	case info.Model != "":
		criteria.Or = append(criteria.Or,
			models.PatternClause{Field: "name", Pattern: escapeFragment(strings.ToLower(info.Model))})
	case info.Brand != "":
		criteria.Or = append(criteria.Or,
			models.PatternClause{Field: "name", Pattern: brandToken(info.Brand)})
	}

	if info.Variant != "" {
		criteria.Or = append(criteria.Or,
			models.PatternClause{Field: "name", Pattern: escapeFragment(strings.ToLower(info.Variant))})
	}

	if info.Storage > 0 {
		criteria.Storage = info.Storage
	}

	return criteria
}
