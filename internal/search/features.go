package search

import (
	"strings"

	"github.com/quang1403/ecommerce-backend/internal/models"
)

// Feature keywords are matched by substring containment against the
// normalized query, so every keyword is stored diacritic-free. The list is
// ordered to keep the detected feature set deterministic.
type featureKeywords struct {
	name     string
	keywords []string
}

var featureTable = []featureKeywords{
	{"price", []string{"gia re", "re nhat", "gia thap", "tiet kiem", "binh dan", "budget", "duoi"}},
	{"premium", []string{"cao cap", "premium", "flagship", "dat", "pro", "max", "ultra"}},
	{"gaming", []string{"gaming", "game", "choi game", "hieu nang cao", "muot"}},
	{"camera", []string{"camera", "chup anh", "selfie", "quay video", "zoom"}},
	{"battery", []string{"pin", "battery", "sac", "dung luong pin", "pin trau"}},
	{"storage", []string{"bo nho", "storage", "gb", "tb", "dung luong"}},
	{"ram", []string{"ram", "memory"}},
}

// Coarse price bands for the feature-based strategy, in VND.
const (
	budgetPriceCeiling = 10_000_000
	premiumPriceFloor  = 15_000_000
	gamingMinRAM       = 8
)

// highEndChipsets matches flagship-class SoC names in product specs.
const highEndChipsets = `snapdragon\s*8|dimensity\s*[89]|exynos|a1[3-9]`

// ExtractFeatures returns the feature keywords detected in the query, in
// table order.
func ExtractFeatures(query string) []string {
	q := Normalize(query)
	var features []string
	for _, f := range featureTable {
		for _, kw := range f.keywords {
			if strings.Contains(q, kw) {
				features = append(features, f.name)
				break
			}
		}
	}
	return features
}

// BuildFeatureFilters maps detected features to catalog filters. Price
// sensitivity and premium intent set price bounds, gaming requires either
// enough RAM or a high-end chipset, camera queries require camera specs.
// Results are sorted by rating, not scored.
func BuildFeatureFilters(features []string) *models.FeatureFilters {
	filters := &models.FeatureFilters{SortByRating: true}
	for _, f := range features {
		switch f {
		case "price":
			filters.MaxPrice = budgetPriceCeiling
		case "premium":
			filters.MinPrice = premiumPriceFloor
		case "gaming":
			filters.MinRAM = gamingMinRAM
			filters.ChipsetPattern = highEndChipsets
		case "camera":
			filters.RequireCamera = true
		}
	}
	return filters
}
