package search

import (
	"sort"
	"strings"

	"github.com/quang1403/ecommerce-backend/internal/models"
)

// Additive relevance weights. The contributions are independent, so check
// order does not affect the total.
const (
	scoreFullQuery      = 150
	scoreModel          = 120
	scoreVariant        = 60
	scoreStorage        = 100
	scoreVariantStorage = 80
	scoreBrand          = 70
	scoreModelPhrase    = 30
	scoreInStock        = 20
	ratingWeight        = 5
	soldDivisor         = 50
	soldCap             = 40
)

// Score ranks candidates by the fixed multi-signal point model and returns
// them sorted descending. The sort is stable, so ties keep catalog iteration
// order and identical inputs always produce identical orderings.
func Score(products []models.CatalogProduct, rawQuery string, info *models.ExtractedInfo) []models.ScoredProduct {
	q := strings.ToLower(rawQuery)
	if info == nil {
		info = &models.ExtractedInfo{}
	}

	scored := make([]models.ScoredProduct, 0, len(products))
	for _, p := range products {
		name := strings.ToLower(p.Name)
		score := 0.0

		if len(q) > 2 && strings.Contains(name, q) {
			score += scoreFullQuery
		}
		if info.Model != "" && strings.Contains(name, strings.ToLower(info.Model)) {
			score += scoreModel
		}
		if info.Variant != "" && strings.Contains(name, strings.ToLower(info.Variant)) {
			score += scoreVariant
		}
		if info.Storage > 0 && p.Storage == info.Storage {
			score += scoreStorage
		}
		if info.Storage > 0 {
			for _, v := range p.Variants {
				if v.Storage == info.Storage {
					score += scoreVariantStorage
					break
				}
			}
		}
		if info.Brand != "" && p.Brand != nil &&
			strings.Contains(strings.ToLower(p.Brand.Name), strings.ToLower(info.Brand)) {
			score += scoreBrand
		}

		if info.Model != "" {
			tokens := strings.Fields(strings.ToLower(info.Model))
			if len(tokens) > 0 && strings.Contains(name, strings.Join(tokens, " ")) {
				score += scoreModelPhrase
			}
		}

		score += p.Rating * ratingWeight
		if boost := float64(p.Sold) / soldDivisor; boost < soldCap {
			score += boost
		} else {
			score += soldCap
		}
		if p.Stock > 0 {
			score += scoreInStock
		}

		scored = append(scored, models.ScoredProduct{CatalogProduct: p, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
