package catalog

import (
	"context"

	"github.com/quang1403/ecommerce-backend/internal/models"
)

// Store is the read-only catalog capability the search engine runs against.
// Implementations must honor the criteria semantics exactly: pattern clauses
// are OR'd, the storage constraint is a hard AND, and result sets respect the
// given limit. The engine never mutates catalog records.
type Store interface {
	// FindByCriteria matches products whose name/description satisfy any of
	// the criteria's pattern clauses, filtered by the storage constraint when
	// set. Callers must not invoke it with empty criteria.
	FindByCriteria(ctx context.Context, criteria *models.SearchCriteria, limit int) ([]models.CatalogProduct, error)

	// FindByBrand matches products whose joined brand name contains the given
	// brand, case-insensitively.
	FindByBrand(ctx context.Context, brand string, limit int) ([]models.CatalogProduct, error)

	// FindByFilters applies coarse numeric filters (price bands, RAM/chipset,
	// camera presence), sorted by rating descending when requested.
	FindByFilters(ctx context.Context, filters *models.FeatureFilters, limit int) ([]models.CatalogProduct, error)

	// Popular returns the best-selling, highest-rated products.
	Popular(ctx context.Context, limit int) ([]models.CatalogProduct, error)
}
