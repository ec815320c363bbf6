package models

import "time"

type Brand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductVariant is one purchasable configuration of a product
// (storage/ram/color combination with its own price and stock).
type ProductVariant struct {
	Storage int    `json:"storage"` // MB-equivalent, GB values stored as-is, TB pre-multiplied
	RAM     int    `json:"ram,omitempty"`
	Color   string `json:"color,omitempty"`
	Price   int64  `json:"price,omitempty"`
	Stock   int    `json:"stock,omitempty"`
}

// CatalogProduct is the catalog's view of a product. The search engine only
// reads these; the transient relevance score lives on ScoredProduct.
type CatalogProduct struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Price       int64            `json:"price"`
	Stock       int              `json:"stock"`
	Rating      float64          `json:"rating"`
	Sold        int              `json:"sold"`
	Brand       *Brand           `json:"brand,omitempty"`
	Storage     int              `json:"storage,omitempty"`
	RAM         int              `json:"ram,omitempty"`
	Battery     int              `json:"battery,omitempty"`
	Chipset     string           `json:"chipset,omitempty"`
	CameraRear  string           `json:"camera_rear,omitempty"`
	CameraFront string           `json:"camera_front,omitempty"`
	Variants    []ProductVariant `json:"variants,omitempty"`
	CreatedAt   time.Time        `json:"created_at,omitempty"`

	// Details holds rich document fields hydrated from the document store
	// (images, long-form descriptions). Empty unless hydration was requested.
	Details map[string]any `json:"details,omitempty"`
}

// ScoredProduct attaches a relevance score to a catalog product for the
// lifetime of one search response.
type ScoredProduct struct {
	CatalogProduct
	Score float64 `json:"score"`
}
