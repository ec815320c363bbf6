package models

import "time"

type ProductType int

const (
	TypePhone ProductType = iota
	TypeTablet
	TypeAccessory
)

func (t ProductType) String() string {
	switch t {
	case TypePhone:
		return "phone"
	case TypeTablet:
		return "tablet"
	case TypeAccessory:
		return "accessory"
	default:
		return "unknown"
	}
}

// ExtractedInfo is the structured attribute set guessed from one query.
// Zero values mean "not detected". Built once per search and never mutated
// afterwards.
type ExtractedInfo struct {
	Brand   string      `json:"brand,omitempty"`
	Model   string      `json:"model,omitempty"`
	Variant string      `json:"variant,omitempty"`
	Storage int         `json:"storage,omitempty"` // GB, TB converted ×1024
	Type    ProductType `json:"type"`
}

// PatternClause is one case-insensitive regex clause against a text field.
// Pattern sources have all user-derived fragments escaped before composition.
type PatternClause struct {
	Field   string // "name" or "description"
	Pattern string
}

// SearchCriteria is the predicate one strategy attempt runs against the
// catalog: pattern clauses joined by OR, ANDed with the optional storage
// equality. Empty criteria mean "do not query", not "match everything".
type SearchCriteria struct {
	Or      []PatternClause
	Storage int // 0 = no storage constraint
}

func (c *SearchCriteria) Empty() bool {
	return c == nil || (len(c.Or) == 0 && c.Storage == 0)
}

// FeatureFilters are the coarse numeric filters the feature-based strategy
// derives from detected feature keywords.
type FeatureFilters struct {
	MaxPrice       int64
	MinPrice       int64
	MinRAM         int
	ChipsetPattern string // case-insensitive regex, empty = unset
	RequireCamera  bool
	SortByRating   bool
}

func (f *FeatureFilters) Empty() bool {
	return f == nil || (f.MaxPrice == 0 && f.MinPrice == 0 && f.MinRAM == 0 &&
		f.ChipsetPattern == "" && !f.RequireCamera)
}

// StrategyResult is what a single cascade strategy reports back.
// Success=false means "declined, try the next one".
type StrategyResult struct {
	Success       bool
	Products      []ScoredProduct
	Strategy      string
	ExtractedInfo *ExtractedInfo
	Features      []string
	Message       string
}

type SearchInfo struct {
	OriginalQuery string         `json:"original_query"`
	Strategy      string         `json:"strategy"`
	ExtractedInfo *ExtractedInfo `json:"extracted_info,omitempty"`
	Features      []string       `json:"features,omitempty"`
	ResultCount   int            `json:"result_count"`
}

// SearchResult is the caller-facing envelope. Success=false with non-empty
// Products is the fallback-suggestions state and must stay distinguishable
// from Success=false with empty Products and a non-empty Error (the search
// subsystem itself failed).
type SearchResult struct {
	Success    bool            `json:"success"`
	Products   []ScoredProduct `json:"products"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	SearchInfo SearchInfo      `json:"search_info"`
	TookMs     int64           `json:"took_ms,omitempty"`
	CacheHit   bool            `json:"cache_hit,omitempty"`
	Stale      bool            `json:"stale,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
}

// ChangeEvent is a catalog change notification consumed by the indexing
// pipeline.
type ChangeEvent struct {
	Type      string         `json:"type"` // CREATE, UPDATE, DELETE
	ProductID string         `json:"product_id"`
	Product   map[string]any `json:"product,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Version   int64          `json:"version"`
}

// IndexAction is one buffered Elasticsearch bulk operation.
type IndexAction struct {
	Action    string         `json:"action"` // index, delete
	Index     string         `json:"index"`
	ID        string         `json:"id"`
	Body      map[string]any `json:"body,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AnalyticsEvent records query performance for the analytics store.
type AnalyticsEvent struct {
	EventType  string    `json:"event_type"`
	QueryHash  string    `json:"query_hash"`
	Strategy   string    `json:"strategy"`
	DurationMs float64   `json:"duration_ms"`
	TotalHits  int64     `json:"total_hits"`
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id"`
}

// SearchEvent is published to Kafka after each search for downstream
// analytics consumers.
type SearchEvent struct {
	Query       string    `json:"query"`
	Strategy    string    `json:"strategy"`
	Success     bool      `json:"success"`
	ResultCount int       `json:"result_count"`
	DurationMs  int64     `json:"duration_ms"`
	RequestID   string    `json:"request_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
