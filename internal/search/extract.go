package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/quang1403/ecommerce-backend/internal/models"
)

// vendorPatterns is an ordered association list: vendors are tried in
// declaration order and, within a vendor, patterns in listed order. The first
// match anywhere in the cascade wins. Group 1 captures the model, group 2 (if
// present) a variant qualifier.
type vendorPatterns struct {
	key      string
	patterns []*regexp.Regexp
}

var productPatterns = []vendorPatterns{
	{key: "iphone", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)iphone\s*(?:series\s*)?(\d{1,4})(?:\s*(pro\s*max|promax|prm|pmax|pm|pro|plus|mini|max))?`),
		regexp.MustCompile(`(?i)\bip\s*(\d{1,4})(?:\s*(pro\s*max|promax|prm|pmax|pm|pro|plus|mini|max))?`),
		regexp.MustCompile(`(?i)iphone\s*(pro\s*max|promax|prm|pmax|pm|pro|plus|mini|max)`),
		regexp.MustCompile(`(?i)iphone\s*(x[sr]?(?:\s*max)?)(?:\s*(max|pro))?`),
		regexp.MustCompile(`(?i)\bip\s*(x[sr]?(?:\s*max)?)`),
	}},
	{key: "samsung", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)samsung\s*(?:galaxy\s*)?([a-z]?\d{1,3}(?:\s*ultra|\s*plus|\s*note|\s*fe)?)`),
		regexp.MustCompile(`(?i)galaxy\s*([a-z]?\d{1,3}(?:\s*ultra|\s*plus|\s*note|\s*fe)?)`),
		regexp.MustCompile(`(?i)\b(?:samsung|sam)\b.*?(s\d{1,3}|note\s*\d{1,3}|j\d{1,3})`),
	}},
	{key: "xiaomi", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:xiaomi|redmi|poco)\s*(?:mi\s*)?([a-z]*\s*\d{1,4}(?:\s*(pro|plus|ultra|t|note))?)`),
		regexp.MustCompile(`(?i)(?:redmi|poco)\s*(note\s*\d{1,4}|\w*\d{1,4})`),
	}},
	{key: "oppo", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)oppo\s*([a-z]*\s*\d{1,4}(?:\s*(pro|plus|neo|f))?)`),
		regexp.MustCompile(`(?i)reno\s*(\d{1,4})`),
		regexp.MustCompile(`(?i)find\s*([nx]?\d{1,4})`),
	}},
	{key: "vivo", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)vivo\s*([a-z]*\s*\d{1,4}(?:\s*(pro|e|neo))?)`),
		regexp.MustCompile(`(?i)\bv\s*(\d{1,4}[a-z]?)\b`),
	}},
	{key: "realme", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)realme\s*(\w*\s*\d{1,4}(?:\s*(pro|neo|max))?)`),
	}},
}

// brandAliases maps query tokens to canonical brand names. Order matters for
// the substring fallback: the first alias found wins.
type brandAlias struct {
	alias string
	brand string
}

var brandAliases = []brandAlias{
	{"iphone", "Apple"},
	{"ipad", "Apple"},
	{"apple", "Apple"},
	{"samsung", "Samsung"},
	{"galaxy", "Samsung"},
	{"sam", "Samsung"},
	{"xiaomi", "Xiaomi"},
	{"redmi", "Xiaomi"},
	{"poco", "Xiaomi"},
	{"oppo", "Oppo"},
	{"reno", "Oppo"},
	{"find", "Oppo"},
	{"vivo", "Vivo"},
	{"realme", "Realme"},
	{"airpods", "Apple"},
}

func canonicalBrand(key string) string {
	for _, a := range brandAliases {
		if a.alias == key {
			return a.brand
		}
	}
	return key
}

// variantAliases folds shorthand variant spellings to canonical form.
var variantAliases = map[string]string{
	"prm":     "pro max",
	"pm":      "pro max",
	"pmax":    "pro max",
	"promax":  "pro max",
	"pro max": "pro max",
	"pro":     "pro",
	"plus":    "plus",
	"m":       "mini",
	"mini":    "mini",
	"max":     "max",
	"ultra":   "ultra",
	"t":       "t",
	"note":    "note",
	"neo":     "neo",
}

var (
	storagePattern     = regexp.MustCompile(`(?i)\b(\d{2,4})\s*(gb|tb)\b`)
	tabletPattern      = regexp.MustCompile(`(?i)\bipad\b`)
	tabletModelPattern = regexp.MustCompile(`(?i)ipad\s*(pro|air|mini)`)
	accessoryPattern   = regexp.MustCompile(`(?i)\btai\s*nghe\b|\bairpods\b|\bearbud\b|\bheadphone\b|\bearphone\b`)
	airpodsPattern     = regexp.MustCompile(`(?i)\bairpods\b`)
	seriesPattern      = regexp.MustCompile(`(?i)\b(series\s*\d+|series)\b`)
	variantScanPattern = regexp.MustCompile(`(?i)\b(pro\s*max|promax|pro|max|ultra|plus|mini|neo|t|note)\b`)
	simpleModelPattern = regexp.MustCompile(`(?i)\b([a-z]*\d{1,4}[a-z]*)\b`)
)

// simpleModelStoplist holds generic words the bare alphanumeric model
// heuristic must never treat as a model. Known to be incomplete; it is a
// tunable heuristic, not a guarantee.
var simpleModelStoplist = map[string]bool{
	"gia":  true,
	"mau":  true,
	"hien": true,
	"bao":  true,
}

// Extract derives brand/model/variant/storage/type from a normalized query.
// It never fails: anything it cannot detect stays a zero value, which
// downstream strategies treat as "insufficient signal".
func Extract(query string) *models.ExtractedInfo {
	q := Normalize(query)
	info := &models.ExtractedInfo{Type: models.TypePhone}

	// Storage first: a single numeric+unit token anywhere in the query.
	// First match wins.
	if m := storagePattern.FindStringSubmatch(q); m != nil {
		size, _ := strconv.Atoi(m[1])
		if strings.EqualFold(m[2], "tb") {
			size *= 1024
		}
		info.Storage = size
	}

	// Category short-circuits: tablets and audio accessories skip the
	// vendor cascade entirely.
	if tabletPattern.MatchString(q) {
		info.Type = models.TypeTablet
		info.Brand = "Apple"
		if m := tabletModelPattern.FindStringSubmatch(q); m != nil {
			info.Model = strings.ToLower(m[1])
		}
		return info
	}
	if accessoryPattern.MatchString(q) {
		info.Type = models.TypeAccessory
		if airpodsPattern.MatchString(q) {
			info.Brand = "Apple"
			info.Model = "airpods"
		}
		return info
	}

	// Vendor pattern cascade: first match anywhere wins, later vendors and
	// patterns are never tried.
	for _, vendor := range productPatterns {
		for _, pattern := range vendor.patterns {
			m := pattern.FindStringSubmatch(q)
			if m == nil {
				continue
			}
			info.Brand = canonicalBrand(vendor.key)

			candidate := strings.TrimSpace(m[0])
			if len(m) > 1 && m[1] != "" {
				candidate = strings.TrimSpace(m[1])
			}
			info.Model = strings.TrimSpace(seriesPattern.ReplaceAllString(candidate, ""))

			if len(m) > 2 && m[2] != "" {
				info.Variant = foldVariant(m[2])
			} else if v := variantScanPattern.FindStringSubmatch(candidate); v != nil {
				info.Variant = foldVariant(v[1])
			}
			return info
		}
	}

	// No cascade match: best-effort brand detection by alias containment,
	// then a bare alphanumeric token as a model guess.
	for _, a := range brandAliases {
		if strings.Contains(q, a.alias) {
			info.Brand = a.brand
			break
		}
	}

	for _, m := range simpleModelPattern.FindAllStringSubmatch(q, -1) {
		token := strings.ToLower(m[1])
		if simpleModelStoplist[token] || storagePattern.MatchString(token) {
			continue
		}
		info.Model = token
		break
	}

	return info
}

func foldVariant(v string) string {
	v = multiSpacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(v)), " ")
	if canonical, ok := variantAliases[v]; ok {
		return canonical
	}
	return v
}
