package scanner

import (
	"net/url"
	"strings"

	"github.com/ternarybob/validation-engine/internal/model"
)

// notFoundTokens are platform-agnostic signals that a product page has been
// withdrawn, checked in addition to each platform's own sale-status
// mapping table.
var notFoundTokens = []string{
	"삭제된 상품",
	"상품 정보 없음",
	"_source=not_found",
}

// LooksNotFound reports whether body contains one of the generic
// not-found tokens. Platform scanners should check this in addition to
// their own DOM/JSON-specific detection (a 404 status code, a redirect
// away from the product-detail URL).
func LooksNotFound(body string) bool {
	for _, tok := range notFoundTokens {
		if strings.Contains(body, tok) {
			return true
		}
	}
	return false
}

// ResolveThumbnail turns a possibly-relative thumbnail URL into an absolute
// one against base, or returns "" if it can't be resolved. Mirrors the
// crawler package's link-resolution idiom in link_extractor.go.
func ResolveThumbnail(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.IsAbs() {
		return parsed.String()
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

// NormalizePrices enforces discounted_price <= original_price, collapsing a
// single-price listing (the site reports only one number) into both
// fields being equal.
func NormalizePrices(original, discounted int) (int, int) {
	if original < 0 {
		original = 0
	}
	if discounted < 0 {
		discounted = 0
	}
	if discounted == 0 && original > 0 {
		discounted = original
	}
	if original == 0 && discounted > 0 {
		original = discounted
	}
	if discounted > original {
		discounted = original
	}
	return original, discounted
}

// SaleStatusMap is a per-platform lookup from the site's raw status token
// to the canonical SaleStatus vocabulary. Every entry must be present at
// construction; Lookup falls back to SaleStatusOnSale for unrecognized
// tokens rather than failing the scan, since an unmapped token is a data
// question, not a control-flow error.
type SaleStatusMap map[string]model.SaleStatus

// Lookup normalizes a raw token, trimming and lower-casing before the map
// lookup so platform authors don't need to enumerate every case variant.
func (m SaleStatusMap) Lookup(raw string) model.SaleStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if status, ok := m[key]; ok {
		return status
	}
	return model.SaleStatusOnSale
}
