// Package pipeline implements the C6 typed nodes (Fetch, Scan, Validate,
// Compare, Save, Update, Notify, and the Extract-* ad-hoc variants) that
// compose into one job's workflow (§4.6).
package pipeline

import (
	"strings"

	"github.com/ternarybob/validation-engine/internal/model"
)

// CompareOptions tunes field comparison; PriceTolerancePercent softens
// price equality by the configured percent of the DB value, per §4.6.
type CompareOptions struct {
	PriceTolerancePercent float64
}

// CompareFields computes the per-field match outcome between a product's
// stored DB row and a freshly scanned payload. A nil fetch means the
// platform reported the product missing: every field compares false and
// overall match is false, matching the §8 invariant that a non-success
// record never reports a field match.
func CompareFields(db model.ProductSet, fetch *model.ScannedData, opts CompareOptions) (model.FieldComparison, bool) {
	if fetch == nil {
		return model.FieldComparison{}, false
	}

	cmp := model.FieldComparison{
		ProductName:     strings.TrimSpace(db.ProductName) == strings.TrimSpace(fetch.ProductName),
		Thumbnail:       strings.TrimSpace(db.Thumbnail) == strings.TrimSpace(fetch.Thumbnail),
		OriginalPrice:   priceEqual(db.OriginalPrice, fetch.OriginalPrice, opts.PriceTolerancePercent),
		DiscountedPrice: priceEqual(db.DiscountedPrice, fetch.DiscountedPrice, opts.PriceTolerancePercent),
		SaleStatus:      db.SaleStatus == fetch.SaleStatus,
	}
	return cmp, cmp.AllTrue()
}

func priceEqual(dbPrice, fetchPrice int, tolerancePercent float64) bool {
	if dbPrice == fetchPrice {
		return true
	}
	if tolerancePercent <= 0 || dbPrice == 0 {
		return false
	}
	diff := dbPrice - fetchPrice
	if diff < 0 {
		diff = -diff
	}
	allowed := float64(dbPrice) * tolerancePercent / 100
	return float64(diff) <= allowed
}
