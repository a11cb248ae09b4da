package pipeline

import (
	"context"
	"time"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/repository"
	"github.com/ternarybob/validation-engine/internal/writer"
)

// UpdateInput selects which fields Update is allowed to correct; anything
// named in SkipFields is left untouched even when it mismatched (§4.6).
type UpdateInput struct {
	SkipFields map[string]bool
	Now        func() time.Time
}

// UpdateOutput summarizes what Update attempted and applied.
type UpdateOutput struct {
	Considered int
	Applied    int
	HistoryErr int
}

// UpdateNode reads the job's streamed records, selects the ones that
// scanned successfully but didn't match the DB row, builds a corrected
// ProductUpdate honoring SkipFields, and pushes it through
// UpdateRepository. Every considered record gets a ReviewHistoryEntry
// regardless of whether the update applied cleanly; history failures are
// logged and counted but never fail the node (§4.6, §7).
type UpdateNode struct {
	Updates repository.UpdateRepository
	History repository.HistoryRepository
}

func (n *UpdateNode) Type() string { return "update" }

func (n *UpdateNode) ValidateInput(input any) node.ValidationResult {
	if _, ok := input.(UpdateInput); !ok {
		return node.ValidationResult{Valid: false, Errors: []string{"update: input must be an UpdateInput"}}
	}
	return node.ValidationResult{Valid: true}
}

func (n *UpdateNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	in := input.(UpdateInput)
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}

	skipFields := mergeSkipFields(in.SkipFields, nc.PlatformConfig)

	w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	if !ok {
		return node.Fail(node.CodeRepositoryError, "update: result writer not initialized")
	}
	records, err := writer.ReadRecords(w.Path())
	if err != nil {
		return node.Fail(node.CodeRepositoryError, "update: read records: "+err.Error())
	}

	out := UpdateOutput{}
	var pending []repository.ProductUpdate
	type attempt struct {
		rec    model.ComparisonRecord
		update repository.ProductUpdate
	}
	var attempts []attempt

	for _, rec := range records {
		if rec.Status != model.RecordStatusSuccess || rec.Match || rec.Fetch == nil {
			continue
		}
		out.Considered++

		upd := buildUpdate(rec, skipFields)
		pending = append(pending, upd)
		attempts = append(attempts, attempt{rec: rec, update: upd})
	}

	if len(pending) > 0 {
		applied, err := n.Updates.ApplyUpdates(ctx, pending)
		if err != nil {
			nc.Logger.Warn().Err(err).Msg("update: ApplyUpdates failed")
		}
		out.Applied = applied
	}

	for _, a := range attempts {
		after := applyToSnapshot(a.rec.DB, a.update)
		entry := repository.ReviewHistoryEntry{
			ProductSetID: a.rec.ProductSetID,
			Status:       a.rec.Status,
			Match:        a.rec.Match,
			Note:         "auto-corrected from scan",
			Before:       a.rec.DB,
			After:        after,
			CreatedAt:    now(),
		}
		if err := n.History.RecordReview(ctx, entry); err != nil {
			out.HistoryErr++
			nc.Logger.Warn().Err(err).Str("product_set_id", a.rec.ProductSetID.String()).Msg("update: RecordReview failed")
		}

		if after.OriginalPrice != a.rec.DB.OriginalPrice || after.DiscountedPrice != a.rec.DB.DiscountedPrice {
			priceEntry := repository.PriceHistoryEntry{
				ProductSetID:    a.rec.ProductSetID,
				Date:            now(),
				OriginalPrice:   after.OriginalPrice,
				DiscountedPrice: after.DiscountedPrice,
			}
			if err := n.History.UpsertPriceHistory(ctx, priceEntry); err != nil {
				out.HistoryErr++
				nc.Logger.Warn().Err(err).Str("product_set_id", a.rec.ProductSetID.String()).Msg("update: UpsertPriceHistory failed")
			}
		}
	}

	nc.Logger.Info().Int("considered", out.Considered).Int("applied", out.Applied).Msg("update complete")
	return node.Ok(out)
}

func (n *UpdateNode) Rollback(nc *node.Context) {
	// Applied corrections are not retracted: an Update that partially
	// applied still leaves the catalog closer to the scanned truth, which
	// is never worse than the stale row it replaced.
}

// mergeSkipFields unions a step's explicit SkipFields with the platform's
// own update_exclusions (§8: "fields in skip_fields are byte-identical
// before and after"), since the platform config is the durable source of
// truth and a workflow's Input rarely names any fields of its own.
func mergeSkipFields(explicit map[string]bool, cfg *model.PlatformConfig) map[string]bool {
	merged := make(map[string]bool, len(explicit))
	for k, v := range explicit {
		merged[k] = v
	}
	if cfg != nil {
		for _, f := range cfg.UpdateExclusions.SkipFields {
			merged[f] = true
		}
	}
	return merged
}

// buildUpdate copies every mismatched field from the fetched payload into a
// ProductUpdate, skipping any field named in skip.
func buildUpdate(rec model.ComparisonRecord, skip map[string]bool) repository.ProductUpdate {
	upd := repository.ProductUpdate{ProductSetID: rec.ProductSetID}
	f := rec.Fetch
	cmp := rec.Comparison

	if !cmp.ProductName && !skip["product_name"] {
		v := f.ProductName
		upd.ProductName = &v
	}
	if !cmp.Thumbnail && !skip["thumbnail"] {
		v := f.Thumbnail
		upd.Thumbnail = &v
	}
	if !cmp.OriginalPrice && !skip["original_price"] {
		v := f.OriginalPrice
		upd.OriginalPrice = &v
	}
	if !cmp.DiscountedPrice && !skip["discounted_price"] {
		v := f.DiscountedPrice
		upd.DiscountedPrice = &v
	}
	if !cmp.SaleStatus && !skip["sale_status"] {
		v := f.SaleStatus
		upd.SaleStatus = &v
	}
	return upd
}

// applyToSnapshot projects a ProductUpdate onto a copy of the original row,
// purely so History can record the after-image without a second DB read.
func applyToSnapshot(db model.ProductSet, upd repository.ProductUpdate) model.ProductSet {
	after := db
	if upd.ProductName != nil {
		after.ProductName = *upd.ProductName
	}
	if upd.Thumbnail != nil {
		after.Thumbnail = *upd.Thumbnail
	}
	if upd.OriginalPrice != nil {
		after.OriginalPrice = *upd.OriginalPrice
	}
	if upd.DiscountedPrice != nil {
		after.DiscountedPrice = *upd.DiscountedPrice
	}
	if upd.SaleStatus != nil {
		after.SaleStatus = *upd.SaleStatus
	}
	return after
}
