package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/writer"
)

var canonicalSaleStatuses = map[model.SaleStatus]bool{
	model.SaleStatusOnSale:    true,
	model.SaleStatusSoldOut:   true,
	model.SaleStatusOffSale:   true,
	model.SaleStatusPreOrder:  true,
	model.SaleStatusBackorder: true,
}

// ValidateInput controls whether warning-level findings escalate to
// failures (§4.6 Validate).
type ValidateInput struct {
	Strict bool
}

// ValidateOutput aggregates the field-level sanity pass over every
// scanned, successful record in the job's JSONL so far.
type ValidateOutput struct {
	Checked  int
	Warnings int
	Failures int
	Issues   []string
}

// ValidateNode runs field-level sanity checks over the already-streamed
// scan records: required fields present, price ordering, sale-status
// vocabulary, thumbnail URL shape, plus two heuristic warnings (on_sale
// with a zero price, a discount rate over 90%). It never touches the
// JSONL itself — Validate is a read-only pass.
type ValidateNode struct{}

func (n *ValidateNode) Type() string { return "validate" }

func (n *ValidateNode) ValidateInput(input any) node.ValidationResult {
	if input == nil {
		return node.ValidationResult{Valid: true}
	}
	if _, ok := input.(ValidateInput); !ok {
		return node.ValidationResult{Valid: false, Errors: []string{"validate: input must be a ValidateInput"}}
	}
	return node.ValidationResult{Valid: true}
}

func (n *ValidateNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	in, _ := input.(ValidateInput)

	w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	if !ok {
		return node.Fail(node.CodeRepositoryError, "validate: result writer not initialized")
	}

	records, err := writer.ReadRecords(w.Path())
	if err != nil {
		return node.Fail(node.CodeRepositoryError, "validate: read records: "+err.Error())
	}

	out := ValidateOutput{}
	for _, rec := range records {
		if rec.Status != model.RecordStatusSuccess || rec.Fetch == nil {
			continue
		}
		out.Checked++

		warnings, failures := n.checkRecord(rec)
		if in.Strict {
			failures = append(failures, warnings...)
			warnings = nil
		}

		out.Warnings += len(warnings)
		out.Failures += len(failures)
		out.Issues = append(out.Issues, warnings...)
		out.Issues = append(out.Issues, failures...)
	}

	if in.Strict && out.Failures > 0 {
		return node.Result{
			Success: false,
			Data:    out,
			Err: &node.NodeError{
				Code:        node.CodeValidationError,
				Message:     fmt.Sprintf("%d record(s) failed strict validation", out.Failures),
				FieldErrors: out.Issues,
			},
		}
	}

	nc.Logger.Info().Int("checked", out.Checked).Int("warnings", out.Warnings).Int("failures", out.Failures).Msg("validate complete")
	return node.Ok(out)
}

func (n *ValidateNode) Rollback(nc *node.Context) {}

// checkRecord returns (warnings, failures) for one successful record. The
// hard failures (missing fields, bad price ordering, unknown sale status,
// malformed thumbnail) are always failures; the two heuristic checks are
// warnings unless the caller's Strict mode escalates them.
func (n *ValidateNode) checkRecord(rec model.ComparisonRecord) ([]string, []string) {
	var warnings, failures []string
	f := rec.Fetch

	if strings.TrimSpace(f.ProductName) == "" {
		failures = append(failures, rec.ProductSetID.String()+": missing product_name")
	}
	if f.OriginalPrice < 0 || f.DiscountedPrice < 0 {
		failures = append(failures, rec.ProductSetID.String()+": negative price")
	}
	if f.OriginalPrice > 0 && f.DiscountedPrice > f.OriginalPrice {
		failures = append(failures, rec.ProductSetID.String()+": discounted_price exceeds original_price")
	}
	if !canonicalSaleStatuses[f.SaleStatus] {
		failures = append(failures, rec.ProductSetID.String()+": unrecognized sale_status "+string(f.SaleStatus))
	}
	if f.Thumbnail != "" {
		if u, err := url.Parse(f.Thumbnail); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			failures = append(failures, rec.ProductSetID.String()+": thumbnail is not an absolute http(s) URL")
		}
	}

	if f.SaleStatus == model.SaleStatusOnSale && f.OriginalPrice == 0 && f.DiscountedPrice == 0 {
		warnings = append(warnings, rec.ProductSetID.String()+": on_sale with zero price")
	}
	if f.OriginalPrice > 0 {
		discountRate := float64(f.OriginalPrice-f.DiscountedPrice) / float64(f.OriginalPrice)
		if discountRate > 0.90 {
			warnings = append(warnings, rec.ProductSetID.String()+": discount rate over 90%")
		}
	}

	return warnings, failures
}
