package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/writer"
)

// CompareInput optionally softens price equality by a percent tolerance of
// the DB value (§4.6).
type CompareInput struct {
	PriceTolerancePercent float64
}

// CompareOutput aggregates match/mismatch/failure counts across the job's
// streamed records.
type CompareOutput struct {
	Total    int
	Match    int
	Mismatch int
	Failures int
}

// CompareNode re-joins the job's streamed records against
// original_products by product_set_id and aggregates match/mismatch
// counts. Scan already computes and streams per-record comparisons inline
// (§4.6), so Compare exists as a standalone re-aggregation pass for
// workflows where Scan's embedded compare used a different tolerance, or
// for the Extract-* variants that skip Scan's inline compare entirely.
// It never rewrites the JSONL.
type CompareNode struct{}

func (n *CompareNode) Type() string { return "compare" }

func (n *CompareNode) ValidateInput(input any) node.ValidationResult {
	if input == nil {
		return node.ValidationResult{Valid: true}
	}
	if _, ok := input.(CompareInput); !ok {
		return node.ValidationResult{Valid: false, Errors: []string{"compare: input must be a CompareInput"}}
	}
	return node.ValidationResult{Valid: true}
}

func (n *CompareNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	in, _ := input.(CompareInput)

	w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	if !ok {
		return node.Fail(node.CodeRepositoryError, "compare: result writer not initialized")
	}
	records, err := writer.ReadRecords(w.Path())
	if err != nil {
		return node.Fail(node.CodeRepositoryError, "compare: read records: "+err.Error())
	}

	byID := make(map[uuid.UUID]model.ProductSet)
	for _, p := range nc.Shared.GetOriginalProducts() {
		byID[p.ProductSetID] = p
	}

	out := CompareOutput{}
	for _, rec := range records {
		out.Total++
		if rec.Status != model.RecordStatusSuccess {
			out.Failures++
			continue
		}

		db, ok := byID[rec.ProductSetID]
		if !ok {
			db = rec.DB
		}
		_, match := CompareFields(db, rec.Fetch, CompareOptions{PriceTolerancePercent: in.PriceTolerancePercent})
		if match {
			out.Match++
		} else {
			out.Mismatch++
		}
	}

	nc.Logger.Info().Int("total", out.Total).Int("match", out.Match).Int("mismatch", out.Mismatch).Msg("compare complete")
	return node.Ok(out)
}

func (n *CompareNode) Rollback(nc *node.Context) {}
