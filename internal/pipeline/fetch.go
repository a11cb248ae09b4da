package pipeline

import (
	"context"
	"time"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/repository"
	"github.com/ternarybob/validation-engine/internal/writer"
)

// defaultMaxLimit bounds an unbounded Fetch ("stream all via pagination")
// when the caller doesn't supply MaxLimit, so a misconfigured job can't
// page through an unbounded catalog forever.
const defaultMaxLimit = 10000

const defaultPageSize = 200

// FetchInput is the Fetch node's input (§4.6): a filter over the product
// catalog plus pagination controls. Limit == 0 means "stream all via
// pagination up to MaxLimit".
type FetchInput struct {
	LinkURLPattern     string
	SaleStatus         *model.SaleStatus
	ProductID          string
	ExcludeAutoCrawled bool
	Limit              int
	MaxLimit           int
	PageSize           int
}

// FetchOutput is handed to the next step (Scan) as its input.
type FetchOutput struct {
	Products []model.ProductSet
}

// FetchNode reads the catalog rows this job will validate, seeds
// original_products in shared state, and opens the streaming writer the
// rest of the pipeline appends through.
type FetchNode struct {
	Repo      repository.ProductRepository
	OutputDir string
	Now       func() time.Time // nil means time.Now; overridden in tests
}

func (n *FetchNode) Type() string { return "fetch" }

func (n *FetchNode) ValidateInput(input any) node.ValidationResult {
	if _, ok := input.(FetchInput); !ok {
		return node.ValidationResult{Valid: false, Errors: []string{"fetch: input must be a FetchInput"}}
	}
	return node.ValidationResult{Valid: true}
}

func (n *FetchNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	in := input.(FetchInput)

	products, err := n.fetchProducts(ctx, in)
	if err != nil {
		return node.Fail(node.CodeRepositoryError, err.Error())
	}

	nc.Shared.SetOriginalProducts(products)

	now := time.Now()
	if n.Now != nil {
		now = n.Now()
	}
	w := writer.New(n.OutputDir, nc.Platform, nc.JobID, now)
	if err := w.Initialize(); err != nil {
		return node.Fail(node.CodeRepositoryError, "open result writer: "+err.Error())
	}
	nc.Shared.SetResultWriter(w)

	nc.Logger.Info().Str("platform", string(nc.Platform)).Int("product_count", len(products)).Msg("fetch complete")
	return node.Ok(FetchOutput{Products: products})
}

func (n *FetchNode) fetchProducts(ctx context.Context, in FetchInput) ([]model.ProductSet, error) {
	filter := repository.ProductFilter{
		LinkURLPattern:     in.LinkURLPattern,
		SaleStatus:         in.SaleStatus,
		ProductID:          in.ProductID,
		ExcludeAutoCrawled: in.ExcludeAutoCrawled,
	}

	if in.Limit > 0 {
		filter.Limit = in.Limit
		return n.Repo.FindProducts(ctx, filter)
	}

	maxLimit := in.MaxLimit
	if maxLimit <= 0 {
		maxLimit = defaultMaxLimit
	}
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var products []model.ProductSet
	offset := 0
	for len(products) < maxLimit {
		filter.Limit = pageSize
		filter.Offset = offset
		page, err := n.Repo.FindProducts(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		products = append(products, page...)
		offset += len(page)
		if len(page) < pageSize {
			break
		}
	}
	if len(products) > maxLimit {
		products = products[:maxLimit]
	}
	return products, nil
}

// Rollback best-effort discards a started-but-abandoned artifact, matching
// the Streaming Writer's own "only remove a confirmed-empty file" rule.
func (n *FetchNode) Rollback(nc *node.Context) {
	if w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter); ok {
		_ = w.Cleanup()
	}
}
