package pipeline

import (
	"context"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/writer"
)

// SaveNode closes the job's writer (if still open) and publishes the
// authoritative summary as save_result in shared state. The summary is
// always recomputed from the on-disk JSONL rather than trusted from the
// writer's in-memory counters, so calling Save twice on the same file — even
// across two separate process runs sharing a job ID — produces an identical
// summary (§4.4, §8 idempotence).
type SaveNode struct{}

func (n *SaveNode) Type() string { return "save" }

func (n *SaveNode) ValidateInput(input any) node.ValidationResult {
	return node.ValidationResult{Valid: true}
}

func (n *SaveNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	if !ok {
		return node.Fail(node.CodeRepositoryError, "save: result writer not initialized")
	}

	if _, err := w.Finalize(); err != nil {
		return node.Fail(node.CodeRepositoryError, "save: finalize: "+err.Error())
	}

	summary, err := summarizeFromDisk(w.Path())
	if err != nil {
		return node.Fail(node.CodeRepositoryError, "save: summarize: "+err.Error())
	}

	nc.Shared.SetSaveResult(summary)
	nc.Logger.Info().Int("record_count", summary.RecordCount).Int("match_count", summary.MatchCount).Msg("save complete")
	return node.Ok(summary)
}

func (n *SaveNode) Rollback(nc *node.Context) {
	// The JSONL is already durable; Save has no additional side effect to
	// undo beyond what Fetch's own Rollback already covers.
}

func summarizeFromDisk(path string) (model.Summary, error) {
	records, err := writer.ReadRecords(path)
	if err != nil {
		return model.Summary{}, err
	}

	summary := model.Summary{
		FilePath:      path,
		CountByStatus: make(map[model.RecordStatus]int),
	}
	for _, rec := range records {
		summary.RecordCount++
		summary.CountByStatus[rec.Status]++
		if rec.Match {
			summary.MatchCount++
		}
	}
	summary.MismatchCount = summary.RecordCount - summary.MatchCount
	return summary, nil
}
