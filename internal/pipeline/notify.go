package pipeline

import (
	"context"
	"time"

	"github.com/ternarybob/validation-engine/internal/alert"
	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
)

// NotifyInput carries the timeout Notify gives its Alerter; zero means the
// package default of ten seconds.
type NotifyInput struct {
	Timeout time.Duration
}

// NotifyOutput reports whether delivery succeeded; Notify itself never
// fails the job over a delivery error (§4.6, §7).
type NotifyOutput struct {
	Sent bool
	Err  string
}

const defaultNotifyTimeout = 10 * time.Second

// NotifyNode formats the job's save_result into an alert.Notification and
// best-effort delivers it. A missing save_result or a delivery failure is
// logged and reported in NotifyOutput.Err but never fails the node, since
// Notify is a side channel that must never block the job pipeline (§6).
type NotifyNode struct {
	Alerter alert.Alerter
	Now     func() time.Time
}

func (n *NotifyNode) Type() string { return "notify" }

func (n *NotifyNode) ValidateInput(input any) node.ValidationResult {
	if input == nil {
		return node.ValidationResult{Valid: true}
	}
	if _, ok := input.(NotifyInput); !ok {
		return node.ValidationResult{Valid: false, Errors: []string{"notify: input must be a NotifyInput"}}
	}
	return node.ValidationResult{Valid: true}
}

func (n *NotifyNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	in, _ := input.(NotifyInput)
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}

	summary, ok := nc.Shared.GetSaveResult().(model.Summary)
	if !ok {
		nc.Logger.Warn().Msg("notify: no save_result in shared state, skipping")
		return node.Ok(NotifyOutput{Sent: false, Err: "no save_result"})
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	severity := alert.ClassifySeverity(summary.MatchRate())
	countByStatus := make(map[string]int, len(summary.CountByStatus))
	for status, count := range summary.CountByStatus {
		countByStatus[string(status)] = count
	}

	notification := alert.Notification{
		Title:         "Product Validation Report",
		Platform:      nc.Platform,
		JobID:         nc.JobID,
		MatchRate:     summary.MatchRate(),
		TotalCount:    summary.RecordCount,
		CountByStatus: countByStatus,
		FilePath:      summary.FilePath,
		Severity:      severity,
		Timestamp:     now(),
	}

	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := n.Alerter.Send(sendCtx, notification); err != nil {
		nc.Logger.Warn().Err(err).Msg("notify: delivery failed")
		return node.Ok(NotifyOutput{Sent: false, Err: err.Error()})
	}

	return node.Ok(NotifyOutput{Sent: true})
}

func (n *NotifyNode) Rollback(nc *node.Context) {}
