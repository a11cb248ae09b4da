package node

import (
	"context"
	"fmt"
)

// OnError names what a workflow step does when its node fails, mirroring
// the OnError field on internal/jobs/executor's step definitions.
type OnError string

const (
	OnErrorFail     OnError = "fail"
	OnErrorContinue OnError = "continue"
)

// Step is one entry in a statically declared workflow graph (§4.5): node
// composition is sequential, there is no fan-out between nodes.
type Step struct {
	NodeType string
	Input    any
	OnError  OnError
}

// Workflow is the ordered list of steps executed for one job.
type Workflow struct {
	ID    string
	Steps []Step
}

// Runner executes a Workflow's steps in order against a Registry,
// threading one Context and its SharedState through every step.
type Runner struct {
	registry *Registry
}

// NewRunner builds a Runner bound to registry.
func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

// StepOutcome records what happened running one step, for callers that want
// to inspect per-step results after a Run.
type StepOutcome struct {
	NodeType string
	Result   Result
}

// Run executes wf's steps in order. A step whose node fails aborts the
// whole workflow unless its OnError is "continue", in which case the
// runner logs and moves to the next step. Node-level errors (as opposed to
// scan/batch-level errors handled inside a node) always abort the pipeline
// per §7's propagation policy; OnErrorContinue exists for steps a caller
// has explicitly decided are optional (e.g. Notify).
func (r *Runner) Run(ctx context.Context, wf Workflow, nc *Context) ([]StepOutcome, error) {
	outcomes := make([]StepOutcome, 0, len(wf.Steps))

	for _, step := range wf.Steps {
		n, ok := r.registry.Get(step.NodeType)
		if !ok {
			err := fmt.Errorf("node type %q not registered", step.NodeType)
			if step.OnError == OnErrorContinue {
				nc.Logger.Warn().Str("node_type", step.NodeType).Err(err).Msg("skipping unregistered node")
				continue
			}
			return outcomes, err
		}

		if vr := n.ValidateInput(step.Input); !vr.Valid {
			res := Fail(CodeValidationError, fmt.Sprintf("invalid input for %s: %v", step.NodeType, vr.Errors))
			outcomes = append(outcomes, StepOutcome{NodeType: step.NodeType, Result: res})
			if step.OnError == OnErrorContinue {
				nc.Logger.Warn().Str("node_type", step.NodeType).Strs("errors", vr.Errors).Msg("step validation failed, continuing")
				continue
			}
			return outcomes, res.Err
		}

		result := n.Execute(ctx, step.Input, nc)
		outcomes = append(outcomes, StepOutcome{NodeType: step.NodeType, Result: result})

		if !result.Success {
			n.Rollback(nc)
			if step.OnError == OnErrorContinue {
				nc.Logger.Warn().Str("node_type", step.NodeType).Err(result.Err).Msg("step failed, continuing")
				continue
			}
			return outcomes, result.Err
		}
	}

	return outcomes, nil
}
