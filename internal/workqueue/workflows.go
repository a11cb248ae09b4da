package workqueue

import "github.com/ternarybob/validation-engine/internal/node"

// StaticWorkflows is a WorkflowResolver backed by a fixed map built at
// startup composition time — workflow graphs are declared once, never
// assembled from a job's own payload.
type StaticWorkflows map[string]node.Workflow

func (w StaticWorkflows) Resolve(workflowID string) (node.Workflow, bool) {
	wf, ok := w[workflowID]
	return wf, ok
}
