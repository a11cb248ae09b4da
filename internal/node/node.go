// Package node implements the typed-node runtime contract (§4.5), a
// generalization of the sequential StepExecutor-registry pattern in
// internal/jobs/executor/job_executor.go from a flat string-keyed map of
// untyped steps to one typed contract every pipeline node implements.
package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/model"
)

// ValidationResult is the outcome of a node's pure, I/O-free input check.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// NodeError is a node's stable, machine-checkable failure shape.
type NodeError struct {
	Code        string
	Message     string
	FieldErrors []string
}

func (e *NodeError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Stable error codes nodes return in Result.Err.Code.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeScanError       = "SCAN_PRODUCT_ERROR"
	CodeConfigMissing   = "CONFIG_MISSING"
	CodeRepositoryError = "REPOSITORY_ERROR"
)

// Result is a node's execution outcome.
type Result struct {
	Success bool
	Data    any
	Err     *NodeError
}

// Ok wraps a successful result.
func Ok(data any) Result { return Result{Success: true, Data: data} }

// Fail wraps a failed result.
func Fail(code, message string) Result {
	return Result{Success: false, Err: &NodeError{Code: code, Message: message}}
}

// SharedState is the per-job shared-state bag (§9): the three known keys
// are named fields, guarded by a mutex since Scan batches read/write
// concurrently; Extra is the overflow bag for anything else.
type SharedState struct {
	mu               sync.RWMutex
	OriginalProducts []model.ProductSet
	ResultWriter     any // *writer.ResultWriter; any to avoid an import cycle
	SaveResult       any
	Extra            map[string]any
}

// NewSharedState builds an empty SharedState ready for Fetch to populate.
func NewSharedState() *SharedState {
	return &SharedState{Extra: make(map[string]any)}
}

func (s *SharedState) SetOriginalProducts(products []model.ProductSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OriginalProducts = products
}

func (s *SharedState) GetOriginalProducts() []model.ProductSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.OriginalProducts
}

func (s *SharedState) SetResultWriter(w any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResultWriter = w
}

func (s *SharedState) GetResultWriter() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ResultWriter
}

func (s *SharedState) SetSaveResult(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveResult = v
}

func (s *SharedState) GetSaveResult() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SaveResult
}

func (s *SharedState) SetExtra(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Extra[key] = value
}

func (s *SharedState) GetExtra(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Extra[key]
	return v, ok
}

// Context carries everything a node needs to execute one step of one job.
type Context struct {
	JobID          string
	WorkflowID     string
	Platform       model.Platform
	PlatformConfig *model.PlatformConfig
	Config         map[string]any
	Params         map[string]any
	Logger         arbor.ILogger
	Shared         *SharedState
}

// Node is one step of a workflow graph.
type Node interface {
	// Type is globally unique among nodes registered in a Registry.
	Type() string

	// ValidateInput is pure and performs no I/O.
	ValidateInput(input any) ValidationResult

	// Execute runs the node's side effects.
	Execute(ctx context.Context, input any, nc *Context) Result

	// Rollback best-effort undoes Execute's side effects.
	Rollback(nc *Context)
}
