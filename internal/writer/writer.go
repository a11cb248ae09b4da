// Package writer implements the append-only JSONL Streaming Result Writer
// (§4.4), grounded in the crawler package's document_persister.go mutex-
// guarded append path.
package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/validation-engine/internal/model"
)

// ResultWriter is one job's exclusive handle on its JSONL artifact, from
// Initialize through Finalize or Cleanup.
type ResultWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	count    int
	byStatus map[model.RecordStatus]int
	matches  int
}

// New builds a writer for <outputDir>/<YYYY-MM-DD>/<platform>/<jobID>.jsonl.
// The file is not opened until Initialize is called.
func New(outputDir string, platform model.Platform, jobID string, now time.Time) *ResultWriter {
	dateDir := now.Format("2006-01-02")
	path := filepath.Join(outputDir, dateDir, string(platform), jobID+".jsonl")
	return &ResultWriter{
		path:     path,
		byStatus: make(map[model.RecordStatus]int),
	}
}

// NewMonitor builds a writer for a monitor job, whose file is prefixed
// "monitor-" to distinguish it from catalog validation runs (§4.9).
func NewMonitor(outputDir string, platform model.Platform, jobID string, now time.Time) *ResultWriter {
	dateDir := now.Format("2006-01-02")
	path := filepath.Join(outputDir, dateDir, string(platform), "monitor-"+jobID+".jsonl")
	return &ResultWriter{
		path:     path,
		byStatus: make(map[model.RecordStatus]int),
	}
}

// Initialize creates the date/platform/job directory tree and opens the
// file for append.
func (w *ResultWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return fmt.Errorf("writer already initialized for %s", w.path)
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	w.file = f
	return nil
}

// Append writes one record as a dense JSON line. Safe for concurrent
// callers within the same job: every call is serialized through w.mu.
func (w *ResultWriter) Append(record model.ComparisonRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("writer not initialized for %s", w.path)
	}
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	w.count++
	w.byStatus[record.Status]++
	if record.Match {
		w.matches++
	}
	return nil
}

// Finalize flushes and closes the file, returning the authoritative
// summary computed from counters maintained during Append.
func (w *ResultWriter) Finalize() (model.Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	summary := model.Summary{
		FilePath:      w.path,
		RecordCount:   w.count,
		CountByStatus: copyStatusCounts(w.byStatus),
		MatchCount:    w.matches,
		MismatchCount: w.count - w.matches,
	}

	if w.file == nil {
		return summary, nil
	}
	if err := w.file.Sync(); err != nil {
		return summary, fmt.Errorf("sync %s: %w", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return summary, fmt.Errorf("close %s: %w", w.path, err)
	}
	w.file = nil
	return summary, nil
}

// Cleanup closes the file (if still open) and best-effort removes it, but
// only when it has zero records. Never returns an error: removal failures
// are swallowed since Cleanup is itself a best-effort path.
func (w *ResultWriter) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if w.count == 0 {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			// Swallowed: cleanup must never fail the caller.
			return nil
		}
	}
	return nil
}

// Path returns the artifact path this writer was constructed for.
func (w *ResultWriter) Path() string {
	return w.path
}

func copyStatusCounts(src map[model.RecordStatus]int) map[model.RecordStatus]int {
	cp := make(map[model.RecordStatus]int, len(src))
	for k, v := range src {
		cp[k] = v
	}
	return cp
}
