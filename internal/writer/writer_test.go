package writer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/validation-engine/internal/model"
)

func sampleRecord(status model.RecordStatus, match bool) model.ComparisonRecord {
	return model.ComparisonRecord{
		ProductSetID: uuid.New(),
		Platform:     "oliveyoung",
		Status:       status,
		Match:        match,
		Timestamp:    time.Now(),
	}
}

func TestResultWriter_AppendAndFinalize(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "oliveyoung", "job-1", time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, w.Initialize())

	require.NoError(t, w.Append(sampleRecord(model.RecordStatusSuccess, true)))
	require.NoError(t, w.Append(sampleRecord(model.RecordStatusSuccess, false)))
	require.NoError(t, w.Append(sampleRecord(model.RecordStatusFailed, false)))

	summary, err := w.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 3, summary.RecordCount)
	assert.Equal(t, 1, summary.MatchCount)
	assert.Equal(t, 2, summary.MismatchCount)
	assert.Equal(t, 2, summary.CountByStatus[model.RecordStatusSuccess])
	assert.Equal(t, 1, summary.CountByStatus[model.RecordStatusFailed])

	expectedPath := filepath.Join(dir, "2026-07-31", "oliveyoung", "job-1.jsonl")
	assert.Equal(t, expectedPath, summary.FilePath)
	info, err := os.Stat(expectedPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestResultWriter_ConcurrentAppend(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "oliveyoung", "job-concurrent", time.Now())
	require.NoError(t, w.Initialize())

	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Append(sampleRecord(model.RecordStatusSuccess, true))
		}()
	}
	wg.Wait()

	summary, err := w.Finalize()
	require.NoError(t, err)
	assert.Equal(t, n, summary.RecordCount)

	records, err := ReadRecords(summary.FilePath)
	require.NoError(t, err)
	assert.Len(t, records, n)
}

func TestResultWriter_CleanupRemovesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "oliveyoung", "job-empty", time.Now())
	require.NoError(t, w.Initialize())
	require.NoError(t, w.Cleanup())

	_, err := os.Stat(w.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestResultWriter_CleanupKeepsNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "oliveyoung", "job-nonempty", time.Now())
	require.NoError(t, w.Initialize())
	require.NoError(t, w.Append(sampleRecord(model.RecordStatusSuccess, true)))
	require.NoError(t, w.Cleanup())

	_, err := os.Stat(w.Path())
	assert.NoError(t, err)
}

func TestReadRecords_SkipsTrailingPartialLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.jsonl")
	content := `{"product_set_id":"11111111-1111-1111-1111-111111111111","status":"success","match":true}` + "\n" + `{"product_set_id":"bad`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.RecordStatusSuccess, records[0].Status)
}
