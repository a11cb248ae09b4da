package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/repository/memrepo"
	"github.com/ternarybob/validation-engine/internal/writer"
)

func testContext(t *testing.T, platform model.Platform) *node.Context {
	t.Helper()
	return &node.Context{
		JobID:    uuid.NewString(),
		Platform: platform,
		Logger:   arbor.NewLogger(),
		Shared:   node.NewSharedState(),
	}
}

func TestFetchNode_SeedsOriginalProductsAndOpensWriter(t *testing.T) {
	store := memrepo.New()
	store.Seed(
		model.ProductSet{ProductSetID: uuid.New(), ProductID: "1", LinkURL: "https://shop.example.com/p/1"},
		model.ProductSet{ProductSetID: uuid.New(), ProductID: "2", LinkURL: "https://shop.example.com/p/2"},
	)

	n := &FetchNode{Repo: store, OutputDir: t.TempDir(), Now: func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }}
	nc := testContext(t, "example")

	result := n.Execute(context.Background(), FetchInput{}, nc)
	require.True(t, result.Success)

	out := result.Data.(FetchOutput)
	assert.Len(t, out.Products, 2)
	assert.Len(t, nc.Shared.GetOriginalProducts(), 2)

	w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	require.True(t, ok)
	assert.NotEmpty(t, w.Path())
}

func TestFetchNode_EmptyCatalogStillOpensWriter(t *testing.T) {
	store := memrepo.New()
	n := &FetchNode{Repo: store, OutputDir: t.TempDir()}
	nc := testContext(t, "example")

	result := n.Execute(context.Background(), FetchInput{}, nc)
	require.True(t, result.Success)
	assert.Empty(t, result.Data.(FetchOutput).Products)

	_, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	assert.True(t, ok)
}

func TestFetchNode_Rollback_RemovesEmptyFile(t *testing.T) {
	store := memrepo.New()
	n := &FetchNode{Repo: store, OutputDir: t.TempDir()}
	nc := testContext(t, "example")

	result := n.Execute(context.Background(), FetchInput{}, nc)
	require.True(t, result.Success)

	w := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	path := w.Path()

	n.Rollback(nc)

	_, err := writer.ReadRecords(path)
	assert.Error(t, err, "expected Rollback to remove the zero-record file")
}

func TestFetchNode_ValidateInput(t *testing.T) {
	n := &FetchNode{}
	assert.False(t, n.ValidateInput("not-a-fetch-input").Valid)
	assert.True(t, n.ValidateInput(FetchInput{}).Valid)
}
