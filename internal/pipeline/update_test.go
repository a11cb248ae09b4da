package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/repository/memrepo"
)

func TestUpdateNode_AppliesMismatchAndRecordsHistory(t *testing.T) {
	productSetID := uuid.New()
	db := model.ProductSet{
		ProductSetID: productSetID, ProductID: "1",
		ProductName: "Old Name", OriginalPrice: 1000, DiscountedPrice: 1000,
		SaleStatus: model.SaleStatusOnSale,
	}
	store := memrepo.New()
	store.Seed(db)

	rec := model.ComparisonRecord{
		ProductSetID: productSetID,
		Status:       model.RecordStatusSuccess,
		Match:        false,
		DB:           db,
		Fetch: &model.ScannedData{
			ProductName: "New Name", OriginalPrice: 1000, DiscountedPrice: 700,
			SaleStatus: model.SaleStatusOnSale,
		},
		Comparison: model.FieldComparison{ProductName: false, OriginalPrice: true, DiscountedPrice: false, SaleStatus: true, Thumbnail: true},
	}
	w := seedWriter(t, "example", rec)

	nc := testContext(t, "example")
	nc.Shared.SetResultWriter(w)

	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := &UpdateNode{Updates: store, History: store}
	result := n.Execute(context.Background(), UpdateInput{Now: func() time.Time { return fixedNow }}, nc)
	require.True(t, result.Success)

	out := result.Data.(UpdateOutput)
	assert.Equal(t, 1, out.Considered)
	assert.Equal(t, 1, out.Applied)

	updated, err := store.GetProduct(context.Background(), productSetID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.ProductName)
	assert.Equal(t, 700, updated.DiscountedPrice)

	reviews := store.Reviews()
	require.Len(t, reviews, 1)
	assert.Equal(t, "Old Name", reviews[0].Before.ProductName)
	assert.Equal(t, "New Name", reviews[0].After.ProductName)
	assert.Equal(t, 1, store.PriceHistoryCount())
}

func TestUpdateNode_SkipsMatchedRecords(t *testing.T) {
	rec := model.ComparisonRecord{ProductSetID: uuid.New(), Status: model.RecordStatusSuccess, Match: true, Fetch: &model.ScannedData{}}
	w := seedWriter(t, "example", rec)

	nc := testContext(t, "example")
	nc.Shared.SetResultWriter(w)

	store := memrepo.New()
	n := &UpdateNode{Updates: store, History: store}
	result := n.Execute(context.Background(), UpdateInput{}, nc)
	require.True(t, result.Success)
	assert.Zero(t, result.Data.(UpdateOutput).Considered)
}

func TestUpdateNode_HonorsSkipFields(t *testing.T) {
	productSetID := uuid.New()
	db := model.ProductSet{ProductSetID: productSetID, OriginalPrice: 1000, DiscountedPrice: 1000}
	store := memrepo.New()
	store.Seed(db)

	rec := model.ComparisonRecord{
		ProductSetID: productSetID,
		Status:       model.RecordStatusSuccess,
		DB:           db,
		Fetch:        &model.ScannedData{OriginalPrice: 1000, DiscountedPrice: 500},
		Comparison:   model.FieldComparison{DiscountedPrice: false, OriginalPrice: true, ProductName: true, Thumbnail: true, SaleStatus: true},
	}
	w := seedWriter(t, "example", rec)

	nc := testContext(t, "example")
	nc.Shared.SetResultWriter(w)

	n := &UpdateNode{Updates: store, History: store}
	result := n.Execute(context.Background(), UpdateInput{SkipFields: map[string]bool{"discounted_price": true}}, nc)
	require.True(t, result.Success)

	updated, err := store.GetProduct(context.Background(), productSetID)
	require.NoError(t, err)
	assert.Equal(t, 1000, updated.DiscountedPrice, "skipped field must not be overwritten")
}
