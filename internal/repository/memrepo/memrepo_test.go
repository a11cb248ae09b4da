package memrepo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/repository"
)

func TestStore_FindProducts_FiltersByLinkURLPattern(t *testing.T) {
	s := New()
	s.Seed(
		model.ProductSet{ProductSetID: uuid.New(), LinkURL: "https://oliveyoung.co.kr/p/1", Platform: "oliveyoung"},
		model.ProductSet{ProductSetID: uuid.New(), LinkURL: "https://musinsa.com/p/2", Platform: "musinsa"},
	)

	found, err := s.FindProducts(context.Background(), repository.ProductFilter{LinkURLPattern: "oliveyoung"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, model.Platform("oliveyoung"), found[0].Platform)
}

func TestStore_FindProducts_ExcludesAutoCrawled(t *testing.T) {
	s := New()
	s.Seed(
		model.ProductSet{ProductSetID: uuid.New(), AutoCrawled: true},
		model.ProductSet{ProductSetID: uuid.New(), AutoCrawled: false},
	)

	found, err := s.FindProducts(context.Background(), repository.ProductFilter{ExcludeAutoCrawled: true})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.False(t, found[0].AutoCrawled)
}

func TestStore_FindProducts_Paginates(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.Seed(model.ProductSet{ProductSetID: uuid.New()})
	}

	page, err := s.FindProducts(context.Background(), repository.ProductFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	all, err := s.FindProducts(context.Background(), repository.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestStore_GetProduct_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetProduct(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrProductNotFound)
}

func TestStore_ApplyUpdates(t *testing.T) {
	s := New()
	id := uuid.New()
	s.Seed(model.ProductSet{ProductSetID: id, OriginalPrice: 1000, DiscountedPrice: 1000})

	newPrice := 800
	applied, err := s.ApplyUpdates(context.Background(), []repository.ProductUpdate{
		{ProductSetID: id, DiscountedPrice: &newPrice},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	updated, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 800, updated.DiscountedPrice)
	assert.Equal(t, 1000, updated.OriginalPrice)
}

func TestStore_ApplyUpdates_SkipsUnknownProduct(t *testing.T) {
	s := New()
	applied, err := s.ApplyUpdates(context.Background(), []repository.ProductUpdate{
		{ProductSetID: uuid.New()},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
}

func TestStore_RecordReviewAndPriceHistory(t *testing.T) {
	s := New()
	id := uuid.New()

	require.NoError(t, s.RecordReview(context.Background(), repository.ReviewHistoryEntry{
		ProductSetID: id, Status: model.RecordStatusSuccess, Match: false, CreatedAt: time.Now(),
	}))
	require.NoError(t, s.UpsertPriceHistory(context.Background(), repository.PriceHistoryEntry{
		ProductSetID: id, Date: time.Now(), OriginalPrice: 1000, DiscountedPrice: 800,
	}))
	// same day upsert must not create a second row
	require.NoError(t, s.UpsertPriceHistory(context.Background(), repository.PriceHistoryEntry{
		ProductSetID: id, Date: time.Now(), OriginalPrice: 1000, DiscountedPrice: 700,
	}))

	assert.Len(t, s.Reviews(), 1)
	assert.Equal(t, 1, s.PriceHistoryCount())
}

func TestStore_ListBanners(t *testing.T) {
	s := New()
	s.SeedBanners(repository.BannerKindActive, repository.Banner{ID: uuid.New(), Kind: repository.BannerKindActive})

	banners, err := s.ListBanners(context.Background(), repository.BannerKindActive)
	require.NoError(t, err)
	assert.Len(t, banners, 1)

	none, err := s.ListBanners(context.Background(), repository.BannerKindPick)
	require.NoError(t, err)
	assert.Empty(t, none)
}
