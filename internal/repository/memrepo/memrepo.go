// Package memrepo is a process-memory implementation of the repository
// interfaces, used by the tests and as the example binary's store (§6).
// It generalizes the teacher's
// in-memory test doubles pattern (small mutex-guarded maps behind the same
// interfaces the real storage packages implement) rather than standing up
// sqlite or badger for unit tests.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/repository"
)

// Store is an in-memory ProductRepository + UpdateRepository +
// HistoryRepository + BannerRepository, safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	products map[uuid.UUID]model.ProductSet
	reviews  []repository.ReviewHistoryEntry
	prices   map[string]repository.PriceHistoryEntry // key: productSetID|date
	banners  map[repository.BannerKind][]repository.Banner
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		products: make(map[uuid.UUID]model.ProductSet),
		prices:   make(map[string]repository.PriceHistoryEntry),
		banners:  make(map[repository.BannerKind][]repository.Banner),
	}
}

// Seed loads products directly, bypassing the repository interface, for
// test setup.
func (s *Store) Seed(products ...model.ProductSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ProductSetID] = p
	}
}

// SeedBanners loads curated banner rows for test setup.
func (s *Store) SeedBanners(kind repository.BannerKind, banners ...repository.Banner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banners[kind] = append(s.banners[kind], banners...)
}

func (s *Store) FindProducts(_ context.Context, filter repository.ProductFilter) ([]model.ProductSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.ProductSet, 0, len(s.products))
	for _, p := range s.products {
		if !matchesFilter(p, filter) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ProductSetID.String() < matched[j].ProductSetID.String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *Store) CountProducts(ctx context.Context, filter repository.ProductFilter) (int, error) {
	filter.Limit = 0
	filter.Offset = 0
	all, err := s.FindProducts(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Store) GetProduct(_ context.Context, productSetID uuid.UUID) (*model.ProductSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productSetID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productSetID, model.ErrProductNotFound)
	}
	return &p, nil
}

func (s *Store) ApplyUpdates(_ context.Context, updates []repository.ProductUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, u := range updates {
		p, ok := s.products[u.ProductSetID]
		if !ok {
			continue
		}
		if u.ProductName != nil {
			p.ProductName = *u.ProductName
		}
		if u.Thumbnail != nil {
			p.Thumbnail = *u.Thumbnail
		}
		if u.OriginalPrice != nil {
			p.OriginalPrice = *u.OriginalPrice
		}
		if u.DiscountedPrice != nil {
			p.DiscountedPrice = *u.DiscountedPrice
		}
		if u.SaleStatus != nil {
			p.SaleStatus = *u.SaleStatus
		}
		s.products[u.ProductSetID] = p
		applied++
	}
	return applied, nil
}

func (s *Store) RecordReview(_ context.Context, entry repository.ReviewHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, entry)
	return nil
}

func (s *Store) UpsertPriceHistory(_ context.Context, entry repository.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s|%s", entry.ProductSetID, entry.Date.Format("2006-01-02"))
	s.prices[key] = entry
	return nil
}

func (s *Store) ListBanners(_ context.Context, kind repository.BannerKind) ([]repository.Banner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.Banner, len(s.banners[kind]))
	copy(out, s.banners[kind])
	return out, nil
}

// Reviews returns a snapshot of recorded review-history entries, for test
// assertions.
func (s *Store) Reviews() []repository.ReviewHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.ReviewHistoryEntry, len(s.reviews))
	copy(out, s.reviews)
	return out
}

// PriceHistoryCount returns the number of distinct (product, date) price
// snapshots recorded, for test assertions.
func (s *Store) PriceHistoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}

func matchesFilter(p model.ProductSet, filter repository.ProductFilter) bool {
	if filter.LinkURLPattern != "" && !strings.Contains(p.LinkURL, filter.LinkURLPattern) {
		return false
	}
	if filter.SaleStatus != nil && p.SaleStatus != *filter.SaleStatus {
		return false
	}
	if filter.ProductID != "" && p.ProductID != filter.ProductID {
		return false
	}
	if filter.ExcludeAutoCrawled && p.AutoCrawled {
		return false
	}
	return true
}

var (
	_ repository.ProductRepository = (*Store)(nil)
	_ repository.UpdateRepository  = (*Store)(nil)
	_ repository.HistoryRepository = (*Store)(nil)
	_ repository.BannerRepository  = (*Store)(nil)
)
