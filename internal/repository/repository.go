// Package repository declares the storage-facing interfaces the pipeline
// nodes depend on, generalizing the teacher's StorageManager split
// (internal/interfaces/storage.go) from one composite manager exposing
// document/job/connector storages to four narrow interfaces scoped to this
// domain's row shapes. A process-memory implementation lives in memrepo
// for tests and the example binary; a real row-store adapter is out of scope per the
// specification and is never implemented here.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/validation-engine/internal/model"
)

// ProductFilter narrows the set of rows Fetch reads from ProductRepository.
type ProductFilter struct {
	LinkURLPattern     string
	SaleStatus         *model.SaleStatus
	ProductID          string
	ExcludeAutoCrawled bool
	Limit              int
	Offset             int
}

// ProductRepository is the read path Fetch uses to pull the catalog rows a
// job will validate against.
type ProductRepository interface {
	// FindProducts returns rows matching filter, ordered by product_set_id
	// for stable pagination across repeated calls with increasing Offset.
	FindProducts(ctx context.Context, filter ProductFilter) ([]model.ProductSet, error)
	CountProducts(ctx context.Context, filter ProductFilter) (int, error)
	GetProduct(ctx context.Context, productSetID uuid.UUID) (*model.ProductSet, error)
}

// ProductUpdate is one row's worth of corrected fields Update applies after
// a mismatch, with SkipFields already excluded by the caller.
type ProductUpdate struct {
	ProductSetID    uuid.UUID
	ProductName     *string
	Thumbnail       *string
	OriginalPrice   *int
	DiscountedPrice *int
	SaleStatus      *model.SaleStatus
}

// UpdateRepository is the write path Update uses to push corrected fields
// back into the catalog.
type UpdateRepository interface {
	ApplyUpdates(ctx context.Context, updates []ProductUpdate) (applied int, err error)
}

// ReviewHistoryEntry is one attempted-update audit row, written regardless
// of whether the update changed a price (§4.6 Update). Before/After capture
// the full product snapshot on either side of the applied update so the
// audit trail can show exactly what changed, not just that something did.
type ReviewHistoryEntry struct {
	ProductSetID uuid.UUID
	Status       model.RecordStatus
	Match        bool
	Note         string
	Before       model.ProductSet
	After        model.ProductSet
	CreatedAt    time.Time
}

// PriceHistoryEntry is one canonical daily price snapshot, upserted by
// (ProductSetID, Date).
type PriceHistoryEntry struct {
	ProductSetID    uuid.UUID
	Date            time.Time
	OriginalPrice   int
	DiscountedPrice int
}

// HistoryRepository is the audit-trail write path Update uses. History
// failures are logged and counted but never fail the node (§4.6, §7).
type HistoryRepository interface {
	RecordReview(ctx context.Context, entry ReviewHistoryEntry) error
	UpsertPriceHistory(ctx context.Context, entry PriceHistoryEntry) error
}

// BannerKind distinguishes the three curated monitor lists.
type BannerKind string

const (
	BannerKindActive  BannerKind = "active_banner"
	BannerKindPick    BannerKind = "pick_section"
	BannerKindCollabo BannerKind = "collabo_banner"
)

// Banner is one curated monitor-list entry (§4.9).
type Banner struct {
	ID          uuid.UUID
	Kind        BannerKind
	Platform    model.Platform
	URL         string
	StartDate   time.Time
	EndDate     time.Time
	ExcludeFrom []model.Platform
}

// BannerRepository is the read path monitor nodes use in place of Fetch.
type BannerRepository interface {
	ListBanners(ctx context.Context, kind BannerKind) ([]Banner, error)
}
