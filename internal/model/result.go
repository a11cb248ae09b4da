package model

import (
	"time"

	"github.com/google/uuid"
)

// RecordStatus is the per-product outcome written to the JSONL artifact.
type RecordStatus string

const (
	RecordStatusSuccess  RecordStatus = "success"
	RecordStatusFailed   RecordStatus = "failed"
	RecordStatusNotFound RecordStatus = "not_found"
)

// FieldComparison is the per-field match outcome between a scanned record
// and its stored counterpart.
type FieldComparison struct {
	ProductName     bool `json:"product_name"`
	Thumbnail       bool `json:"thumbnail"`
	OriginalPrice   bool `json:"original_price"`
	DiscountedPrice bool `json:"discounted_price"`
	SaleStatus      bool `json:"sale_status"`
}

// AllTrue reports whether every compared field matched.
func (c FieldComparison) AllTrue() bool {
	return c.ProductName && c.Thumbnail && c.OriginalPrice && c.DiscountedPrice && c.SaleStatus
}

// ComparisonRecord is one dense JSONL line: the result of fetching,
// scanning, and comparing one product. It is the shape shared by
// SingleScanResult / SingleValidationResult / SingleComparisonResult in the
// distilled terminology.
type ComparisonRecord struct {
	ProductSetID uuid.UUID        `json:"product_set_id"`
	ProductID    string           `json:"product_id"`
	URL          string           `json:"url"`
	Platform     Platform         `json:"platform"`
	DB           ProductSet       `json:"db"`
	Fetch        *ScannedData     `json:"fetch"`
	Comparison   FieldComparison  `json:"comparison"`
	Match        bool             `json:"match"`
	Status       RecordStatus     `json:"status"`
	Error        string           `json:"error,omitempty"`
	Timestamp    time.Time        `json:"validated_at"`
}

// Validate enforces the record-level invariants from the specification:
// a non-success record never matches, and a record with no fetch payload
// never reports any field as matching.
func (r *ComparisonRecord) Validate() error {
	if r.Status != RecordStatusSuccess && r.Match {
		return errInvariant("non-success record must have match=false")
	}
	if r.Fetch == nil && r.Comparison != (FieldComparison{}) {
		return errInvariant("record with no fetch payload must have an all-false comparison")
	}
	if r.Fetch != nil && r.Fetch.DiscountedPrice > 0 && r.Fetch.OriginalPrice > 0 &&
		r.Fetch.DiscountedPrice > r.Fetch.OriginalPrice {
		return errInvariant("discounted_price must not exceed original_price")
	}
	return nil
}

type invariantError string

func (e invariantError) Error() string { return string(e) }

func errInvariant(msg string) error { return invariantError(msg) }

// Summary is what Finalize returns once a Streaming Result Writer's file is
// closed: authoritative counts over everything appended during the job.
type Summary struct {
	FilePath       string                   `json:"file_path"`
	RecordCount    int                      `json:"record_count"`
	CountByStatus  map[RecordStatus]int     `json:"count_by_status"`
	MatchCount     int                      `json:"match_count"`
	MismatchCount  int                      `json:"mismatch_count"`
}

// MatchRate returns the fraction of records that matched, or 0 when there
// are no records.
func (s Summary) MatchRate() float64 {
	if s.RecordCount == 0 {
		return 0
	}
	return float64(s.MatchCount) / float64(s.RecordCount)
}

// FailureRate returns the fraction of records whose status was not success.
func (s Summary) FailureRate() float64 {
	if s.RecordCount == 0 {
		return 0
	}
	successLike := s.CountByStatus[RecordStatusSuccess]
	return float64(s.RecordCount-successLike) / float64(s.RecordCount)
}
