package engine

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/ternarybob/validation-engine/internal/model"
)

// BatchRunner.Run launches a real browser through browserpool.Pool and so
// isn't exercised here (no Chrome binary assumed present, matching
// browserpool's own test split); ClampConcurrency and Split are pure and
// covered directly.

func TestClampConcurrency(t *testing.T) {
	cases := []struct {
		name      string
		requested int
		cfg       model.Concurrency
		want      int
	}{
		{"uses default when unrequested", 0, model.Concurrency{Default: 3, Max: 10}, 3},
		{"falls back to 1 with no default", 0, model.Concurrency{}, 1},
		{"clamps above max", 20, model.Concurrency{Default: 3, Max: 5}, 5},
		{"falls back to max 10 with no configured max", 50, model.Concurrency{Default: 3}, 10},
		{"honors an in-range request", 4, model.Concurrency{Default: 3, Max: 10}, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClampConcurrency(tc.requested, tc.cfg); got != tc.want {
				t.Errorf("ClampConcurrency(%d, %+v) = %d, want %d", tc.requested, tc.cfg, got, tc.want)
			}
		})
	}
}

func TestSplit_PreservesOrderWithinBatch(t *testing.T) {
	products := make([]model.ProductSet, 7)
	for i := range products {
		products[i] = model.ProductSet{ProductSetID: uuid.New(), ProductID: string(rune('A' + i))}
	}

	batches := Split(products, 3)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}

	total := 0
	for _, b := range batches {
		total += len(b)
		for i := 1; i < len(b); i++ {
			// Round-robin assignment preserves the relative order products
			// were seen in, within each batch.
			if b[i].ProductID <= b[i-1].ProductID {
				t.Errorf("batch not in original order: %v", b)
			}
		}
	}
	if total != len(products) {
		t.Errorf("expected every product assigned to exactly one batch, got total %d", total)
	}
}

func TestSplit_ZeroBatchesDefaultsToOne(t *testing.T) {
	products := []model.ProductSet{{ProductID: "a"}, {ProductID: "b"}}
	batches := Split(products, 0)
	if len(batches) != 1 || !reflect.DeepEqual(batches[0], products) {
		t.Errorf("expected a single batch with all products, got %v", batches)
	}
}
