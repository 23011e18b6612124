package sync

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParallelCollectKeepsOrderAndIsolatesFailures(t *testing.T) {
	t.Parallel()

	items := []string{"US_food", "dup", "GB_books", "IN_travel"}
	var progress int64
	results := ParallelCollect(context.Background(), items, 3, func(_ context.Context, item string) (string, error) {
		if item == "dup" {
			return "", errors.New("duplicate")
		}
		return strings.ToLower(item), nil
	}, func(done, total int64) {
		atomic.StoreInt64(&progress, done)
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
	})

	if len(results) != len(items) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(items))
	}
	for i, res := range results {
		if res.Item != items[i] {
			t.Fatalf("results[%d].Item = %q, want %q", i, res.Item, items[i])
		}
	}
	if results[1].Err == nil {
		t.Fatalf("results[1].Err = nil, want duplicate error")
	}
	ok := Succeeded(results)
	if len(ok) != 3 || ok[0] != "us_food" || ok[2] != "in_travel" {
		t.Fatalf("Succeeded() = %v", ok)
	}
	if got := atomic.LoadInt64(&progress); got != 3 {
		t.Fatalf("progress = %d, want 3", got)
	}
}

func TestParallelCollectCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := ParallelCollect(ctx, []int{1, 2}, 0, func(context.Context, int) (int, error) {
		t.Errorf("process called after cancel")
		return 0, nil
	}, nil)
	for _, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("Err = %v, want context.Canceled", res.Err)
		}
	}
}

func TestParallelCollectEmpty(t *testing.T) {
	t.Parallel()

	if got := ParallelCollect(context.Background(), []int(nil), 4, func(context.Context, int) (int, error) { return 0, nil }, nil); got != nil {
		t.Fatalf("ParallelCollect(nil) = %v, want nil", got)
	}
}
