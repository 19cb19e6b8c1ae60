package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestPool_ExecutePreservesOrder(t *testing.T) {
	t.Parallel()

	pool := NewPool(3, func(_ context.Context, n int) (int, error) {
		if n == 4 {
			return 0, errors.New("four")
		}
		return n * n, nil
	})
	pool.Label = func(n int) string { return "n" }

	results := pool.Execute(context.Background(), []int{1, 2, 3, 4, 5})
	for i, r := range results {
		n := i + 1
		if r.Input != n || r.Skipped {
			t.Fatalf("result %d = %+v", i, r)
		}
		if n == 4 {
			if r.Err == nil {
				t.Fatal("expected error for 4")
			}
			continue
		}
		if r.Err != nil || r.Output != n*n {
			t.Fatalf("result %d = %+v", i, r)
		}
	}
}

func TestPool_CancelledContextSkips(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	pool := NewPool(0, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", nil
	})
	results := pool.Execute(ctx, []string{"a", "b", "c"})

	skipped := 0
	for _, r := range results {
		if r.Skipped {
			skipped++
		}
	}
	if skipped+int(calls.Load()) != 3 {
		t.Fatalf("skipped %d, processed %d", skipped, calls.Load())
	}
}

func TestBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		items []int
		size  int
		want  int
	}{
		{items: []int{1, 2, 3, 4, 5}, size: 2, want: 3},
		{items: []int{1, 2}, size: 0, want: 2},
		{items: nil, size: 3, want: 0},
	}
	for _, tt := range tests {
		if got := Batch(tt.items, tt.size); len(got) != tt.want {
			t.Errorf("Batch(%v, %d) = %d batches, want %d", tt.items, tt.size, len(got), tt.want)
		}
	}
}
