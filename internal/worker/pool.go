package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Result pairs an input with the outcome of processing it.
type Result[T any, R any] struct {
	Input  T
	Output R
	Err    error
	// Skipped is set when the context ended before the input was processed.
	Skipped bool
}

// ProcessFunc processes a single input.
type ProcessFunc[T any, R any] func(ctx context.Context, input T) (R, error)

// Pool runs a ProcessFunc over inputs with a fixed number of workers.
type Pool[T any, R any] struct {
	workers int
	process ProcessFunc[T, R]
	// Label names an input in failure logs.
	Label func(T) string
}

// NewPool creates a new worker pool.
func NewPool[T any, R any](workers int, fn ProcessFunc[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{
		workers: workers,
		process: fn,
	}
}

// Execute processes every input and returns the results in input order.
// Inputs not reached before ctx is done are marked Skipped.
func (p *Pool[T, R]) Execute(ctx context.Context, inputs []T) []Result[T, R] {
	results := make([]Result[T, R], len(inputs))
	for i, in := range inputs {
		results[i] = Result[T, R]{Input: in, Skipped: true}
	}

	inputCh := make(chan int)
	var wg sync.WaitGroup
	for w := range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range inputCh {
				out, err := p.process(ctx, inputs[idx])
				results[idx] = Result[T, R]{Input: inputs[idx], Output: out, Err: err}
				if err != nil {
					ev := log.Error().Err(err).Int("worker", w).Int("index", idx)
					if p.Label != nil {
						ev = ev.Str("input", p.Label(inputs[idx]))
					}
					ev.Msg("Task failed")
				}
			}
		}()
	}

send:
	for i := range inputs {
		select {
		case <-ctx.Done():
			break send
		case inputCh <- i:
		}
	}
	close(inputCh)

	wg.Wait()
	return results
}

// Batch splits items into consecutive batches of at most batchSize.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		batches = append(batches, items[i:min(i+batchSize, len(items))])
	}
	return batches
}
