package inference

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/UnendingLoop/DigitRecognizer/internal/metrics"
)

// Pool owns a fixed set of engines and lends each one to a single caller at a time.
// A pool of one engine serializes all invocations.
type Pool struct {
	free  chan Engine
	all   []Engine
	shape []int64
}

func NewPool(engines ...Engine) (*Pool, error) {
	if len(engines) == 0 {
		return nil, errors.New("engine pool needs at least one engine")
	}

	shape := engines[0].InputShape()
	free := make(chan Engine, len(engines))
	for i, e := range engines {
		if e == nil {
			return nil, fmt.Errorf("nil engine #%d provided to pool", i)
		}
		// все движки пула обязаны быть одной и той же моделью
		if !slices.Equal(shape, e.InputShape()) {
			return nil, fmt.Errorf("engine #%d input shape %v differs from %v", i, e.InputShape(), shape)
		}
		free <- e
	}

	return &Pool{free: free, all: engines, shape: shape}, nil
}

// Acquire blocks until an engine is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (Engine, error) {
	select {
	case e := <-p.free:
		metrics.EnginesInUse.Inc()
		return e, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for free engine: %w", ctx.Err())
	}
}

func (p *Pool) Release(e Engine) {
	metrics.EnginesInUse.Dec()
	p.free <- e
}

func (p *Pool) InputShape() []int64 {
	return p.shape
}

func (p *Pool) Size() int {
	return len(p.all)
}

// Close closes every engine; call it only when no request can reach the pool anymore.
func (p *Pool) Close() error {
	errs := make([]error, 0, len(p.all))
	for _, e := range p.all {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}
