package inference

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/UnendingLoop/DigitRecognizer/internal/metrics"
	"github.com/UnendingLoop/DigitRecognizer/internal/model"
)

type Predictor struct {
	pool    *Pool
	onClose func()
}

func NewPredictor(pool *Pool) *Predictor {
	return &Predictor{pool: pool}
}

// Predict binds the tensor to a free engine, runs it once and reduces the output by arg-max.
// Failures are never retried.
func (p *Predictor) Predict(ctx context.Context, t *model.Tensor) (*model.PredictionResult, error) {
	if !t.ShapeEquals(p.pool.InputShape()) {
		metrics.PredictionErrors.WithLabelValues(metrics.KindShapeMismatch).Inc()
		return nil, fmt.Errorf("tensor %s vs engine input %v: %w", describe(t), p.pool.InputShape(), model.ErrShapeMismatch)
	}

	waitStart := time.Now()
	eng, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	metrics.EngineWait.Observe(time.Since(waitStart).Seconds())
	defer p.pool.Release(eng)

	if err := eng.Bind(t.Data); err != nil {
		metrics.PredictionErrors.WithLabelValues(metrics.KindShapeMismatch).Inc()
		return nil, fmt.Errorf("failed to bind input tensor: %w", err)
	}

	start := time.Now()
	if err := invoke(eng); err != nil {
		metrics.PredictionErrors.WithLabelValues(metrics.KindInference).Inc()
		return nil, fmt.Errorf("%w: %w", model.ErrInference, err)
	}
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())

	// копируем до возврата движка в пул - буфер выхода принадлежит движку
	scores := append([]float32(nil), eng.Output()...)
	if len(scores) != model.NumClasses {
		metrics.PredictionErrors.WithLabelValues(metrics.KindInference).Inc()
		return nil, fmt.Errorf("%w: output vector has %d values, want %d", model.ErrInference, len(scores), model.NumClasses)
	}

	digit := Argmax(scores)
	metrics.Predictions.WithLabelValues(strconv.Itoa(digit)).Inc()

	return &model.PredictionResult{
		Digit:      digit,
		Confidence: scores[digit] * 100,
		Scores:     scores,
	}, nil
}

// Close closes every engine of the pool. Callers must be done with Predict.
func (p *Predictor) Close() error {
	err := p.pool.Close()
	if p.onClose != nil {
		p.onClose()
	}
	return err
}

// Argmax returns the index of the largest score, the first one on ties, -1 for an empty slice.
func Argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	idx := 0
	for i, v := range scores {
		if v > scores[idx] {
			idx = i
		}
	}
	return idx
}

func invoke(eng Engine) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panicked: %v", r)
		}
	}()
	return eng.Invoke()
}

func describe(t *model.Tensor) string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v (%d values)", t.Shape, len(t.Data))
}
