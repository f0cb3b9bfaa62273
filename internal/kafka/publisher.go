package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/wb-go/wbf/retry"
)

// EventProducer - то, что умеет wbf-продюсер
type EventProducer interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// Стратегия ретрая отправки в очередь
var retryStrategy = retry.Strategy{
	Attempts: 3,
	Delay:    500 * time.Millisecond,
	Backoff:  2,
}

// PredictionPublisher sends every successful prediction to the events topic as JSON.
type PredictionPublisher struct {
	producer EventProducer
	strategy retry.Strategy
}

func NewPredictionPublisher(p EventProducer) *PredictionPublisher {
	return &PredictionPublisher{producer: p, strategy: retryStrategy}
}

func (p *PredictionPublisher) Publish(ctx context.Context, ev model.PredictionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction event: %w", err)
	}

	// ключ - id загрузки, если его нет - сама цифра
	key := ev.UploadID
	if key == "" {
		key = strconv.Itoa(ev.Digit)
	}

	return p.producer.SendWithRetry(ctx, p.strategy, []byte(key), payload)
}

// NoopPublisher - когда брокер не задан
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, model.PredictionEvent) error {
	return nil
}
