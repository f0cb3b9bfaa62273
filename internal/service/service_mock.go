package service

import (
	"bytes"
	"context"
	"io"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
)

// MOCK PREDICTOR

type mockPredictor struct {
	predictFn func(ctx context.Context, t *model.Tensor) (*model.PredictionResult, error)
	calls     int
}

func (m *mockPredictor) Predict(ctx context.Context, t *model.Tensor) (*model.PredictionResult, error) {
	m.calls++
	return m.predictFn(ctx, t)
}

// MOCK STORAGE

type mockStorage struct {
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.deleteFn(ctx, key)
}

// MOCK PUBLISHER

type mockPublisher struct {
	publishFn func(ctx context.Context, ev model.PredictionEvent) error
}

func (m *mockPublisher) Publish(ctx context.Context, ev model.PredictionEvent) error {
	return m.publishFn(ctx, ev)
}

// MOCK для multipart.File
type fakeMultipartFile struct {
	*bytes.Reader
}

func (f *fakeMultipartFile) Close() error {
	return nil
}
