package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
)

type mockDigitService struct {
	predictFn    func(ctx context.Context, u *model.UploadData) (*model.PredictResponse, error)
	loadUploadFn func(ctx context.Context, id string) (io.ReadCloser, string, error)
}

func (m *mockDigitService) Predict(ctx context.Context, u *model.UploadData) (*model.PredictResponse, error) {
	return m.predictFn(ctx, u)
}

func (m *mockDigitService) LoadUpload(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadUploadFn(ctx, id)
}
