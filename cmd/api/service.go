package main

import (
	"context"
	"io"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
)

type DigitAPIService interface {
	Predict(ctx context.Context, upload *model.UploadData) (*model.PredictResponse, error)
	LoadUpload(ctx context.Context, id string) (io.ReadCloser, string, error)
	WaitEvents()
}
