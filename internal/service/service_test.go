package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/color"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/UnendingLoop/DigitRecognizer/internal/config"
	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func okPredictor(digit int) *mockPredictor {
	return &mockPredictor{
		predictFn: func(ctx context.Context, t *model.Tensor) (*model.PredictionResult, error) {
			return &model.PredictionResult{Digit: digit, Confidence: 97.5}, nil
		},
	}
}

func noopPublisher() *mockPublisher {
	return &mockPublisher{
		publishFn: func(ctx context.Context, ev model.PredictionEvent) error { return nil },
	}
}

func newTestService(pred Predictor, pub EventPublisher, strg UploadStorage, debug bool) *RecognitionService {
	cfg := &config.AppConfig{
		DebugRender: debug,
		RenderScale: 2,
		Storage:     config.StorageConfig{KeyPrefix: "uploads/"},
	}
	return NewRecognitionService(cfg, pred, pub, strg)
}

// PREDICT - SUCCESS
func TestRecognitionService_Predict_OK(t *testing.T) {
	var savedKey string
	var savedCType string
	var published *model.PredictionEvent

	strg := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			data, err := io.ReadAll(r)
			require.NoError(t, err)
			require.EqualValues(t, len(data), size)
			savedKey, savedCType = key, ct
			return nil
		},
	}
	pub := &mockPublisher{
		publishFn: func(ctx context.Context, ev model.PredictionEvent) error {
			published = &ev
			return nil
		},
	}
	pred := okPredictor(7)

	svc := newTestService(pred, pub, strg, true)

	res, err := svc.Predict(context.Background(), pngUpload(t, color.White))
	require.NoError(t, err)
	svc.WaitEvents()
	require.Equal(t, 7, res.Digit)
	require.InDelta(t, 97.5, res.Confidence, 1e-6)
	require.NoError(t, uuid.Validate(res.UploadID))
	require.Equal(t, "uploads/"+res.UploadID+".png", savedKey)
	require.Equal(t, model.PNG, savedCType)
	require.Equal(t, 1, pred.calls)

	// отладочная картинка - валидный PNG 56x56 (scale = 2)
	raw, err := base64.StdEncoding.DecodeString(res.ProcessedImage)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 56, img.Bounds().Dx())

	require.NotNil(t, published)
	require.Equal(t, res.UploadID, published.UploadID)
	require.Equal(t, 7, published.Digit)
}

// PREDICT - SUCCESS - без хранилища и без отладочной картинки
func TestRecognitionService_Predict_NoStorageNoRender(t *testing.T) {
	svc := newTestService(okPredictor(3), noopPublisher(), nil, false)

	res, err := svc.Predict(context.Background(), pngUpload(t, color.Black))
	require.NoError(t, err)
	require.Equal(t, 3, res.Digit)
	require.Empty(t, res.UploadID)
	require.Empty(t, res.ProcessedImage)
}

// PREDICT - SUCCESS - все поддерживаемые форматы, тип определяется по содержимому
func TestRecognitionService_Predict_Formats(t *testing.T) {
	tests := []struct {
		name      string
		format    imaging.Format
		wantCType string
		wantExt   string
	}{
		{name: "png", format: imaging.PNG, wantCType: model.PNG, wantExt: ".png"},
		{name: "jpeg", format: imaging.JPEG, wantCType: model.JPEG, wantExt: ".jpg"},
		{name: "gif", format: imaging.GIF, wantCType: model.GIF, wantExt: ".gif"},
		{name: "bmp", format: imaging.BMP, wantCType: model.BMP, wantExt: ".bmp"},
		{name: "tiff", format: imaging.TIFF, wantCType: model.TIFF, wantExt: ".tiff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var savedKey, savedCType string
			strg := &mockStorage{
				putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
					savedKey, savedCType = key, ct
					return nil
				},
			}
			svc := newTestService(okPredictor(5), noopPublisher(), strg, false)

			upload := encodedUpload(t, color.White, tt.format)
			// заголовок клиента не влияет на тип
			upload.ContentType = "application/octet-stream"

			res, err := svc.Predict(context.Background(), upload)
			require.NoError(t, err)
			require.Equal(t, 5, res.Digit)
			require.Equal(t, tt.wantCType, savedCType)
			require.Equal(t, "uploads/"+res.UploadID+tt.wantExt, savedKey)
		})
	}
}

// PREDICT - событие уходит в фоне и не зависит от отмены запроса
func TestRecognitionService_Predict_PublishDoesNotBlockResponse(t *testing.T) {
	release := make(chan struct{})
	var pubErr error
	var hasDeadline bool
	pub := &mockPublisher{
		publishFn: func(ctx context.Context, ev model.PredictionEvent) error {
			<-release
			_, hasDeadline = ctx.Deadline()
			pubErr = ctx.Err()
			return nil
		},
	}
	svc := newTestService(okPredictor(2), pub, nil, false)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := svc.Predict(ctx, pngUpload(t, color.White))
	require.NoError(t, err)
	require.Equal(t, 2, res.Digit)

	// ответ получен, а публикация еще висит; запрос завершился
	cancel()
	close(release)
	svc.WaitEvents()

	require.True(t, hasDeadline)
	require.NoError(t, pubErr)
}

// PREDICT - тензор, который видит модель
func TestRecognitionService_Predict_TensorPassedToModel(t *testing.T) {
	pred := &mockPredictor{
		predictFn: func(ctx context.Context, tensor *model.Tensor) (*model.PredictionResult, error) {
			require.True(t, tensor.ShapeEquals(model.TensorShape))
			for _, v := range tensor.Data {
				require.InDelta(t, 1.0, v, 1e-6)
			}
			return &model.PredictionResult{Digit: 1, Confidence: 50}, nil
		},
	}
	svc := newTestService(pred, noopPublisher(), nil, false)

	_, err := svc.Predict(context.Background(), pngUpload(t, color.White))
	require.NoError(t, err)
}

// PREDICT - VALIDATION FAIL: движок не вызывается
func TestRecognitionService_Predict_InvalidImage(t *testing.T) {
	tests := []struct {
		name   string
		upload *model.UploadData
	}{
		{name: "nil upload", upload: nil},
		{name: "nil file", upload: &model.UploadData{FileName: "a.png"}},
		{name: "zero-length payload", upload: &model.UploadData{File: newFakeFile(""), FileName: "a.png", ContentType: model.PNG}},
		{name: "not an image", upload: &model.UploadData{File: newFakeFile("hello world"), FileName: "a.png", ContentType: model.PNG}},
		{name: "truncated png", upload: truncatedPNG(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := okPredictor(0)
			strg := &mockStorage{}
			svc := newTestService(pred, noopPublisher(), strg, true)

			res, err := svc.Predict(context.Background(), tt.upload)
			require.ErrorIs(t, err, model.ErrInvalidImage)
			require.Nil(t, res)
			require.Zero(t, pred.calls)
		})
	}
}

// PREDICT - STORAGE PUT FAIL
func TestRecognitionService_Predict_StorageError(t *testing.T) {
	pred := okPredictor(0)
	strg := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			return errors.New("storage is down")
		},
	}
	svc := newTestService(pred, noopPublisher(), strg, false)

	_, err := svc.Predict(context.Background(), pngUpload(t, color.White))
	require.ErrorIs(t, err, model.ErrCommon500)
	require.Zero(t, pred.calls)
}

// PREDICT - PREDICTOR FAIL: загрузка удаляется, ошибка отображается в таксономию
func TestRecognitionService_Predict_PredictorErrors(t *testing.T) {
	tests := []struct {
		name    string
		predErr error
		wantErr error
	}{
		{name: "shape mismatch", predErr: fmt.Errorf("wrapped: %w", model.ErrShapeMismatch), wantErr: model.ErrShapeMismatch},
		{name: "inference", predErr: fmt.Errorf("%w: engine exploded", model.ErrInference), wantErr: model.ErrInference},
		{name: "canceled", predErr: context.Canceled, wantErr: model.ErrCommon500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var putKey, deletedKey string
			strg := &mockStorage{
				putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
					putKey = key
					return nil
				},
				deleteFn: func(ctx context.Context, key string) error {
					deletedKey = key
					return nil
				},
			}
			pred := &mockPredictor{
				predictFn: func(ctx context.Context, t *model.Tensor) (*model.PredictionResult, error) {
					return nil, tt.predErr
				},
			}
			published := false
			pub := &mockPublisher{
				publishFn: func(ctx context.Context, ev model.PredictionEvent) error {
					published = true
					return nil
				},
			}
			svc := newTestService(pred, pub, strg, true)

			res, err := svc.Predict(context.Background(), pngUpload(t, color.White))
			svc.WaitEvents()
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, res)
			require.False(t, published)
			require.NotEmpty(t, putKey)
			require.Equal(t, putKey, deletedKey)
		})
	}
}

// PREDICT - PUBLISH FAIL не ломает ответ
func TestRecognitionService_Predict_PublishErrorIgnored(t *testing.T) {
	pub := &mockPublisher{
		publishFn: func(ctx context.Context, ev model.PredictionEvent) error {
			return errors.New("kafka is down")
		},
	}
	svc := newTestService(okPredictor(9), pub, nil, false)

	res, err := svc.Predict(context.Background(), pngUpload(t, color.White))
	require.NoError(t, err)
	svc.WaitEvents()
	require.Equal(t, 9, res.Digit)
}

// LOADUPLOAD
func TestRecognitionService_LoadUpload(t *testing.T) {
	id := uuid.New().String()

	tests := []struct {
		name      string
		id        string
		strg      *mockStorage
		nilStrg   bool
		wantErr   error
		wantCType string
	}{
		{
			name: "found as jpeg",
			id:   id,
			strg: &mockStorage{
				getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
					if key != "uploads/"+id+".jpg" {
						return nil, "", model.ErrUploadNotFound
					}
					return io.NopCloser(strings.NewReader("jpeg")), model.JPEG, nil
				},
			},
			wantCType: model.JPEG,
		},
		{
			name:    "invalid id",
			id:      "bad-id",
			strg:    &mockStorage{},
			wantErr: model.ErrIncorrectID,
		},
		{
			name: "not found",
			id:   id,
			strg: &mockStorage{
				getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
					return nil, "", model.ErrUploadNotFound
				},
			},
			wantErr: model.ErrUploadNotFound,
		},
		{
			name: "storage failure",
			id:   id,
			strg: &mockStorage{
				getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
					return nil, "", errors.New("connection reset")
				},
			},
			wantErr: model.ErrCommon500,
		},
		{
			name:    "storage disabled",
			id:      id,
			nilStrg: true,
			wantErr: model.ErrUploadNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var strg UploadStorage = tt.strg
			if tt.nilStrg {
				strg = nil
			}
			svc := newTestService(okPredictor(0), noopPublisher(), strg, false)

			rc, cType, err := svc.LoadUpload(context.Background(), tt.id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantCType, cType)
			require.NoError(t, rc.Close())
		})
	}
}

// хелпер для создания файла
func newFakeFile(content string) multipart.File {
	return &fakeMultipartFile{
		Reader: bytes.NewReader([]byte(content)),
	}
}

// хелпер для генерации корректной загрузки
func pngUpload(t *testing.T, c color.Color) *model.UploadData {
	t.Helper()
	return encodedUpload(t, c, imaging.PNG)
}

func encodedUpload(t *testing.T, c color.Color, format imaging.Format) *model.UploadData {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(64, 48, c), format))

	cType := model.GetCType[format]
	return &model.UploadData{
		File:        newFakeFile(buf.String()),
		FileName:    "digit" + model.GetImageFileExt[cType],
		ContentType: cType,
		Size:        int64(buf.Len()),
	}
}

func truncatedPNG(t *testing.T) *model.UploadData {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(64, 64, color.White), imaging.PNG))
	half := buf.Bytes()[:buf.Len()/2]

	return &model.UploadData{
		File:        newFakeFile(string(half)),
		FileName:    "broken.png",
		ContentType: model.PNG,
		Size:        int64(len(half)),
	}
}
