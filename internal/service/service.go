// Package service provides business-logic for the app
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/UnendingLoop/DigitRecognizer/internal/config"
	"github.com/UnendingLoop/DigitRecognizer/internal/imageproc"
	"github.com/UnendingLoop/DigitRecognizer/internal/metrics"
	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/UnendingLoop/DigitRecognizer/internal/mwlogger"
	"github.com/google/uuid"
)

// сколько даем очереди на одно событие, независимо от запроса
const eventTimeout = 10 * time.Second

type RecognitionService struct {
	predictor   Predictor
	publisher   EventPublisher
	storage     UploadStorage
	events      *sync.WaitGroup
	keyPrefix   string
	debugRender bool
	renderScale int
}

// NewRecognitionService - strg может быть nil, тогда загрузки не сохраняются
func NewRecognitionService(cfg *config.AppConfig, pred Predictor, pub EventPublisher, strg UploadStorage) *RecognitionService {
	return &RecognitionService{
		predictor:   pred,
		publisher:   pub,
		storage:     strg,
		events:      &sync.WaitGroup{},
		keyPrefix:   cfg.Storage.KeyPrefix,
		debugRender: cfg.DebugRender,
		renderScale: cfg.RenderScale,
	}
}

// Predictor - контракт адаптера инференса
type Predictor interface {
	Predict(ctx context.Context, t *model.Tensor) (*model.PredictionResult, error)
}

// EventPublisher - контракт для работы с очередью
type EventPublisher interface {
	Publish(ctx context.Context, ev model.PredictionEvent) error
}

// UploadStorage - контракт для работы с хранилищем
type UploadStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// Predict runs one uploaded image through preprocessing and the model.
// Either the whole response is returned or an error, never a partial result.
func (c RecognitionService) Predict(ctx context.Context, upload *model.UploadData) (*model.PredictResponse, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// вычитываем загрузку целиком - нужна и для декодирования, и для хранилища
	raw, err := readUpload(upload)
	if err != nil {
		metrics.PredictionErrors.WithLabelValues(metrics.KindInvalidImage).Inc()
		logger.Warn().Err(err).Msg("Rejected upload")
		return nil, model.ErrInvalidImage
	}

	tensor, err := imageproc.Preprocess(raw.Reader())
	if err != nil {
		metrics.PredictionErrors.WithLabelValues(metrics.KindInvalidImage).Inc()
		logger.Warn().Err(err).Str("file", upload.FileName).Msg("Failed to preprocess upload")
		return nil, model.ErrInvalidImage
	}

	// кладем в хранилище исходник
	var uploadID, key string
	if c.storage != nil {
		uploadID = uuid.New().String()
		key = c.uploadKey(uploadID, raw.contentType)
		if err := c.storage.Put(ctx, key, raw.Size(), raw.contentType, raw.Reader()); err != nil {
			metrics.PredictionErrors.WithLabelValues(metrics.KindStorage).Inc()
			logger.Error().Err(err).Msg("Failed to save upload in Storage")
			return nil, model.ErrCommon500
		}
	}

	res, err := c.predictor.Predict(ctx, tensor)
	if err != nil {
		c.dropUpload(ctx, key)
		switch {
		case errors.Is(err, model.ErrShapeMismatch):
			logger.Error().Err(err).Msg("Preprocessed tensor doesn't fit the model")
			return nil, model.ErrShapeMismatch
		case errors.Is(err, model.ErrInference):
			logger.Error().Err(err).Msg("Inference failed")
			return nil, model.ErrInference
		default:
			logger.Error().Err(err).Msg("Failed to get prediction")
			return nil, model.ErrCommon500
		}
	}

	resp := &model.PredictResponse{
		Digit:      res.Digit,
		Confidence: res.Confidence,
		UploadID:   uploadID,
	}

	// отладочная картинка строится по уже посчитанному тензору, после предсказания
	if c.debugRender {
		img, err := imageproc.RenderBase64(tensor, c.renderScale)
		if err != nil {
			c.dropUpload(ctx, key)
			logger.Error().Err(err).Msg("Failed to render processed image")
			return nil, model.ErrCommon500
		}
		resp.ProcessedImage = img
	}

	// событие в очередь - не часть результата: отправляем в фоне, ошибку только логируем
	c.publishEvent(ctx, model.PredictionEvent{
		UploadID:   uploadID,
		Digit:      res.Digit,
		Confidence: res.Confidence,
		CreatedAt:  time.Now().UTC(),
	})

	logger.Info().Int("digit", res.Digit).Float32("confidence", res.Confidence).Msg("Digit recognized")
	return resp, nil
}

// LoadUpload streams a previously saved upload back.
func (c RecognitionService) LoadUpload(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, "", model.ErrIncorrectID
	}
	if c.storage == nil {
		return nil, "", model.ErrUploadNotFound
	}

	// расширение в ключе неизвестно - перебираем поддерживаемые форматы
	for _, cType := range uploadTypes {
		data, storedType, err := c.storage.Get(ctx, c.uploadKey(id, cType))
		switch {
		case err == nil:
			return data, storedType, nil
		case errors.Is(err, model.ErrUploadNotFound):
			continue
		default:
			metrics.PredictionErrors.WithLabelValues(metrics.KindStorage).Inc()
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch upload %q from Storage", id))
			return nil, "", model.ErrCommon500
		}
	}

	return nil, "", model.ErrUploadNotFound
}

// WaitEvents blocks until every prediction event started so far has been published or has failed.
func (c RecognitionService) WaitEvents() {
	c.events.Wait()
}

func (c RecognitionService) publishEvent(ctx context.Context, ev model.PredictionEvent) {
	logger := mwlogger.LoggerFromContext(ctx)
	// ответ уже ушел - контекст запроса отменится раньше отправки
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)

	c.events.Add(1)
	go func() {
		defer c.events.Done()
		defer cancel()
		if err := c.publisher.Publish(pubCtx, ev); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish prediction for upload %q", ev.UploadID))
		}
	}()
}

func (c RecognitionService) dropUpload(ctx context.Context, key string) {
	if key == "" {
		return
	}
	// запрос уже мог быть отменен - удаляем все равно
	if err := c.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to delete upload %q after failed prediction", key))
	}
}

func (c RecognitionService) uploadKey(id, contentType string) string {
	return c.keyPrefix + id + model.GetImageFileExt[contentType]
}
