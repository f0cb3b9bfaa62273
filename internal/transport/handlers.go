// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"
)

type DigitHandler struct {
	service   DigitService
	maxUpload int64
	metrics   http.Handler
}

type DigitService interface {
	Predict(ctx context.Context, upload *model.UploadData) (*model.PredictResponse, error)
	LoadUpload(ctx context.Context, id string) (io.ReadCloser, string, error) // скачать исходную загрузку
}

func NewDigitHandler(svc DigitService, maxUpload int64) *DigitHandler {
	return &DigitHandler{
		service:   svc,
		maxUpload: maxUpload,
		metrics:   promhttp.Handler(),
	}
}

func (h DigitHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h DigitHandler) Predict(ctx *ginext.Context) {
	if h.maxUpload > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxUpload)
	}

	// парсинг загруженной картинки
	imageFile, imageHeader, err := ctx.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(413, map[string]string{"error": "uploaded file is too large"})
			return
		}
		ctx.JSON(400, map[string]string{"error": "file is required"})
		return
	}
	defer closeFileFlow(imageFile)

	upload := model.UploadData{
		File:        imageFile,
		FileName:    imageHeader.Filename,
		ContentType: imageHeader.Header.Get("Content-Type"),
		Size:        imageHeader.Size,
	}

	// передаем в сервис
	res, err := h.service.Predict(ctx.Request.Context(), &upload)
	if err != nil {
		code := errorCodeDefiner(err)
		ctx.JSON(code, map[string]string{"error": errorMessage(code, err)})
		return
	}

	ctx.JSON(200, res)
}

func (h DigitHandler) LoadUpload(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadUpload(ctx.Request.Context(), id)
	if err != nil {
		code := errorCodeDefiner(err)
		ctx.JSON(code, map[string]string{"error": errorMessage(code, err)})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		log.Printf("Failed to write response at byte %d for upload id %q: %v", n, id, err)
	}
}

func (h DigitHandler) Metrics(ctx *ginext.Context) {
	h.metrics.ServeHTTP(ctx.Writer, ctx.Request)
}
