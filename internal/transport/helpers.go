package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500),
		errors.Is(err, model.ErrShapeMismatch),
		errors.Is(err, model.ErrInference):
		return 500
	case errors.Is(err, model.ErrUploadNotFound):
		return 404
	case errors.Is(err, model.ErrInvalidImage),
		errors.Is(err, model.ErrIncorrectID):
		return 400
	default:
		return 500
	}
}

// errorMessage - детали 500-х остаются в логах, клиенту уходит общее сообщение
func errorMessage(code int, err error) string {
	if code >= 500 {
		return model.ErrCommon500.Error()
	}
	return err.Error()
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
