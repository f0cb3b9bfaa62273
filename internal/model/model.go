// Package model provides data-structs for internal app-usage
package model

import (
	"errors"
	"io"
	"time"

	"github.com/disintegration/imaging"
)

// Размеры входа сети: батч из одной картинки 28x28, один канал, channel-last
const (
	TensorBatch    = 1
	TensorHeight   = 28
	TensorWidth    = 28
	TensorChannels = 1
	NumClasses     = 10
)

// TensorShape - единственная допустимая форма входного тензора
var TensorShape = []int64{TensorBatch, TensorHeight, TensorWidth, TensorChannels}

// Tensor - нормализованный вход для движка инференса, значения в [0, 1]
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor - пустой тензор фиксированной формы
func NewTensor() *Tensor {
	shape := make([]int64, len(TensorShape))
	copy(shape, TensorShape)
	return &Tensor{
		Shape: shape,
		Data:  make([]float32, TensorBatch*TensorHeight*TensorWidth*TensorChannels),
	}
}

// At - значение пикселя (x, y) единственной картинки батча
func (t *Tensor) At(x, y int) float32 {
	return t.Data[y*TensorWidth+x]
}

// ShapeEquals - совпадает ли форма тензора с ожидаемой
func (t *Tensor) ShapeEquals(shape []int64) bool {
	if t == nil || len(t.Shape) != len(shape) {
		return false
	}
	size := int64(1)
	for i := range shape {
		if t.Shape[i] != shape[i] {
			return false
		}
		size *= shape[i]
	}
	return int64(len(t.Data)) == size
}

//---------------------

// PredictionResult - цифра, уверенность в процентах и сырой выход модели
type PredictionResult struct {
	Digit      int       `json:"digit"`
	Confidence float32   `json:"confidence"`
	Scores     []float32 `json:"-"`
}

// PredictResponse - то что уходит клиенту с эндпоинта /predict
type PredictResponse struct {
	Digit          int     `json:"digit"`
	Confidence     float32 `json:"confidence"`
	ProcessedImage string  `json:"processed_image,omitempty"`
	UploadID       string  `json:"upload_id,omitempty"`
}

// PredictionEvent - сообщение в очередь после успешного распознавания
type PredictionEvent struct {
	UploadID   string    `json:"upload_id,omitempty"`
	Digit      int       `json:"digit"`
	Confidence float32   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

//-------------------

type UploadData struct {
	File        io.Reader
	FileName    string
	ContentType string
	Size        int64
}

// ------------------

var (
	ErrCommon500      error = errors.New("something went wrong. Try again later")        // 500
	ErrInvalidImage   error = errors.New("empty or undecodable image provided")          // 400
	ErrIncorrectID    error = errors.New("incorrect upload UUID")                        // 400
	ErrUploadNotFound error = errors.New("specified upload doesn't exist")               // 404
	ErrShapeMismatch  error = errors.New("tensor shape doesn't match model input shape") // 500
	ErrInference      error = errors.New("error predicting digit")                       // 500
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	BMP  = "image/bmp"
	TIFF = "image/tiff"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
	BMP:  ".bmp",
	TIFF: ".tiff",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
	BMP:  true,
	TIFF: true,
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.GIF:  GIF,
	imaging.PNG:  PNG,
	imaging.BMP:  BMP,
	imaging.TIFF: TIFF,
}
