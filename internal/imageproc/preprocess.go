// Package imageproc provides the image-to-tensor transform used by every path that feeds the model,
// and a debug rendering of tensors back into PNG images.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/disintegration/imaging"
)

// Resample - фильтр ресайза до 28x28. Один на весь проект: и сервинг, и оценка на датасете
var Resample = imaging.Linear

// DefaultMaxPixels - предел площади картинки до декодирования, 4096x4096
const DefaultMaxPixels = 4096 * 4096

// MaxPixels задается из конфига при старте, до первого запроса
var MaxPixels = DefaultMaxPixels

// Preprocess decodes an encoded image and turns it into a normalized (1, 28, 28, 1) tensor.
// Images whose header declares more than MaxPixels pixels are rejected before decoding.
func Preprocess(r io.Reader) (*model.Tensor, error) {
	if r == nil {
		return nil, fmt.Errorf("nil-reader provided to Preprocess: %w", model.ErrInvalidImage)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidImage, err)
	}

	// размеры из заголовка - маленький файл может объявить гигантскую картинку
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidImage, err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidImage, err)
	}

	return FromImage(img)
}

// FromImage converts any decoded image: luminance -> resize -> normalize.
func FromImage(img image.Image) (*model.Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image provided to FromImage: %w", model.ErrInvalidImage)
	}

	gray := imaging.Grayscale(img)
	resized := imaging.Resize(gray, model.TensorWidth, model.TensorHeight, Resample)

	// после Grayscale все три канала одинаковые - берем R
	g := image.NewGray(image.Rect(0, 0, model.TensorWidth, model.TensorHeight))
	for y := 0; y < model.TensorHeight; y++ {
		for x := 0; x < model.TensorWidth; x++ {
			g.Pix[y*g.Stride+x] = resized.Pix[y*resized.Stride+x*4]
		}
	}

	return FromGray(g)
}

func checkDimensions(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image is %dx%d: %w", w, h, model.ErrInvalidImage)
	}
	// делим, а не умножаем - без переполнения
	if w > MaxPixels/h {
		return fmt.Errorf("image is %dx%d, limit is %d pixels: %w", w, h, MaxPixels, model.ErrInvalidImage)
	}
	return nil
}

// FromGray normalizes an already 28x28 single-channel image, e.g. an MNIST sample.
func FromGray(g *image.Gray) (*model.Tensor, error) {
	if g == nil {
		return nil, errors.New("nil gray image provided to FromGray")
	}
	if g.Bounds().Dx() != model.TensorWidth || g.Bounds().Dy() != model.TensorHeight {
		return nil, fmt.Errorf("gray image is %dx%d, want %dx%d: %w",
			g.Bounds().Dx(), g.Bounds().Dy(), model.TensorWidth, model.TensorHeight, model.ErrShapeMismatch)
	}

	t := model.NewTensor()
	for y := 0; y < model.TensorHeight; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+model.TensorWidth]
		Normalize(t.Data[y*model.TensorWidth:(y+1)*model.TensorWidth], row)
	}
	return t, nil
}

// Normalize maps 8-bit intensities onto [0, 1]. dst and src must be of equal length.
func Normalize(dst []float32, src []byte) {
	for i, v := range src {
		dst[i] = float32(v) / 255.0
	}
}
