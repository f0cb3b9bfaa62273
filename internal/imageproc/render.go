package imageproc

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Render draws a tensor back as a grayscale PNG, upscaled scale times with nearest-neighbour.
// The tensor is only read.
func Render(t *model.Tensor, scale int) (io.Reader, int64, error) {
	if t == nil || !t.ShapeEquals(model.TensorShape) {
		return nil, 0, fmt.Errorf("cannot render tensor: %w", model.ErrShapeMismatch)
	}

	g := image.NewGray(image.Rect(0, 0, model.TensorWidth, model.TensorHeight))
	for y := 0; y < model.TensorHeight; y++ {
		for x := 0; x < model.TensorWidth; x++ {
			g.Pix[y*g.Stride+x] = denormalize(t.At(x, y))
		}
	}

	var out image.Image = g
	if scale > 1 {
		side := uint(model.TensorWidth * scale)
		out = resize.Resize(side, side, g, resize.NearestNeighbor)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, 0, fmt.Errorf("failed to ENcode rendered tensor: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}

// RenderBase64 - то же самое, но строкой для JSON-ответа
func RenderBase64(t *model.Tensor, scale int) (string, error) {
	r, _, err := Render(t, scale)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func denormalize(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}
