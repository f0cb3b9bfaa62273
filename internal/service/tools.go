package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/disintegration/imaging"
)

// порядок перебора при поиске сохраненной загрузки
var uploadTypes = []string{model.PNG, model.JPEG, model.GIF, model.BMP, model.TIFF}

type uploadBuffer struct {
	data        []byte
	contentType string
}

func (b *uploadBuffer) Reader() io.Reader {
	return bytes.NewReader(b.data)
}

func (b *uploadBuffer) Size() int64 {
	return int64(len(b.data))
}

func readUpload(raw *model.UploadData) (*uploadBuffer, error) {
	// корректна ли загрузка вообще
	if raw == nil || raw.File == nil {
		return nil, errors.New("no file in upload")
	}

	data, err := io.ReadAll(raw.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("zero-length upload")
	}

	// тип определяем по содержимому, а не по заголовку клиента
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unknown image format: %w", err)
	}
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, err
	}
	cType, ok := model.GetCType[f]
	if !ok || !model.InImageTypeMap[cType] {
		return nil, fmt.Errorf("unsupported image format %q", format)
	}

	return &uploadBuffer{data: data, contentType: cType}, nil
}
