// Package dataset reads the MNIST IDX files (optionally gzipped) and feeds samples
// through the same transform the HTTP path uses.
package dataset

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/UnendingLoop/DigitRecognizer/internal/imageproc"
	"github.com/UnendingLoop/DigitRecognizer/internal/model"
)

const (
	imagesMagic = 0x00000803
	labelsMagic = 0x00000801

	// больше заранее не резервируем: счетчик из заголовка ничем не подтвержден
	maxPrealloc = 1024
)

var ErrBadIDX = errors.New("malformed IDX file")

// Set - картинки 28x28 построчно и их метки, индексы совпадают
type Set struct {
	Images [][]byte
	Labels []byte
}

// Load opens an images/labels pair, e.g. t10k-images-idx3-ubyte.gz and t10k-labels-idx1-ubyte.gz.
func Load(imagesPath, labelsPath string) (*Set, error) {
	images, err := readFile(imagesPath, ReadImages)
	if err != nil {
		return nil, err
	}
	labels, err := readFile(labelsPath, ReadLabels)
	if err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("%w: %d images vs %d labels", ErrBadIDX, len(images), len(labels))
	}
	return &Set{Images: images, Labels: labels}, nil
}

func (s *Set) Len() int {
	return len(s.Labels)
}

func (s *Set) Gray(i int) *image.Gray {
	return &image.Gray{
		Pix:    s.Images[i],
		Stride: model.TensorWidth,
		Rect:   image.Rect(0, 0, model.TensorWidth, model.TensorHeight),
	}
}

// Tensor normalizes sample i with imageproc.FromGray.
func (s *Set) Tensor(i int) (*model.Tensor, error) {
	return imageproc.FromGray(s.Gray(i))
}

// ReadImages parses an idx3-ubyte stream: magic, count, rows, cols, then count*rows*cols bytes.
func ReadImages(r io.Reader) ([][]byte, error) {
	var hdr struct {
		Magic, Count, Rows, Cols uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: images header: %w", ErrBadIDX, err)
	}
	if hdr.Magic != imagesMagic {
		return nil, fmt.Errorf("%w: images magic %#x", ErrBadIDX, hdr.Magic)
	}
	if hdr.Rows != model.TensorHeight || hdr.Cols != model.TensorWidth {
		return nil, fmt.Errorf("%w: images are %dx%d", ErrBadIDX, hdr.Cols, hdr.Rows)
	}

	size := int(hdr.Rows * hdr.Cols)
	images := make([][]byte, 0, min(int(hdr.Count), maxPrealloc))
	for i := range int(hdr.Count) {
		img := make([]byte, size)
		if _, err := io.ReadFull(r, img); err != nil {
			return nil, fmt.Errorf("%w: image #%d: %w", ErrBadIDX, i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// ReadLabels parses an idx1-ubyte stream: magic, count, then count label bytes.
func ReadLabels(r io.Reader) ([]byte, error) {
	var hdr struct {
		Magic, Count uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: labels header: %w", ErrBadIDX, err)
	}
	if hdr.Magic != labelsMagic {
		return nil, fmt.Errorf("%w: labels magic %#x", ErrBadIDX, hdr.Magic)
	}

	// читаем не больше объявленного, память растет только вместе с реальными данными
	labels, err := io.ReadAll(io.LimitReader(r, int64(hdr.Count)))
	if err != nil {
		return nil, fmt.Errorf("%w: labels: %w", ErrBadIDX, err)
	}
	if len(labels) != int(hdr.Count) {
		return nil, fmt.Errorf("%w: header declares %d labels, body has %d", ErrBadIDX, hdr.Count, len(labels))
	}
	for i, l := range labels {
		if l >= model.NumClasses {
			return nil, fmt.Errorf("%w: label #%d is %d", ErrBadIDX, i, l)
		}
	}
	return labels, nil
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()

	r, err := maybeGunzip(bufio.NewReader(f))
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	res, err := parse(r)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// maybeGunzip - файлы с сайта MNIST в gzip, распакованные тоже принимаем
func maybeGunzip(br *bufio.Reader) (io.Reader, error) {
	magic, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadIDX, err)
	}
	if !bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		return br, nil
	}
	return gzip.NewReader(br)
}
