// Package diskstorage keeps uploaded images as plain files under a root directory
package diskstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
)

type DiskImageStorage struct {
	root string
}

func New(root string) (*DiskImageStorage, error) {
	if root == "" {
		return nil, errors.New("empty upload dir provided")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %q: %w", abs, err)
	}
	return &DiskImageStorage{root: abs}, nil
}

func (s *DiskImageStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// пишем во временный файл и переименовываем - полузаписанных загрузок не бывает
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to remove temp upload %q: %v", tmp.Name(), err)
		}
	}()

	n, err := io.Copy(tmp, r)
	if cErr := tmp.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		return fmt.Errorf("failed to write upload %q: %w", key, err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("upload %q: wrote %d bytes, expected %d", key, n, size)
	}

	return os.Rename(tmp.Name(), path)
}

func (s *DiskImageStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	path, err := s.path(key)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", model.ErrUploadNotFound
		}
		return nil, "", err
	}

	return f, contentTypeByExt(filepath.Ext(path)), nil
}

func (s *DiskImageStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DiskImageStorage) path(key string) (string, error) {
	if key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func contentTypeByExt(ext string) string {
	ext = strings.ToLower(ext)
	for cType, e := range model.GetImageFileExt {
		if e == ext {
			return cType
		}
	}
	return "application/octet-stream"
}
