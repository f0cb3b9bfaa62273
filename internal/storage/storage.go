// Package storage selects and connects the backend that keeps uploaded images
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/UnendingLoop/DigitRecognizer/internal/config"
	"github.com/UnendingLoop/DigitRecognizer/internal/storage/diskstorage"
	"github.com/UnendingLoop/DigitRecognizer/internal/storage/miniostorage"
)

// ImgStorage - контракт бэкенда хранения загрузок
type ImgStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// NewUploadStorage returns nil storage for the "none" backend: uploads are then not kept.
func NewUploadStorage(ctx context.Context, cfg config.StorageConfig, attempts int, delay time.Duration) (ImgStorage, error) {
	switch cfg.Backend {
	case config.StorageNone:
		log.Println("Upload storage disabled")
		return nil, nil
	case config.StorageDisk:
		strg, err := diskstorage.New(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		log.Printf("Uploads are saved to %q", cfg.UploadDir)
		return strg, nil
	case config.StorageMinio:
		return connectMinio(ctx, cfg, attempts, delay)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func connectMinio(ctx context.Context, cfg config.StorageConfig, attempts int, delay time.Duration) (ImgStorage, error) {
	var lastErr error
	for i := range attempts {
		log.Println("Connecting to IMG-storage...")
		client, err := miniostorage.NewMinioClient(ctx, cfg)
		if err == nil {
			log.Println("Successfully connected IMG-storage!")
			return client, nil
		}
		lastErr = err
		log.Printf("Failed to init connection to IMG-storage (try #%d): %v\nNext retry in %v...", i+1, err, delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("IMG-storage unreachable after %d tries: %w", attempts, lastErr)
}
