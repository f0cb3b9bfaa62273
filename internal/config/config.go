// Package config builds typed application settings from env variables and .env files.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cast"
	wbfconfig "github.com/wb-go/wbf/config"
)

const (
	StorageDisk  = "disk"
	StorageMinio = "minio"
	StorageNone  = "none"
)

// Source - все что нужно от провайдера конфига; *wbfconfig.Config подходит
type Source interface {
	GetString(key string) string
}

type AppConfig struct {
	Port           string
	GinMode        string
	LogLevel       string
	WebDir         string
	DebugRender    bool
	RenderScale    int
	MaxUploadBytes int64
	MaxImagePixels int
	Model          ModelConfig
	Storage        StorageConfig
	Kafka          KafkaConfig
}

type ModelConfig struct {
	Path       string
	InputName  string
	OutputName string
	LibPath    string
	PoolSize   int
}

type StorageConfig struct {
	Backend   string
	UploadDir string
	KeyPrefix string
	Bucket    string
	User      string
	Pass      string
	Addr      string
}

type KafkaConfig struct {
	Broker string
	Topic  string
}

// Enabled - без брокера события не публикуются
func (k KafkaConfig) Enabled() bool {
	return k.Broker != ""
}

// Load reads env variables plus every env file that exists.
func Load(envFiles ...string) (*AppConfig, error) {
	appConfig := wbfconfig.New()
	appConfig.EnableEnv("")
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			log.Printf("Env file %q not found, skipping it", f)
			continue
		}
		if err := appConfig.LoadEnvFiles(f); err != nil {
			return nil, fmt.Errorf("failed to load envs from %q: %w", f, err)
		}
	}
	return FromSource(appConfig)
}

// FromSource applies defaults and validates values.
func FromSource(src Source) (*AppConfig, error) {
	var errs []error

	cfg := &AppConfig{
		Port:     get(src, "APP_PORT", "8081"),
		GinMode:  get(src, "GIN_MODE", "release"),
		LogLevel: get(src, "LOG_LEVEL", "info"),
		WebDir:   get(src, "WEB_DIR", "./internal/web"),
		Model: ModelConfig{
			Path:       get(src, "MODEL_PATH", "mnist_digit_classifier.onnx"),
			InputName:  get(src, "MODEL_INPUT", "input"),
			OutputName: get(src, "MODEL_OUTPUT", "output"),
			LibPath:    src.GetString("ONNX_LIB_PATH"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(get(src, "STORAGE_BACKEND", StorageDisk)),
			UploadDir: get(src, "UPLOAD_DIR", "./uploads"),
			KeyPrefix: get(src, "UPLOAD_KEY_PREFIX", "uploads/"),
			Bucket:    get(src, "BUCKET_NAME", "digits"),
			User:      src.GetString("MINIO_USER"),
			Pass:      src.GetString("MINIO_PASS"),
			Addr:      get(src, "MINIO_ADDR", "minio:9000"),
		},
		Kafka: KafkaConfig{
			Broker: src.GetString("KAFKA_BROKER"),
			Topic:  get(src, "KAFKA_TOPIC", "digit-predictions"),
		},
	}

	var err error
	if cfg.DebugRender, err = cast.ToBoolE(get(src, "DEBUG_RENDER", "true")); err != nil {
		errs = append(errs, fmt.Errorf("DEBUG_RENDER: %w", err))
	}
	if cfg.RenderScale, err = positiveInt(src, "RENDER_SCALE", "10"); err != nil {
		errs = append(errs, err)
	}
	if cfg.Model.PoolSize, err = positiveInt(src, "ENGINE_POOL_SIZE", "1"); err != nil {
		errs = append(errs, err)
	}
	uploadMB, err := positiveInt(src, "MAX_UPLOAD_MB", "10")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.MaxUploadBytes = int64(uploadMB) << 20
	if cfg.MaxImagePixels, err = positiveInt(src, "MAX_IMAGE_PIXELS", "16777216"); err != nil {
		errs = append(errs, err)
	}

	switch cfg.Storage.Backend {
	case StorageDisk, StorageMinio, StorageNone:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func get(src Source, key, def string) string {
	if v := strings.TrimSpace(src.GetString(key)); v != "" {
		return v
	}
	return def
}

func positiveInt(src Source, key, def string) (int, error) {
	v, err := cast.ToIntE(get(src, key, def))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if v < 1 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}
