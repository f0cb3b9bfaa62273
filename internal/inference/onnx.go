package inference

import (
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/DigitRecognizer/internal/config"
	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	ort "github.com/yalue/onnxruntime_go"
)

type ONNXConfig struct {
	ModelPath  string
	InputName  string
	OutputName string
}

// ONNXEngine - сессия ONNX Runtime с заранее выделенными входным и выходным тензорами
type ONNXEngine struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	shape   []int64
}

// InitRuntime loads the onnxruntime shared library and creates the process-wide environment.
func InitRuntime(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// DestroyRuntime - вызывать после закрытия всех движков
func DestroyRuntime() {
	if !ort.IsInitialized() {
		return
	}
	if err := ort.DestroyEnvironment(); err != nil {
		log.Println("Failed to destroy ONNX environment:", err)
	}
}

func NewONNXEngine(cfg ONNXConfig) (*ONNXEngine, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("empty model path provided")
	}

	inputShape := ort.NewShape(model.TensorShape...)
	outputShape := ort.NewShape(model.TensorBatch, model.NumClasses)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		destroyLogged(inputTensor)
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		destroyLogged(inputTensor)
		destroyLogged(outputTensor)
		return nil, fmt.Errorf("failed to create ONNX session for %q: %w", cfg.ModelPath, err)
	}

	shape := make([]int64, len(model.TensorShape))
	copy(shape, model.TensorShape)

	return &ONNXEngine{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		shape:   shape,
	}, nil
}

// NewONNXPool loads size independent sessions of the same model.
func NewONNXPool(cfg ONNXConfig, size int) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	engines := make([]Engine, 0, size)
	for i := 0; i < size; i++ {
		e, err := NewONNXEngine(cfg)
		if err != nil {
			for _, made := range engines {
				if cErr := made.Close(); cErr != nil {
					log.Println("Failed to close ONNX engine after pool init failure:", cErr)
				}
			}
			return nil, fmt.Errorf("failed to load engine #%d: %w", i, err)
		}
		engines = append(engines, e)
	}

	return NewPool(engines...)
}

// OpenPredictor initializes the runtime and a pool of PoolSize engines for cfg.Path.
// The returned Predictor's Close also tears the runtime down.
func OpenPredictor(cfg config.ModelConfig) (*Predictor, error) {
	if err := InitRuntime(cfg.LibPath); err != nil {
		return nil, err
	}

	pool, err := NewONNXPool(ONNXConfig{
		ModelPath:  cfg.Path,
		InputName:  cfg.InputName,
		OutputName: cfg.OutputName,
	}, cfg.PoolSize)
	if err != nil {
		DestroyRuntime()
		return nil, err
	}

	p := NewPredictor(pool)
	p.onClose = DestroyRuntime
	return p, nil
}

func (e *ONNXEngine) InputShape() []int64 {
	return e.shape
}

func (e *ONNXEngine) Bind(input []float32) error {
	dst := e.input.GetData()
	if len(dst) != len(input) {
		return fmt.Errorf("engine expects %d values, got %d: %w", len(dst), len(input), model.ErrShapeMismatch)
	}
	copy(dst, input)
	return nil
}

func (e *ONNXEngine) Invoke() error {
	return e.session.Run()
}

func (e *ONNXEngine) Output() []float32 {
	return e.output.GetData()
}

func (e *ONNXEngine) Close() error {
	var errs []error
	if e.session != nil {
		errs = append(errs, e.session.Destroy())
	}
	if e.input != nil {
		errs = append(errs, e.input.Destroy())
	}
	if e.output != nil {
		errs = append(errs, e.output.Destroy())
	}
	return errors.Join(errs...)
}

type destroyer interface {
	Destroy() error
}

func destroyLogged(d destroyer) {
	if err := d.Destroy(); err != nil {
		log.Println("Failed to destroy ONNX tensor:", err)
	}
}
