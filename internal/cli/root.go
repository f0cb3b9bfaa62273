// Package cli implements digitctl, the offline companion of the HTTP service:
// single-file prediction and accuracy evaluation on MNIST.
package cli

import (
	"context"
	"io"

	"github.com/UnendingLoop/DigitRecognizer/internal/config"
	"github.com/UnendingLoop/DigitRecognizer/internal/imageproc"
	"github.com/UnendingLoop/DigitRecognizer/internal/inference"
	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/spf13/cobra"
)

type digitPredictor interface {
	Predict(ctx context.Context, t *model.Tensor) (*model.PredictionResult, error)
	Close() error
}

// openPredictor подменяется в тестах
var openPredictor = func(cfg config.ModelConfig) (digitPredictor, error) {
	p, err := inference.OpenPredictor(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

var rootCmd = &cobra.Command{
	Use:   "digitctl",
	Short: "Recognize handwritten digits offline",
	Long: `digitctl runs the same preprocessing and model as the HTTP service,
without the server: predict a single image file or measure accuracy on the MNIST test set.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("env", "./.env", "Env file with MODEL_PATH, ONNX_LIB_PATH etc.")
	rootCmd.PersistentFlags().String("model", "", "Model file, overrides MODEL_PATH")
}

// Execute runs the command tree with the given args.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig - конфиг из env + флаги поверх
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	envFile, _ := cmd.Flags().GetString("env")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if modelPath, _ := cmd.Flags().GetString("model"); modelPath != "" {
		cfg.Model.Path = modelPath
	}
	imageproc.MaxPixels = cfg.MaxImagePixels
	return cfg, nil
}
