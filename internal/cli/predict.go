package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/UnendingLoop/DigitRecognizer/internal/imageproc"
	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().String("render", "", "Write the preprocessed 28x28 input as PNG to this path")
}

var predictCmd = &cobra.Command{
	Use:   "predict FILE",
	Short: "Predict the digit on one image file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("cannot open image: %w", err)
	}
	defer closeLogged(f)

	tensor, err := imageproc.Preprocess(f)
	if err != nil {
		return err
	}

	pred, err := openPredictor(cfg.Model)
	if err != nil {
		return err
	}
	defer closeLogged(pred)

	res, err := pred.Predict(cmd.Context(), tensor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Predicted digit: %d (confidence %.2f%%)\n", res.Digit, res.Confidence)

	renderPath, _ := cmd.Flags().GetString("render")
	if renderPath == "" {
		return nil
	}
	return writeRender(renderPath, tensor, cfg.RenderScale)
}

func writeRender(path string, tensor *model.Tensor, scale int) error {
	r, _, err := imageproc.Render(tensor, scale)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		closeLogged(out)
		return err
	}
	return out.Close()
}

func closeLogged(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Println("Failed to close:", err)
	}
}
