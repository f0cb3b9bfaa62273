package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/UnendingLoop/DigitRecognizer/internal/dataset"
	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("images", "t10k-images-idx3-ubyte.gz", "MNIST images file (idx3, gzipped or plain)")
	evaluateCmd.Flags().String("labels", "t10k-labels-idx1-ubyte.gz", "MNIST labels file (idx1, gzipped or plain)")
	evaluateCmd.Flags().Int("limit", 0, "Evaluate only the first N samples, 0 means all")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Measure model accuracy on an MNIST set",
	Long: `Reads an MNIST images/labels pair, normalizes every sample exactly like uploads are
normalized by the service and reports overall and per-digit accuracy.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

type evalReport struct {
	total, correct  int
	perDigitTotal   [model.NumClasses]int
	perDigitCorrect [model.NumClasses]int
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	imagesPath, _ := cmd.Flags().GetString("images")
	labelsPath, _ := cmd.Flags().GetString("labels")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	set, err := dataset.Load(imagesPath, labelsPath)
	if err != nil {
		return err
	}

	pred, err := openPredictor(cfg.Model)
	if err != nil {
		return err
	}
	defer closeLogged(pred)

	n := set.Len()
	if limit > 0 && limit < n {
		n = limit
	}

	var rep evalReport
	for i := range n {
		tensor, err := set.Tensor(i)
		if err != nil {
			return fmt.Errorf("sample #%d: %w", i, err)
		}
		res, err := pred.Predict(cmd.Context(), tensor)
		if err != nil {
			return fmt.Errorf("sample #%d: %w", i, err)
		}

		label := int(set.Labels[i])
		rep.total++
		rep.perDigitTotal[label]++
		if res.Digit == label {
			rep.correct++
			rep.perDigitCorrect[label]++
		}
	}

	return rep.print(cmd)
}

func (r evalReport) print(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	if r.total == 0 {
		_, err := fmt.Fprintln(out, "No samples evaluated")
		return err
	}

	fmt.Fprintf(out, "Accuracy: %.2f%% (%d/%d)\n", percent(r.correct, r.total), r.correct, r.total)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "digit\tsamples\taccuracy")
	for d := range model.NumClasses {
		if r.perDigitTotal[d] == 0 {
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%.2f%%\n", d, r.perDigitTotal[d], percent(r.perDigitCorrect[d], r.perDigitTotal[d]))
	}
	return tw.Flush()
}

func percent(part, total int) float64 {
	return float64(part) * 100 / float64(total)
}
