package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/diarisk/internal/training"
	"github.com/okian/diarisk/pkg/logger"
)

// TrainOptions holds flags for the train command.
type TrainOptions struct {
	Out     string
	Samples int
	Seed    uint64
	Epochs  int
	Dataset string
}

type trainReport struct {
	Dir          string  `json:"dir"`
	Samples      int     `json:"n_samples"`
	Train        int     `json:"n_train"`
	Test         int     `json:"n_test"`
	Accuracy     float64 `json:"accuracy"`
	DiabetesRate float64 `json:"diabetes_rate"`
	FinalLoss    float64 `json:"final_loss"`
}

// NewTrainCommand creates the train command.
func NewTrainCommand(rootOpts *RootOptions) *cobra.Command {
	defaults := training.DefaultConfig()
	opts := &TrainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a reference model on synthetic data",
		Long: `Generate a synthetic dataset, fit a logistic regression and publish
the artifact directory atomically. The output directory defaults to
--model-dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output artifact directory")
	cmd.Flags().IntVarP(&opts.Samples, "samples", "n", defaults.Samples, "number of synthetic samples")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", defaults.Seed, "random seed")
	cmd.Flags().IntVar(&opts.Epochs, "epochs", defaults.Epochs, "gradient descent epochs")
	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "also write the generated dataset as CSV to this path")
	return cmd
}

func runTrain(cmd *cobra.Command, rootOpts *RootOptions, opts *TrainOptions) error {
	ctx := cmd.Context()
	log := logger.Named("train")

	dir := opts.Out
	if dir == "" {
		dir = rootOpts.ModelDir
	}
	cfg := training.DefaultConfig()
	cfg.Samples = opts.Samples
	cfg.Seed = opts.Seed
	cfg.Epochs = opts.Epochs

	if opts.Dataset != "" {
		if err := writeDataset(opts.Dataset, training.Synthesize(cfg.Samples, cfg.Seed)); err != nil {
			return WrapExitError(ExitFailure, "write dataset", err)
		}
		log.Info(ctx, "dataset written", logger.String("path", opts.Dataset))
	}

	rep, err := training.Run(ctx, dir, cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "train", err)
	}
	log.Info(ctx, "model published",
		logger.String("dir", dir),
		logger.Float64("accuracy", rep.Accuracy),
	)
	return writeResult(cmd.OutOrStdout(), trainReport{
		Dir:          dir,
		Samples:      rep.Samples,
		Train:        rep.Train,
		Test:         rep.Test,
		Accuracy:     rep.Accuracy,
		DiabetesRate: rep.DiabetesRate,
		FinalLoss:    rep.FinalLoss,
	})
}

func writeDataset(path string, ds training.Dataset) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return training.WriteCSV(f, ds)
}
