package main

import (
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/neurlang/automl/datasets/folders"
	"github.com/neurlang/automl/datasets/voc"
	"github.com/neurlang/automl/tasks"
)

// fitOptions holds flags for the fit commands.
type fitOptions struct {
	*rootOptions
	Config    string
	NumTrials int
	Save      string
}

func newFitCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &fitOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a model on a dataset",
		Long: `Fit a model on a dataset and print the summary of the fit.

The location is a directory, a zip or tar archive, an http(s) URL or an
s3:// URI. Classification datasets hold train/<class>/ image folders,
detection datasets are in Pascal VOC layout.

Examples:
  automl fit classification ./shopee-iet --num-trials 4
  automl fit detection https://autogluon.s3.amazonaws.com/datasets/tiny_motorbike.zip --save detector.json`,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.Config, "config", "", "YAML task config file")
	flags.IntVar(&opts.NumTrials, "num-trials", 0, "number of trials, overrides the config")
	flags.StringVar(&opts.Save, "save", "", "write the best model to this JSON file")

	cmd.AddCommand(&cobra.Command{
		Use:   "classification <location>",
		Short: "Fit an image classifier on a folder dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFitClassification(cmd, opts, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "detection <location>",
		Short: "Fit an object detector on a VOC dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFitDetection(cmd, opts, args[0])
		},
	})
	return cmd
}

func (o *fitOptions) config(cmd *cobra.Command) (tasks.Config, error) {
	var cfg tasks.Config
	if o.Config != "" {
		var err error
		if cfg, err = tasks.LoadConfig(o.Config); err != nil {
			return cfg, commandError("invalid config", err)
		}
	}
	if cmd.Flags().Changed("num-trials") {
		cfg.NumTrials = o.NumTrials
	}
	return cfg, nil
}

func (o *fitOptions) taskOptions() []tasks.Option {
	return []tasks.Option{tasks.WithLogger(o.logger), tasks.WithMetrics(o.metrics)}
}

func runFitClassification(cmd *cobra.Command, opts *fitOptions, location string) error {
	cfg, err := opts.config(cmd)
	if err != nil {
		return err
	}
	task, err := tasks.NewImageClassification(cfg, opts.taskOptions()...)
	if err != nil {
		return commandError("invalid config", err)
	}
	train, _, _, err := folders.FromFolders(cmd.Context(), opts.fetcher(), location)
	if err != nil {
		return commandError("loading dataset", err)
	}
	model, err := task.Fit(cmd.Context(), train)
	if err != nil {
		return err
	}
	if opts.Save != "" {
		if err := model.Save(opts.Save); err != nil {
			return err
		}
		opts.logger.Info("model saved", "path", opts.Save)
	}
	return printSummary(cmd.OutOrStdout(), task.Summary())
}

func runFitDetection(cmd *cobra.Command, opts *fitOptions, location string) error {
	cfg, err := opts.config(cmd)
	if err != nil {
		return err
	}
	task, err := tasks.NewObjectDetection(cfg, opts.taskOptions()...)
	if err != nil {
		return commandError("invalid config", err)
	}
	d, err := voc.FromVOC(cmd.Context(), opts.fetcher(), location)
	if err != nil {
		return commandError("loading dataset", err)
	}
	model, err := task.Fit(cmd.Context(), d)
	if err != nil {
		return err
	}
	if opts.Save != "" {
		if err := model.Save(opts.Save); err != nil {
			return err
		}
		opts.logger.Info("model saved", "path", opts.Save)
	}
	return printSummary(cmd.OutOrStdout(), task.Summary())
}

func printSummary(w io.Writer, s tasks.Summary) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(map[string]float64(s)); err != nil {
		return err
	}
	return enc.Close()
}
