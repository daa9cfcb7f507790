package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurlang/automl/datasets/synthetic"
)

// synthOptions holds flags for the synth commands.
type synthOptions struct {
	*rootOptions
	PerClass int
	Images   int
	Seed     int64
}

func newSynthCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &synthOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic dataset archive",
		Long: `Write a small synthetic dataset as a zip archive laid out like the
benchmark datasets. The top directory of the archive is named after the
output file.`,
	}

	classification := &cobra.Command{
		Use:   "classification <out.zip>",
		Short: "Write a folder dataset of solid colour images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeSynthetic(args[0], func(dir string) error {
				return synthetic.WriteFolders(dir, synthetic.FoldersOptions{PerClass: opts.PerClass})
			})
		},
	}
	classification.Flags().IntVar(&opts.PerClass, "per-class", 10, "images per class and split")

	detection := &cobra.Command{
		Use:   "detection <out.zip>",
		Short: "Write a VOC dataset of coloured squares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeSynthetic(args[0], func(dir string) error {
				return synthetic.WriteVOC(dir, synthetic.VOCOptions{Images: opts.Images, Seed: opts.Seed})
			})
		},
	}
	detection.Flags().IntVar(&opts.Images, "images", 20, "number of images")
	detection.Flags().Int64Var(&opts.Seed, "seed", 1, "layout seed")

	cmd.AddCommand(classification, detection)
	return cmd
}

func writeSynthetic(out string, write func(dir string) error) error {
	tmp, err := os.MkdirTemp("", "automl-synth")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	name := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	dir := filepath.Join(tmp, name)
	if err := write(dir); err != nil {
		return err
	}
	return synthetic.ZipFile(out, dir)
}
